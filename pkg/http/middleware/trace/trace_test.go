package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestTraceMiddlewarePassesSpanContext(t *testing.T) {
	var sawContext bool
	h := NewTraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawContext = oteltrace.SpanFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", nil))

	if !sawContext {
		t.Error("handler saw no span")
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}
