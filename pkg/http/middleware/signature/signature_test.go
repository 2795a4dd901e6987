package signature

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSignatureMiddleware(t *testing.T) {
	const body = `{"type":"payment","data":{"id":"123"}}`
	valid := "ts=1700000000,v1=" + Sign("s3cret", []byte(body))

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "valid", secret: "s3cret", header: valid, want: http.StatusOK},
		{name: "mismatch", secret: "s3cret", header: "ts=1,v1=deadbeef", want: http.StatusUnauthorized},
		{name: "malformed", secret: "s3cret", header: "garbage", want: http.StatusUnauthorized},
		{name: "missing header", secret: "s3cret", header: "", want: http.StatusOK},
		{name: "no secret", secret: "", header: "ts=1,v1=deadbeef", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody string
			h := NewSignatureMiddleware(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				gotBody = string(b)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set(Header, tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && gotBody != body {
				t.Errorf("handler body = %q, want original", gotBody)
			}
		})
	}
}
