package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Header carries the webhook signature as "ts=<unix>,v1=<hex hmac>".
const Header = "x-signature"

const maxBodyBytes = 1 << 20

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// parse extracts the v1 digest from the second comma separated part.
func parse(header string) (string, bool) {
	parts := strings.Split(header, ",")
	if len(parts) < 2 {
		return "", false
	}

	digest, ok := strings.CutPrefix(strings.TrimSpace(parts[1]), "v1=")
	if !ok || digest == "" {
		return "", false
	}

	return digest, true
}

// NewSignatureMiddleware verifies the request body against the signature header.
// Requests without a header, or any request when secret is empty, pass with a warning.
func NewSignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(Header)
			if secret == "" || header == "" {
				slog.WarnContext(r.Context(), "Webhook signature not verified",
					"secret_configured", secret != "",
					"header_present", header != "",
				)
				next.ServeHTTP(w, r)

				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				http.Error(w, "failed to read body", http.StatusBadRequest)

				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			digest, ok := parse(header)
			if !ok || !hmac.Equal([]byte(strings.ToLower(digest)), []byte(Sign(secret, body))) {
				slog.WarnContext(r.Context(), "Webhook signature mismatch", "remote_addr", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":"invalid signature"}`))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
