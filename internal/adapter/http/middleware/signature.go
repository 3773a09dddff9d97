package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

// SignatureMiddleware authenticates webhook deliveries with a shared
// secret. The body is read fully here and restored for the next handler.
type SignatureMiddleware struct {
	secret []byte
	logger zerolog.Logger
}

// NewSignatureMiddleware creates a new SignatureMiddleware. An empty
// secret disables verification.
func NewSignatureMiddleware(secret string, logger zerolog.Logger) *SignatureMiddleware {
	return &SignatureMiddleware{secret: []byte(secret), logger: logger}
}

// Wrap wraps an http.Handler with signature verification.
func (m *SignatureMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, m.secret)
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		provided := r.Header.Get(SignatureHeader)
		if provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
			m.logger.Warn().
				Str("remote_addr", r.RemoteAddr).
				Msg("webhook signature rejected")

			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

const maxSignedBody = 1 << 20
