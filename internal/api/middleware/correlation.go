package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// maxCorrelationIDLen caps caller-supplied correlation IDs. Anything longer
// is replaced with a fresh UUID rather than truncated, so the value in the
// logs always round-trips with the response header.
const maxCorrelationIDLen = 64

// CorrelationID tags every request with an ID that follows it through the
// logs. A caller-supplied X-Correlation-ID header is honoured when it is
// printable and reasonably sized; otherwise a new UUID is generated. The
// final value is stored on the request context and echoed back in the
// response header.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if !validCorrelationID(id) {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), correlationIDKey, id)
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validCorrelationID accepts non-empty printable ASCII up to the length cap.
// Control characters are rejected so the ID can never smuggle newlines into
// log lines or response headers.
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetCorrelationID retrieves the correlation ID stored by the middleware.
// Returns an empty string if the middleware was not applied.
func GetCorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}
