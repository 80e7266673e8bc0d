// Package trace assigns a trace id to every request.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const Header = "X-Trace-ID"

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Middleware reuses the caller's X-Trace-ID or generates one, stores it in the
// request context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(Header)
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.New().String()
		}

		w.Header().Set(Header, traceID)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// FromContext returns the trace id or the zero UUID when none is set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return "00000000-0000-0000-0000-000000000000"
}
