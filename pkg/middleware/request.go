package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/contextkeys"
	"github.com/platinummonkey/crmacl/pkg/httputil"
	"github.com/platinummonkey/crmacl/pkg/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID reuses the incoming request id or assigns a new UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(contextkeys.WithRequestID(r.Context(), requestID)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging stores a request logger in the context and logs each request once
// it completes.
func Logging(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := observability.FromContext(r.Context(), log).WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(contextkeys.WithLogger(r.Context(), entry)))

			entry = entry.WithFields(logrus.Fields{
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
			switch {
			case rec.status >= http.StatusInternalServerError:
				entry.Error("request failed")
			case rec.status >= http.StatusBadRequest:
				entry.Info("request rejected")
			default:
				entry.Debug("request completed")
			}
		})
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer observability.RecoverPanicWithCallback(
				observability.FromContext(r.Context(), log),
				r.Method+" "+r.URL.Path,
				func() {
					httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
				},
			)
			next.ServeHTTP(w, r)
		})
	}
}
