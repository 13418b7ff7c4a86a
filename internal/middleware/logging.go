package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// LogMiddleware logs every request with its method, path, status and duration.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			entry := logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("HTTP Request")
				return
			}
			entry.Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs a push observer subscribing.
func LogWebSocketConnect(logger *logrus.Logger, r *http.Request, subscriber string) {
	logger.WithFields(logrus.Fields{
		"remote":     r.RemoteAddr,
		"subscriber": subscriber,
		"origin":     r.Header.Get("Origin"),
	}).Info("push observer connected")
}

// LogWebSocketDisconnect logs a push observer leaving, with the write error
// that ended the stream if there was one.
func LogWebSocketDisconnect(logger *logrus.Logger, r *http.Request, subscriber string, err error) {
	entry := logger.WithFields(logrus.Fields{
		"remote":     r.RemoteAddr,
		"subscriber": subscriber,
	})
	if err != nil {
		entry.WithError(err).Warn("push observer dropped")
		return
	}
	entry.Info("push observer disconnected")
}
