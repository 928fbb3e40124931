package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/abcfe/abcfe-keyring/api"
	"github.com/abcfe/abcfe-keyring/common/logger"
)

// LoggingMiddleware HTTP request logging middleware
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Call next handler
		next.ServeHTTP(w, r)

		// Log request
		duration := time.Since(start)
		logger.Info("Request:", r.Method, r.URL.Path, "Duration:", duration)
	})
}

// RecoveryMiddleware panic recovery middleware
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("API Panic recovered:", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// LocalOnlyMiddleware refuses browser requests from non-loopback origins, so
// a website can never approve its own request.
func LocalOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !api.IsLocalOrigin(r) {
			logger.Warn("Rejected non-local origin:", r.Header.Get("Origin"), r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			sendJSON(w, RestResp{Success: false, Error: fmt.Sprintf("origin %s not allowed", r.Header.Get("Origin")), Code: "origin_not_allowed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
