package api

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vocdoni/davinci-ballotbox/log"
)

// DisabledLogging is a global flag to disable logging middleware
var DisabledLogging = false

// jsonRegex matches common JSON starting patterns
var jsonRegex = regexp.MustCompile(`^\s*[\[{]`)

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string // URL path prefixes to exclude from logging
}

// DefaultLoggingConfig returns the logging configuration used by the API.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       512,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

// shouldSkipLogging reports whether the request is not logged: outside
// debug level, with logging disabled or on an excluded path.
func (lc LoggingConfig) shouldSkipLogging(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// the number of bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// logBody returns the loggable form of a request body: JSON only, without
// quotes and truncated to maxLen.
func logBody(body []byte, maxLen int) string {
	if !jsonRegex.Match(body) {
		return ""
	}
	s := string(body)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return strings.ReplaceAll(s, "\"", "")
}

// loggingMiddleware logs requests and responses at debug level.
func loggingMiddleware(maxBodyLog int) func(http.Handler) http.Handler {
	config := DefaultLoggingConfig()
	config.MaxBodyLog = maxBodyLog
	return loggingMiddlewareWithConfig(config)
}

// loggingMiddlewareWithConfig provides request/response logging with custom
// configuration. Only JSON bodies are logged, truncated to MaxBodyLog.
func loggingMiddlewareWithConfig(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.shouldSkipLogging(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var body string
			if r.Body != nil && r.ContentLength > 0 {
				data, err := io.ReadAll(r.Body)
				if err != nil {
					ErrMalformedBody.Withf("unable to read request body: %v", err).Write(w)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(data))
				body = logBody(data, config.MaxBodyLog)
			}

			reqID := middleware.GetReqID(r.Context())
			wrapped := &responseWriter{ResponseWriter: w}
			log.Debugw("api request",
				"reqId", reqID,
				"method", r.Method,
				"url", r.URL.String(),
				"body", body,
			)
			next.ServeHTTP(wrapped, r)
			log.Debugw("api response",
				"reqId", reqID,
				"status", wrapped.statusCode,
				"bytes", wrapped.written,
				"took", time.Since(start).String(),
			)
		})
	}
}
