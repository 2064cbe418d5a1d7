package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/log"
)

func withDebugLogs(t *testing.T) {
	previous := log.Level()
	log.Init(log.LogLevelDebug, "stderr", nil)
	t.Cleanup(func() { log.Init(previous, "stderr", nil) })
}

func TestLoggingMiddleware(t *testing.T) {
	withDebugLogs(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
	wrappedHandler := loggingMiddleware(100)(handler)

	tests := []struct {
		name string
		body string
	}{
		{"JSON object", `{"electionId": 1}`},
		{"JSON array", `[1, 2, 3]`},
		{"JSON with whitespace", `  {"choice": 2}`},
		{"long JSON", `{"ciphertext": "` + strings.Repeat("ab", 200) + `"}`},
		{"binary data", "\x00\x01\x02\x03\x04"},
		{"plain text", "Hello, World!"},
		{"empty body", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			req := httptest.NewRequest(http.MethodPost, ElectionsEndpoint, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			wrappedHandler.ServeHTTP(rec, req)

			c.Assert(rec.Code, qt.Equals, http.StatusOK)
			// the body reaches the handler untouched
			c.Assert(rec.Body.String(), qt.Equals, tt.body)
		})
	}
}

func TestLogBody(t *testing.T) {
	c := qt.New(t)
	c.Assert(logBody([]byte(`{"choice": 1}`), 100), qt.Equals, "{choice: 1}")
	c.Assert(logBody([]byte(`{"voterNonce": "0102"}`), 8), qt.Equals, "{voterNo...")
	c.Assert(logBody([]byte("\x00\x01"), 100), qt.Equals, "")
	c.Assert(logBody(nil, 100), qt.Equals, "")
}

func TestShouldSkipLogging(t *testing.T) {
	c := qt.New(t)
	withDebugLogs(t)

	conf := DefaultLoggingConfig()
	c.Assert(conf.shouldSkipLogging(httptest.NewRequest(http.MethodGet, PingEndpoint, nil)), qt.IsTrue)
	c.Assert(conf.shouldSkipLogging(httptest.NewRequest(http.MethodGet, "/elections/1", nil)), qt.IsFalse)

	custom := LoggingConfig{
		MaxBodyLog:       100,
		ExcludedPrefixes: []string{"/jobs/", "/health"},
	}
	tests := []struct {
		path string
		skip bool
	}{
		{"/jobs/0b8f", true},
		{"/health", true},
		{"/healthcheck", true}, // prefix match
		{"/elections/1/ballots", false},
		{"/jobs", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		c.Assert(custom.shouldSkipLogging(req), qt.Equals, tt.skip, qt.Commentf("path %s", tt.path))
	}

	DisabledLogging = true
	defer func() { DisabledLogging = false }()
	c.Assert(conf.shouldSkipLogging(httptest.NewRequest(http.MethodGet, "/elections/1", nil)), qt.IsTrue)
}

func TestShouldSkipLoggingOutsideDebug(t *testing.T) {
	c := qt.New(t)
	previous := log.Level()
	log.Init(log.LogLevelInfo, "stderr", nil)
	defer log.Init(previous, "stderr", nil)

	conf := DefaultLoggingConfig()
	c.Assert(conf.shouldSkipLogging(httptest.NewRequest(http.MethodGet, "/elections/1", nil)), qt.IsTrue)
}

func TestResponseWriterCapture(t *testing.T) {
	tests := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectedStatus int
		expectedBytes  int
	}{
		{
			name: "WriteHeader before Write",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte("test"))
			},
			expectedStatus: http.StatusCreated,
			expectedBytes:  4,
		},
		{
			name: "Write without WriteHeader",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("test"))
			},
			expectedStatus: http.StatusOK,
			expectedBytes:  4,
		},
		{
			name: "error response",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				ErrElectionNotFound.Write(w)
			},
			expectedStatus: http.StatusNotFound,
			expectedBytes:  -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
			tt.handlerFunc(rw, httptest.NewRequest(http.MethodGet, "/", nil))
			qt.Assert(t, rw.statusCode, qt.Equals, tt.expectedStatus)
			if tt.expectedBytes >= 0 {
				qt.Assert(t, rw.written, qt.Equals, tt.expectedBytes)
			} else {
				qt.Assert(t, rw.written > 0, qt.IsTrue)
			}
		})
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrappedHandler := loggingMiddleware(512)(handler)
	jsonBody := `{"electionId": 1, "choice": 2, "voterNonce": "0x0102"}`

	b.Run("JSON body", func(b *testing.B) {
		for b.Loop() {
			req := httptest.NewRequest(http.MethodPost, "/elections/1/encrypt", strings.NewReader(jsonBody))
			wrappedHandler.ServeHTTP(httptest.NewRecorder(), req)
		}
	})
	b.Run("No body", func(b *testing.B) {
		for b.Loop() {
			req := httptest.NewRequest(http.MethodGet, "/elections/1", nil)
			wrappedHandler.ServeHTTP(httptest.NewRecorder(), req)
		}
	})
}
