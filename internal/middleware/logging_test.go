package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte("ok"))
			}))

			req := httptest.NewRequest("GET", "/api/catalog?search=dark", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.FilterMessage("Request completed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tc.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, "/api/catalog", fields["path"])
			assert.Equal(t, "search=dark", fields["query"])
			assert.EqualValues(t, tc.status, fields["status"])
			assert.EqualValues(t, 2, fields["bytes"])
		})
	}
}

func TestLoggingMiddleware_DefaultsToOK(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])
}
