package logging

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decode(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf).WithField("component", "solver")

	logger.Debug("hidden")
	logger.Info("solved", map[string]interface{}{"iterations": 7})

	entries := decode(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "solved", entries[0]["message"])
	assert.Equal(t, "solver", entries[0]["component"])
	assert.Equal(t, float64(7), entries[0]["iterations"])
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&Config{Level: "debug", Format: "TEXT", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, logger.Level())

	logger = NewWithFormat(DebugLevel, TextFormat, &buf)
	logger.WithFields(map[string]interface{}{"b": 2, "a": 1}).Warn("slow solve")

	line := buf.String()
	assert.Contains(t, line, "WARN  slow solve")
	assert.Less(t, strings.Index(line, "a=1"), strings.Index(line, "b=2"), "keys should be sorted")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("Warn"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestZapLoggerForwardsFields(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf)).Named("powell")

	zl.Debug("Solve finished",
		zap.Float64("value", 1.5),
		zap.Float64("nan", math.NaN()),
		zap.Int("iterations", 4),
		zap.Bool("ok", true),
		zap.Stringer("status", stringer("converged")))

	entries := decode(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "DEBUG", e["level"])
	assert.Equal(t, "powell", e["logger"])
	assert.Equal(t, 1.5, e["value"])
	assert.Equal(t, "NaN", e["nan"])
	assert.Equal(t, float64(4), e["iterations"])
	assert.Equal(t, true, e["ok"])
	assert.Equal(t, "converged", e["status"])
}

func TestZapLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(WarnLevel, &buf))

	zl.Info("dropped")
	zl.Warn("kept")
	assert.Len(t, decode(t, &buf), 1)
}

func TestMiddlewareLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	var fromCtx *CtxLogger
	handler := middleware.RequestID(Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/methods", nil))

	entries := decode(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Request started", entries[0]["message"])
	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[1]["status"])
	assert.NotEmpty(t, entries[1]["request_id"])
	require.NotNil(t, fromCtx)
}

type stringer string

func (s stringer) String() string { return string(s) }
