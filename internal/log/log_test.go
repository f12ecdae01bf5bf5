package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf).WithComponent(ComponentStorage)

	l.Info("connected", "driver", "sqlite")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, ComponentStorage, lines[0][FieldComponent])
	assert.Equal(t, "sqlite", lines[0]["driver"])
	assert.Equal(t, ComponentStorage, l.Component())
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())

	mine := Discard()
	assert.Same(t, mine, FromContext(NewContext(context.Background(), mine)))
}

func TestMiddlewareLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		var seen *Logger

		h := chimw.RequestID(Middleware(newJSONLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			w.WriteHeader(tt.status)
		})))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/movements?page=2", nil))

		require.NotNil(t, seen)
		assert.Equal(t, ComponentHTTP, seen.Component())

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, tt.level, lines[0]["level"])
		assert.Equal(t, "/movements", lines[0][FieldPath])
		assert.Equal(t, "page=2", lines[0][FieldQuery])
		assert.EqualValues(t, tt.status, lines[0][FieldStatusCode])
		assert.NotEmpty(t, lines[0][FieldRequestID])
	}
}
