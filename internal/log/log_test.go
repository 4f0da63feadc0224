package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentRecord})

	l.Info("hello", FieldRecordID, 7)
	l.WithComponent(ComponentExpense).Warn("careful")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0][FieldComponent] != ComponentRecord || lines[0][FieldRecordID] != float64(7) {
		t.Errorf("unexpected first line: %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentExpense || lines[1]["level"] != "WARN" {
		t.Errorf("unexpected second line: %v", lines[1])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "text", Output: &buf})

	l.Info("dropped")
	l.Error("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	var fromCtx *Logger
	h := middleware.RequestID(Middleware(l)(RequestLogger(NewStructuredLogger(l))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromCtx = FromContext(r.Context())
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("nope"))
		}),
	)))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/records/9", nil))

	if fromCtx == nil || fromCtx.Component() != ComponentApp {
		t.Fatalf("logger not found in context: %+v", fromCtx)
	}

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected start and end lines, got %d: %s", len(lines), buf.String())
	}
	end := lines[1]
	if end[FieldStatusCode] != float64(404) || end["level"] != "WARN" || end[FieldSuccess] != false {
		t.Errorf("unexpected completion line: %v", end)
	}
	if end[FieldBytes] != float64(4) || end[FieldPath] != "/api/records/9" {
		t.Errorf("unexpected completion line: %v", end)
	}
	if id, _ := end[FieldRequestID].(string); id == "" {
		t.Errorf("missing request id: %v", end)
	}
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Errorf("unexpected default logger: %+v", l)
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))

	sl.LogError(context.Background(), "publish failed", errors.New("boom"), ComponentAMQP, OpPublish, nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	got := lines[0]
	if got[FieldError] != "boom" || got[FieldOperation] != OpPublish || got[FieldComponent] != ComponentAMQP {
		t.Errorf("unexpected line: %v", got)
	}
}
