package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestComponentIsLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewTextHandler(&buf, nil), Component: ComponentApp}).WithComponent(ComponentSession)
	l.Info("hello", FieldUsername, "alice")
	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=session") {
		t.Fatalf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "username=alice") {
		t.Fatalf("missing field: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewTextHandler(&buf, nil)}).With(FieldRequestID, "req_1")

	ctx := NewContext(context.Background(), l)
	FromContext(ctx).Info("scoped")
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("context logger not used: %s", buf.String())
	}

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without a logger returned nil")
	}
}

func TestLogViewLoadFailed(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))

	sl.LogViewLoadFailed(context.Background(), "summary", ErrorTypeTimeout, errors.New("deadline"))
	out := buf.String()
	for _, want := range []string{"level=WARN", "view=summary", "error_type=timeout_error", "error=deadline", "operation=load_all"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
