package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line is not json: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestStdoutLogger_WritesJSONLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewLogger(&buf, "pipeline", LevelDebug)

	l.Info("asset processed", Field{Key: "asset", Value: "https://a.example"})
	l.Error("boom", Field{Key: "error", Value: errors.New("bad")})

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["level"] != "info" || lines[0]["component"] != "pipeline" {
		t.Fatalf("unexpected entry: %v", lines[0])
	}
	fields := lines[1]["fields"].(map[string]any)
	if fields["error"] != "bad" {
		t.Fatalf("error field should be rendered as string, got %v", fields["error"])
	}
}

func TestStdoutLogger_LevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewLogger(&buf, "", LevelWarn)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "w" {
		t.Fatalf("expected only the warn entry, got %v", lines)
	}
}

func TestStdoutLogger_WithKeepsFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewLogger(&buf, "root", LevelInfo)

	child := l.With(Field{Key: "component", Value: "dedup"}, Field{Key: "cycle", Value: "c1"})
	child.Info("hello")

	lines := decodeLines(t, &buf)
	if lines[0]["component"] != "dedup" {
		t.Fatalf("component not replaced: %v", lines[0])
	}
	if lines[0]["fields"].(map[string]any)["cycle"] != "c1" {
		t.Fatalf("persistent field missing: %v", lines[0])
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]Level{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"loud":    LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
