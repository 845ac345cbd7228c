package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesFormattedEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.Error("Failed to parse: %s", `\Foo(*)\Bar`)

	line := buf.String()
	if !strings.Contains(line, "ERROR: Failed to parse: \\Foo(*)\\Bar") {
		t.Errorf("unexpected log line: %q", line)
	}
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "\n") {
		t.Errorf("log line not framed as [timestamp] LEVEL: msg: %q", line)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)
	log.SetLevel(LevelWarning)

	log.Debug("debug")
	log.Info("info")
	log.Warning("warning")
	log.Error("error")

	out := buf.String()
	if strings.Contains(out, "debug") || strings.Contains(out, "info") {
		t.Errorf("entries below WARNING should be dropped: %q", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Errorf("Expected 2 entries, got %q", out)
	}
}

func TestLogger_FileAndEcho(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfreporter.log")
	log := New(path)
	var echo bytes.Buffer
	log.EchoTo(&echo)

	log.Info("started")
	log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "INFO: started") {
		t.Errorf("file missing entry: %q", data)
	}
	if !strings.Contains(echo.String(), "INFO: started") {
		t.Errorf("echo missing entry: %q", echo.String())
	}

	// writes after Close must not panic
	log.Info("after close")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
		"info":    LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var log *Logger
	log.Info("ignored")
}
