package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel('%s') = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: FormatJSON, Output: &buf, Name: "test"})

	l := WithComponent(log, "pty")
	l.Debug().Str("shell", "/bin/sh").Msg("spawned")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["module"] != "pty" {
		t.Errorf("expected module 'pty', got %v", entry["module"])
	}
	if entry["app"] != "test" {
		t.Errorf("expected app 'test', got %v", entry["app"])
	}
	if entry["message"] != "spawned" {
		t.Errorf("expected message 'spawned', got %v", entry["message"])
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: FormatJSON, Output: &buf})

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}

	log.Warn().Msg("shown")
	if buf.Len() == 0 {
		t.Error("expected warn to be written")
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	log := WithField(New(Config{Format: FormatJSON, Output: &buf}), "terminal", "abc")
	log.Info().Msg("x")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["terminal"] != "abc" {
		t.Errorf("expected terminal field 'abc', got %v", entry["terminal"])
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
}

func TestNew_ConsoleToFileHasNoColor(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	log := New(Config{Level: "info", Format: FormatConsole, Output: f})
	log.Info().Str("shell", "/bin/sh").Msg("spawned")

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "spawned") {
		t.Errorf("expected message in output, got %q", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Errorf("expected no color escapes, got %q", data)
	}
}
