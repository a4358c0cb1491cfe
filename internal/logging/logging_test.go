package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    log.Level
	}{
		{"", false, log.WarnLevel},
		{"bogus", false, log.WarnLevel},
		{"info", false, log.InfoLevel},
		{"DEBUG", false, log.DebugLevel},
		{"error", true, log.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(&bytes.Buffer{}, tt.level, tt.verbose)
			if got := l.GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewWritesPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", false)
	l.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "dev") || !strings.Contains(out, "hello") {
		t.Errorf("output = %q, want prefix and message", out)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return the given logger")
	}
}
