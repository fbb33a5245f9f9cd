package logger

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{Level: level, Output: &buf})
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(WARN)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("Messages below WARN were written: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") {
		t.Errorf("Missing warn line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("Missing error line: %q", out)
	}
}

func TestWithPrefix(t *testing.T) {
	l, buf := newTestLogger(DEBUG)

	child := l.With("[batch 42]").With("[file a.wav]")
	child.Infof("done")

	if got := strings.TrimSpace(buf.String()); got != "[INFO] [batch 42] [file a.wav] done" {
		t.Errorf("Unexpected line: %q", got)
	}

	l.SetLevel(ERROR)
	buf.Reset()
	child.Infof("hidden")
	if buf.Len() != 0 {
		t.Errorf("Child ignored the parent's level: %q", buf.String())
	}
}

func TestMessageWithoutArgs(t *testing.T) {
	l, buf := newTestLogger(DEBUG)
	msg := "100% literal"
	l.Infof(msg)
	if !strings.Contains(buf.String(), "100% literal") {
		t.Errorf("Literal message was formatted: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level LogLevel
		ok    bool
	}{
		{"debug", DEBUG, true},
		{" INFO ", INFO, true},
		{"warning", WARN, true},
		{"Error", ERROR, true},
		{"fatal", FATAL, true},
		{"loud", INFO, false},
		{"", INFO, false},
	}
	for _, tt := range tests {
		level, ok := ParseLevel(tt.in)
		if level != tt.level || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), expected (%v, %v)", tt.in, level, ok, tt.level, tt.ok)
		}
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Errorf("nothing to see")
	if l.Level() <= FATAL {
		t.Error("Discard logger should be above every level")
	}
}
