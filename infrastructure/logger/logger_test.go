package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

type bufferWriteCloser struct {
	sync.Mutex
	bytes.Buffer
	closed bool
}

func (b *bufferWriteCloser) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.Buffer.Write(p)
}

func (b *bufferWriteCloser) Close() error {
	b.Lock()
	defer b.Unlock()
	b.closed = true
	return nil
}

func (b *bufferWriteCloser) String() string {
	b.Lock()
	defer b.Unlock()
	return b.Buffer.String()
}

func TestBackendFiltersByWriterLevel(t *testing.T) {
	backend := NewBackendWithFlags(0)
	all := &bufferWriteCloser{}
	warnings := &bufferWriteCloser{}
	if err := backend.AddLogWriter(all, LevelTrace); err != nil {
		t.Fatalf("AddLogWriter: %s", err)
	}
	if err := backend.AddLogWriter(warnings, LevelWarn); err != nil {
		t.Fatalf("AddLogWriter: %s", err)
	}
	if err := backend.Run(); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if err := backend.AddLogWriter(&bufferWriteCloser{}, LevelInfo); err == nil {
		t.Fatalf("AddLogWriter unexpectedly succeeded on a running backend")
	}

	log := backend.Logger("TEST")
	log.SetLevel(LevelDebug)
	log.Tracef("filtered %d", 1)
	log.Debugf("debug %d", 2)
	log.Warnf("warn %d", 3)
	backend.Close()

	if strings.Contains(all.String(), "filtered") {
		t.Fatalf("trace message was written although the logger level is debug")
	}
	if !strings.Contains(all.String(), "[DBG] TEST: debug 2") {
		t.Fatalf("missing debug message, got: %q", all.String())
	}
	if strings.Contains(warnings.String(), "debug 2") {
		t.Fatalf("debug message reached the warn writer")
	}
	if !strings.Contains(warnings.String(), "[WRN] TEST: warn 3") {
		t.Fatalf("missing warn message, got: %q", warnings.String())
	}
	if !all.closed || !warnings.closed {
		t.Fatalf("Close did not close the writers")
	}
}

func TestParseAndSetLogLevels(t *testing.T) {
	RegisterSubSystem("TSTA")
	RegisterSubSystem("TSTB")

	tests := []struct {
		input       string
		expectError bool
		levelA      Level
		levelB      Level
	}{
		{input: "debug", levelA: LevelDebug, levelB: LevelDebug},
		{input: "TSTA=trace,TSTB=warn", levelA: LevelTrace, levelB: LevelWarn},
		{input: "nonsense", expectError: true},
		{input: "TSTA", expectError: true},
		{input: "NOPE=info", expectError: true},
		{input: "TSTA=loud", expectError: true},
	}

	for _, test := range tests {
		err := ParseAndSetLogLevels(test.input)
		if test.expectError {
			if err == nil {
				t.Fatalf("ParseAndSetLogLevels(%q): expected an error", test.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAndSetLogLevels(%q): %s", test.input, err)
		}
		if level := RegisterSubSystem("TSTA").Level(); level != test.levelA {
			t.Fatalf("ParseAndSetLogLevels(%q): TSTA level is %s, want %s", test.input, level, test.levelA)
		}
		if level := RegisterSubSystem("TSTB").Level(); level != test.levelB {
			t.Fatalf("ParseAndSetLogLevels(%q): TSTB level is %s, want %s", test.input, level, test.levelB)
		}
	}
	SetLogLevels("off")
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		ok       bool
	}{
		{"trace", LevelTrace, true},
		{"DBG", LevelDebug, true},
		{" Warning ", LevelWarn, true},
		{"crt", LevelCritical, true},
		{"off", LevelOff, true},
		{"loud", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, test := range tests {
		level, ok := LevelFromString(test.input)
		if level != test.expected || ok != test.ok {
			t.Fatalf("LevelFromString(%q): got (%s, %t), want (%s, %t)",
				test.input, level, ok, test.expected, test.ok)
		}
	}
	if Level(42).String() != "OFF" {
		t.Fatalf("an out of range level isn't printed as OFF")
	}
}
