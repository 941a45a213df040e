package scheduler

import (
	"bytes"
	"strings"
	"testing"
)

func TestTailBufferKeepsSuffix(t *testing.T) {
	b := newTailBuffer(8)
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defgh"))
	if got := b.String(); got != "abcdefgh" {
		t.Fatalf("got %q", got)
	}
	_, _ = b.Write([]byte("ij"))
	if got := b.String(); got != "cdefghij" {
		t.Fatalf("got %q", got)
	}
	_, _ = b.Write([]byte("0123456789XY"))
	if got := b.String(); got != "456789XY" {
		t.Fatalf("got %q", got)
	}
}

func TestTeeWritesBoth(t *testing.T) {
	var log bytes.Buffer
	c := newTailBuffer(0)
	w := tee(&log, c)
	_, _ = w.Write([]byte("line\n"))
	if log.String() != "line\n" || c.String() != "line\n" {
		t.Fatalf("log=%q capture=%q", log.String(), c.String())
	}
	if tee(nil, c) != c {
		t.Fatal("nil log should write to capture only")
	}
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		in   string
		name string
		args []string
	}{
		{"", shellPath, []string{shellFlag, noopScript}},
		{"sleep 30", "sleep", []string{"30"}},
		{"  python  -m scheduler ", "python", []string{"-m", "scheduler"}},
		{"sh -c 'echo hi'", shellPath, []string{shellFlag, "echo hi"}},
		{"/bin/sh -c \"run\"", shellPath, []string{shellFlag, "run"}},
		{"run > out.log", shellPath, []string{shellFlag, "run > out.log"}},
		{"echo $HOME", shellPath, []string{shellFlag, "echo $HOME"}},
	}
	for _, tc := range cases {
		name, args := splitCommand(tc.in)
		if name != tc.name || strings.Join(args, "\x00") != strings.Join(tc.args, "\x00") {
			t.Fatalf("splitCommand(%q) = %q %q, want %q %q", tc.in, name, args, tc.name, tc.args)
		}
	}
}

func TestErrorsCarryOutput(t *testing.T) {
	err := &StartError{Handle: "123", Output: "traceback", Err: ErrNotAlive}
	if !strings.Contains(err.Error(), "123") || !strings.Contains(err.Error(), "traceback") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	serr := &StopError{Handle: "scheduler", Output: "no such service", Err: ErrNotAlive}
	if !strings.Contains(serr.Error(), "stop failed") || !strings.Contains(serr.Error(), "no such service") {
		t.Fatalf("unexpected message %q", serr.Error())
	}
}
