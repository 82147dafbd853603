package klog

import (
	"bytes"
	"strings"
	"testing"
)

type panicHalter struct{ called bool }

func (p *panicHalter) HaltForever() { p.called = true; panic("halt") }

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, 256, Warn, nil)
	l.Debugf("should not appear")
	l.Infof("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below the minimum level, got %q", buf.String())
	}
	l.Warnf("hello %d", 7)
	if !strings.Contains(buf.String(), "hello 7") {
		t.Fatalf("expected warning to appear, got %q", buf.String())
	}
}

func TestFatalHalts(t *testing.T) {
	var buf bytes.Buffer
	h := &panicHalter{}
	l := New(&buf, 256, Debug, h)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected Fatalf to halt (panic via the test Halter)")
		}
		if !h.called {
			t.Fatalf("HaltForever was never invoked")
		}
		if !strings.Contains(buf.String(), "FATAL") {
			t.Fatalf("expected FATAL line to be flushed before halting, got %q", buf.String())
		}
	}()
	l.Fatalf("unrecoverable: %s", "out of frames")
}

func TestRingDropsOldestOnOverflow(t *testing.T) {
	r := newRing(4)
	r.Write([]byte("abcdef"))
	got := r.Drain()
	if string(got) != "cdef" {
		t.Fatalf("ring = %q, want %q", got, "cdef")
	}
}
