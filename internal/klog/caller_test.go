package klog

import (
	"bytes"
	"strings"
	"testing"
)

func TestDumpCallersIncludesThisFile(t *testing.T) {
	var buf bytes.Buffer
	dumpCallers(&buf, 0, 4)
	if !strings.Contains(buf.String(), "caller_test.go") {
		t.Fatalf("expected a frame pointing at this test file, got %q", buf.String())
	}
}

func TestDumpCallersStopsAtTopOfStack(t *testing.T) {
	var buf bytes.Buffer
	dumpCallers(&buf, 0, 1000)
	if buf.Len() == 0 {
		t.Fatalf("expected at least one frame")
	}
}
