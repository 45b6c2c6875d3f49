package logger

import (
	"bytes"
	"os"
	"testing"
)

// reset restores the package defaults after a test.
func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestLevels_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("building layer %d", 1)
	Info("created %d nodes", 4)
	Warn("summary search failed: %s", "timeout")

	want := "[DEBUG] building layer 1\n[INFO] created 4 nodes\n[WARN] summary search failed: timeout\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestLevels_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("hidden")
	Info("hidden")
	Warn("hidden")
	Section("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output when not verbose, got %q", buf.String())
	}
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("RAPTOR Build")

	if got := buf.String(); got != "\n=== RAPTOR Build ===\n" {
		t.Errorf("unexpected output: %q", got)
	}
}
