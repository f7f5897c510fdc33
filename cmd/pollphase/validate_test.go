package main

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunValidate_ValidConfig(t *testing.T) {
	path := writeConfig(t, fastScenario+"sink:\n  type: log\n")

	out, err := execute(t, io.Discard, "validate", "-c", path)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, phrase := range []string{
		"Config is valid!",
		"Poll interval: 5ms",
		"Grace period:  30ms",
		"3 initial + 2 added in 2 steps",
		"Sink:          log",
	} {
		if !strings.Contains(out, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, out)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "additions:\n  - after: 1s\n")

	_, err := execute(t, io.Discard, "validate", "-c", path)
	if err == nil {
		t.Fatal("validate command should return error for invalid config")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error = %v, want 'invalid config'", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := execute(t, io.Discard, "validate", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("validate command should return error for missing file")
	}
}

func TestRunValidate_MissingFlag(t *testing.T) {
	_, err := execute(t, io.Discard, "validate")
	if err == nil || !strings.Contains(err.Error(), "config") {
		t.Errorf("validate command error = %v, want missing config flag", err)
	}
}
