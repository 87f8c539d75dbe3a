package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestInputFlagGrouping(t *testing.T) {
	var f inputFlags
	path := f.pathField()
	gain := f.gainField()

	// -r a.cu8 -g 0.5 -r b.cu8 -r - -g -20
	steps := []struct {
		field interface{ Set(string) error }
		value string
	}{
		{path, "a.cu8"}, {gain, "0.5"},
		{path, "b.cu8"},
		{path, "-"}, {gain, "-20"},
	}
	for _, s := range steps {
		if err := s.field.Set(s.value); err != nil {
			t.Fatalf("Set(%q) failed: %v", s.value, err)
		}
	}

	if len(f.inputs) != 3 {
		t.Fatalf("got %d inputs, want 3: %+v", len(f.inputs), f.inputs)
	}
	if f.inputs[0].Path != "a.cu8" || f.inputs[0].Gain != 0.5 {
		t.Fatalf("input 0 = %+v", f.inputs[0])
	}
	if f.inputs[1].Path != "b.cu8" || f.inputs[1].Gain != 1.0 {
		t.Fatalf("input 1 must default to gain 1.0, got %+v", f.inputs[1])
	}
	if f.inputs[2].Path != "-" || math.Abs(f.inputs[2].Gain-0.1) > 1e-9 {
		t.Fatalf("input 2 gain must decode -20 dBFS to 0.1, got %+v", f.inputs[2])
	}
}

func TestGainBeforeAnyInputIsNotEnough(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"-g", "0.5", "-w", "-"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("a gain without any input path must be rejected")
	}
}

func TestMixEndToEnd(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.cu8")
	bPath := filepath.Join(dir, "b.cu8")
	outPath := filepath.Join(dir, "out.cu8")

	// a: two full blocks of centered +72, b: one block plus 10 bytes of centered -28
	if err := os.WriteFile(aPath, bytes.Repeat([]byte{200}, 128), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := os.WriteFile(bPath, bytes.Repeat([]byte{100}, 74), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cmd := newRootCmd()
	cmd.SetArgs([]string{"-b", "64", "-r", aPath, "-r", bPath, "-w", outPath})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(out) != 74 {
		t.Fatalf("output length %d, want 74 (shortest input)", len(out))
	}
	for i, v := range out {
		if v != 128+72-28 {
			t.Fatalf("byte %d = %d, want %d", i, v, 128+72-28)
		}
	}
}

func TestRejectsUnknownLogFormat(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"-r", "-", "--log-format", "yaml", "-w", filepath.Join(t.TempDir(), "out.cu8")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("unknown log format must be rejected")
	}
}

func TestMissingInputFileFails(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"-r", "/does/not/exist.cu8", "-w", "-"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("unopenable input must be a fatal startup error")
	}
}
