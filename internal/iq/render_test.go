package iq

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/mccnc/tx-tools/internal/dsp"
	"github.com/mccnc/tx-tools/internal/logging"
	"github.com/mccnc/tx-tools/internal/pulse"
)

func TestLengthDiagnostics(t *testing.T) {
	tones := []pulse.Tone{
		{FreqHz: 0, LevelDB: -99, DurationUs: 500000},
		{FreqHz: 159000000, LevelDB: -20, DurationUs: 14000},
	}
	if got := LengthUS(tones); got != 514000 {
		t.Fatalf("LengthUS = %d, want 514000", got)
	}
	cfg := DefaultRenderConfig()
	if got := LengthSamples(cfg, tones); got != 514000*2048000/1e6 {
		t.Fatalf("LengthSamples = %d", got)
	}
}

func TestNormalizeResetsFrameSize(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Warn, logging.Text, &buf)

	cfg := DefaultRenderConfig()
	cfg.FrameSize = 10
	cfg.Normalize(log)
	if cfg.FrameSize != DefaultFrameSize {
		t.Fatalf("frame size %d, want default %d", cfg.FrameSize, DefaultFrameSize)
	}
	if !strings.Contains(buf.String(), "falling back") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}

	buf.Reset()
	cfg.FrameSize = MinFrameSize
	cfg.Normalize(log)
	if cfg.FrameSize != MinFrameSize || buf.Len() != 0 {
		t.Fatalf("in-range frame size must pass through untouched")
	}
}

func TestRenderToneSpectrum(t *testing.T) {
	const (
		sampleRate = 102400
		toneHz     = 12800
	)
	cfg := DefaultRenderConfig()
	cfg.SampleRate = sampleRate
	cfg.FrameSize = 2048
	cfg.StepWidthUs = 100

	tones := []pulse.Tone{{FreqHz: toneHz, LevelDB: 0, DurationUs: 10000}} // 1024 samples

	var out bytes.Buffer
	err := Render(context.Background(), &out, cfg, tones, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if out.Len() != 1024*CU8.BytesPerSample() {
		t.Fatalf("unexpected output size %d", out.Len())
	}

	raw := out.Bytes()
	samples := make([]complex128, 1024)
	for i := range samples {
		samples[i] = complex(
			(float64(raw[2*i])-128)/127,
			(float64(raw[2*i+1])-128)/127)
	}
	spectrum := dsp.Spectrum(samples)
	peakHz := dsp.BinFrequency(dsp.PeakBin(spectrum), len(samples), sampleRate)
	if math.Abs(peakHz-toneHz) > 2*sampleRate/float64(len(samples)) {
		t.Fatalf("tone peak at %.0f Hz, want %.0f Hz", peakHz, float64(toneHz))
	}
}

func TestRenderSilenceStaysCentered(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.SampleRate = 100000
	cfg.FrameSize = 1024

	tones := []pulse.Tone{{FreqHz: 0, LevelDB: -99, DurationUs: 5000}}

	var out bytes.Buffer
	if err := Render(context.Background(), &out, cfg, tones, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for i, b := range out.Bytes() {
		if b != 128 {
			t.Fatalf("byte %d is %d, silence must stay centered at 128", i, b)
		}
	}
}

func TestRenderGainAttenuates(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.SampleRate = 100000
	cfg.FrameSize = 4096
	cfg.Gain = -20 // dBFS
	cfg.StepWidthUs = 0

	tones := []pulse.Tone{{FreqHz: 10000, LevelDB: 0, DurationUs: 10000}}
	var out bytes.Buffer
	if err := Render(context.Background(), &out, cfg, tones, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for i, b := range out.Bytes() {
		centered := int(b) - 128
		if centered > 14 || centered < -14 {
			t.Fatalf("byte %d is %d off center, -20 dB tone must stay within ~0.1 full scale", i, centered)
		}
	}
}

func TestRenderCancellation(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.SampleRate = 2048000
	cfg.FrameSize = 1024

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tones := []pulse.Tone{{FreqHz: 100000, LevelDB: 0, DurationUs: 1000000}}
	var out bytes.Buffer
	err := Render(ctx, &out, cfg, tones, rand.New(rand.NewSource(1)))
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Len()%cfg.FrameSize != 0 {
		t.Fatalf("canceled render must stop on a frame boundary, wrote %d bytes", out.Len())
	}
}

func TestEnvelopeShape(t *testing.T) {
	const n, edge = 100, 10
	if envelope(0, n, edge) != 0 {
		t.Fatalf("attack must start at zero")
	}
	if envelope(n-1, n, edge) != 0 {
		t.Fatalf("decay must end at zero")
	}
	if envelope(n/2, n, edge) != 1 {
		t.Fatalf("sustain must be unity")
	}
	for s := int64(1); s < edge; s++ {
		if envelope(s, n, edge) <= envelope(s-1, n, edge) {
			t.Fatalf("attack must be monotone at sample %d", s)
		}
	}
	if envelope(5, n, 0) != 1 {
		t.Fatalf("zero edge disables shaping")
	}
}
