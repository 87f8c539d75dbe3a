package iq

import (
	"github.com/mccnc/tx-tools/internal/logging"
)

// Frame size bounds for the chunked output writer.
const (
	DefaultSampleRate = 2048000
	DefaultFrameSize  = 16 * 16384
	MinFrameSize      = 512
	MaxFrameSize      = 256 * 16384

	// DefaultStepWidthUs is the pulse shaping edge width when none is given.
	DefaultStepWidthUs = 50
)

// RenderConfig carries every knob the renderer recognizes. NoiseFloor,
// NoiseSignal and Gain are sign-encoded levels: negative means dBFS,
// non-negative means a linear amplitude multiplier.
type RenderConfig struct {
	SampleRate  int     // samples per second
	NoiseFloor  float64 // noise level during silence and tones, 0 is off
	NoiseSignal float64 // extra noise on top of tones, 0 is off
	Gain        float64 // overall signal gain, 0 is 0 dBFS
	FilterRatio float64 // pulse filter cutoff ratio, 0 is off
	StepWidthUs int     // pulse shaping edge width in microseconds
	FrameSize   int     // output write granularity in bytes
	FullScale   float64 // output full scale limit, 0 is the format default
	Format      Format
}

// DefaultRenderConfig returns the renderer defaults.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		SampleRate:  DefaultSampleRate,
		FrameSize:   DefaultFrameSize,
		StepWidthUs: DefaultStepWidthUs,
		Format:      CU8,
	}
}

// Normalize repairs recoverable configuration problems in place. An
// out-of-range frame size is reset to the default with a warning instead
// of aborting the run.
func (c *RenderConfig) Normalize(log logging.Logger) {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FrameSize < MinFrameSize || c.FrameSize > MaxFrameSize {
		log.Warn("output frame size out of range, falling back to default",
			logging.F("frame_size", c.FrameSize),
			logging.F("min", MinFrameSize),
			logging.F("max", MaxFrameSize),
			logging.F("default", DefaultFrameSize))
		c.FrameSize = DefaultFrameSize
	}
	if c.StepWidthUs <= 0 {
		c.StepWidthUs = DefaultStepWidthUs
	}
	if c.FilterRatio < 0 {
		c.FilterRatio = 0
	}
	if c.FullScale < 0 {
		c.FullScale = 0
	}
}
