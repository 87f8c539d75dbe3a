// Package iq renders tone timelines into interleaved I/Q sample streams
// and defines the sample formats and configuration shared with the
// command front-ends.
package iq

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/mccnc/tx-tools/internal/pulse"
	"github.com/mccnc/tx-tools/internal/units"
)

// LengthUS returns the total timeline duration in microseconds.
func LengthUS(tones []pulse.Tone) int64 {
	var us int64
	for _, t := range tones {
		us += int64(t.DurationUs)
	}
	return us
}

// LengthSamples returns the number of samples the timeline renders to at
// the configured sample rate.
func LengthSamples(cfg RenderConfig, tones []pulse.Tone) int64 {
	var n int64
	for _, t := range tones {
		n += sampleCount(t.DurationUs, cfg.SampleRate)
	}
	return n
}

func sampleCount(durationUs, sampleRate int) int64 {
	return int64(durationUs) * int64(sampleRate) / 1e6
}

// Render synthesizes the timeline into w, writing frame-sized blocks of
// interleaved I/Q samples. Cancellation of ctx is honored between frames
// and reported as the context's error; output written so far stays in
// place, so a canceled run leaves a truncated stream.
func Render(ctx context.Context, w io.Writer, cfg RenderConfig, tones []pulse.Tone, rng *rand.Rand) error {
	r := &renderer{cfg: cfg, rng: rng, w: w}
	r.gain = units.Amplitude(cfg.Gain)
	if cfg.Gain == 0 {
		r.gain = 1
	}
	r.noiseFloor = units.Amplitude(cfg.NoiseFloor)
	r.noiseSignal = units.Amplitude(cfg.NoiseSignal)
	r.fullScale = cfg.FullScale
	if r.fullScale == 0 {
		r.fullScale = cfg.Format.fullScale()
	}

	frameSamples := cfg.FrameSize / cfg.Format.BytesPerSample()
	if frameSamples < 1 {
		frameSamples = 1
	}
	r.buf = make([]byte, 0, frameSamples*cfg.Format.BytesPerSample())
	r.frameSamples = frameSamples

	for _, t := range tones {
		if err := r.renderTone(ctx, t); err != nil {
			return err
		}
	}
	return r.flush()
}

type renderer struct {
	cfg RenderConfig
	rng *rand.Rand
	w   io.Writer

	gain        float64
	noiseFloor  float64
	noiseSignal float64
	fullScale   float64

	buf          []byte
	bufSamples   int
	frameSamples int
	phase        float64
}

func (r *renderer) renderTone(ctx context.Context, t pulse.Tone) error {
	n := sampleCount(t.DurationUs, r.cfg.SampleRate)

	amp := 0.0
	if t.FreqHz != 0 {
		amp = units.DBToAmplitude(float64(t.LevelDB)) * r.gain
	}
	phaseInc := 2 * math.Pi * float64(t.FreqHz) / float64(r.cfg.SampleRate)
	edge := r.edgeSamples(n)

	for s := int64(0); s < n; s++ {
		env := envelope(s, n, edge)
		i := env * amp * math.Cos(r.phase)
		q := env * amp * math.Sin(r.phase)
		r.phase += phaseInc
		if r.phase > 2*math.Pi {
			r.phase -= 2 * math.Pi
		} else if r.phase < -2*math.Pi {
			r.phase += 2 * math.Pi
		}

		if amp != 0 && r.noiseSignal != 0 {
			i += r.noise(r.noiseSignal)
			q += r.noise(r.noiseSignal)
		}
		if r.noiseFloor != 0 {
			i += r.noise(r.noiseFloor)
			q += r.noise(r.noiseFloor)
		}

		r.buf = r.cfg.Format.appendSample(r.buf, i, q, r.fullScale)
		r.bufSamples++
		if r.bufSamples == r.frameSamples {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// edgeSamples sizes the raised-cosine attack/decay ramp. The step width
// sets the base edge; a filter ratio below one stretches it, emulating a
// narrower pulse filter.
func (r *renderer) edgeSamples(n int64) int64 {
	edgeUs := float64(r.cfg.StepWidthUs)
	if r.cfg.FilterRatio > 0 && r.cfg.FilterRatio < 1 {
		edgeUs /= r.cfg.FilterRatio
	}
	edge := int64(edgeUs * float64(r.cfg.SampleRate) / 1e6)
	if edge > n/2 {
		edge = n / 2
	}
	return edge
}

// envelope shapes sample s of n with raised-cosine edges to keep key
// clicks out of the spectrum.
func envelope(s, n, edge int64) float64 {
	if edge <= 0 {
		return 1
	}
	if s < edge {
		return 0.5 - 0.5*math.Cos(math.Pi*float64(s)/float64(edge))
	}
	if tail := n - 1 - s; tail < edge {
		return 0.5 - 0.5*math.Cos(math.Pi*float64(tail)/float64(edge))
	}
	return 1
}

func (r *renderer) noise(amp float64) float64 {
	return amp * (2*r.rng.Float64() - 1)
}

func (r *renderer) flush() error {
	if len(r.buf) == 0 {
		return nil
	}
	n, err := r.w.Write(r.buf)
	if err != nil {
		return fmt.Errorf("write %d bytes: %w", len(r.buf), err)
	}
	if n != len(r.buf) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(r.buf))
	}
	r.buf = r.buf[:0]
	r.bufSamples = 0
	return nil
}
