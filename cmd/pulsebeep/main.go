// Command pulsebeep generates a beep pulse I/Q waveform. A set of periodic
// beacon definitions is scheduled into a tone/silence timeline which is
// rendered to a sample file or stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mccnc/tx-tools/internal/dsp"
	"github.com/mccnc/tx-tools/internal/iq"
	"github.com/mccnc/tx-tools/internal/logging"
	"github.com/mccnc/tx-tools/internal/pulse"
	"github.com/mccnc/tx-tools/internal/units"
)

const version = "0.1"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	beacons   beaconFlags
	cfg       iq.RenderConfig
	seed      int64
	capacity  int
	outPath   string
	verbosity int
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &options{
		cfg:      iq.DefaultRenderConfig(),
		seed:     1,
		capacity: pulse.DefaultCapacity,
	}
	cmd := &cobra.Command{
		Use:     "pulsebeep",
		Short:   "beep pulse I/Q waveform generator",
		Long: `pulsebeep builds a timed schedule from periodic beacon definitions and
renders it to an I/Q sample stream. Each -f adds a new beacon; -a, -l and
-i apply to the most recent one. The output sample format is derived from
the destination file extension (.cu8, .cs8, .cs16, .cf32).`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	fs := cmd.Flags()
	fs.VarP(metricIntValue{&opts.cfg.SampleRate}, "sample-rate", "s", "sample rate in Hz")
	fs.VarP(opts.beacons.field(true, func(b *pulse.Beacon, v int) { b.FreqHz = v }),
		"frequency", "f", "add a new beep at this frequency in Hz")
	fs.VarP(opts.beacons.field(false, func(b *pulse.Beacon, v int) { b.AttenDB = v }),
		"attenuation", "a", "attenuation of the current beep in dB")
	fs.VarP(opts.beacons.field(false, func(b *pulse.Beacon, v int) { b.LengthMs = v }),
		"length", "l", "length of the current beep in ms")
	fs.VarP(opts.beacons.field(false, func(b *pulse.Beacon, v int) { b.IntervalMs = v }),
		"interval", "i", "repeat interval of the current beep in ms")
	fs.VarP(metricFloatValue{&opts.cfg.NoiseFloor}, "noise-floor", "n",
		"noise floor, dBFS if negative or multiplier, 0 is off")
	fs.VarP(metricFloatValue{&opts.cfg.NoiseSignal}, "noise-signal", "N",
		"noise on signal, dBFS if negative or multiplier, 0 is off")
	fs.VarP(metricFloatValue{&opts.cfg.Gain}, "gain", "g",
		"signal gain, dBFS if negative or multiplier, 0 is 0 dBFS")
	fs.VarP(metricFloatValue{&opts.cfg.FilterRatio}, "filter-ratio", "W", "pulse filter cutoff ratio")
	fs.VarP(metricIntValue{&opts.cfg.StepWidthUs}, "step-width", "G", "pulse shaping step width in us")
	fs.VarP(metricIntValue{&opts.cfg.FrameSize}, "block-size", "b", "output block size in bytes")
	fs.VarP(metricFloatValue{&opts.cfg.FullScale}, "full-scale", "M",
		"limit the output full scale, e.g. 2048 with CS16")
	fs.Int64VarP(&opts.seed, "seed", "S", 1, "random seed for reproducible output")
	fs.IntVar(&opts.capacity, "segments", pulse.DefaultCapacity, "timeline capacity in segments")
	fs.StringVarP(&opts.outPath, "write", "w", "-", "write samples to file ('-' writes to stdout)")
	fs.CountVarP(&opts.verbosity, "verbose", "v", "increase verbosity (can be used multiple times)")
	fs.StringVar(&opts.logFormat, "log-format", "text", "diagnostic log format (text|json)")
	return cmd
}

func run(opts *options) error {
	format, err := logging.ParseFormat(opts.logFormat)
	if err != nil {
		return err
	}
	log := logging.Stderr(opts.verbosity, format)

	if opts.outPath == "-" {
		log.Info("output to stdout")
	}
	opts.cfg.Format = iq.DetectFormat(opts.outPath)
	log.Info("output format", logging.F("format", opts.cfg.Format))
	opts.cfg.Normalize(log)

	rng := rand.New(rand.NewSource(opts.seed))
	tones, err := pulse.Plan(opts.beacons.beacons, opts.capacity, rng)
	if err != nil {
		return err
	}

	for _, b := range opts.beacons.beacons {
		log.Info("beacon",
			logging.F("freq_hz", b.FreqHz), logging.F("atten_db", b.AttenDB),
			logging.F("length_ms", b.LengthMs), logging.F("interval_ms", b.IntervalMs))
	}
	if opts.verbosity > 1 {
		for _, t := range tones {
			log.Debug("segment",
				logging.F("freq_hz", t.FreqHz), logging.F("level_db", t.LevelDB),
				logging.F("duration_us", t.DurationUs))
		}
	}
	log.Debug("signal length",
		logging.F("us", iq.LengthUS(tones)),
		logging.F("samples", iq.LengthSamples(opts.cfg, tones)))

	out, closeOut, err := openOutput(opts.outPath)
	if err != nil {
		return err
	}
	defer closeOut()

	renderOut := io.Writer(out)
	var capture *sampleCapture
	if opts.verbosity > 1 {
		capture = newSpectrumCapture(opts.cfg, tones, out)
		renderOut = capture
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGPIPE)
	defer stop()

	if err := iq.Render(ctx, renderOut, opts.cfg, tones, rng); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("signal caught, exiting")
			return nil
		}
		return err
	}
	if capture != nil {
		reportSpectrum(log, opts.cfg, capture.buf)
	}
	return nil
}

// spectrumWindow is the number of samples analyzed for the -vv spectrum
// report.
const spectrumWindow = 4096

// newSpectrumCapture tees a window of the rendered stream, skipping the
// leading silence segments so the window lands on the first beacon tone.
func newSpectrumCapture(cfg iq.RenderConfig, tones []pulse.Tone, w io.Writer) *sampleCapture {
	var lead []pulse.Tone
	for _, t := range tones {
		if t.FreqHz != 0 {
			break
		}
		lead = append(lead, t)
	}
	bps := cfg.Format.BytesPerSample()
	return &sampleCapture{
		w:    w,
		skip: iq.LengthSamples(cfg, lead) * int64(bps),
		max:  spectrumWindow * bps,
	}
}

func reportSpectrum(log logging.Logger, cfg iq.RenderConfig, head []byte) {
	samples := cfg.Format.Samples(head, cfg.FullScale)
	if len(samples) == 0 {
		return
	}
	spectrum := dsp.Spectrum(samples)
	peak := dsp.PeakBin(spectrum)
	log.Debug("spectrum",
		logging.F("window", len(samples)),
		logging.F("peak_hz", int64(dsp.BinFrequency(peak, len(samples), float64(cfg.SampleRate)))),
		logging.F("peak_dbfs", fmt.Sprintf("%.1f", spectrum[peak])))
}

// sampleCapture passes the rendered stream through while keeping a copy
// of one analysis window.
type sampleCapture struct {
	w    io.Writer
	skip int64
	max  int
	buf  []byte
}

func (c *sampleCapture) Write(p []byte) (int, error) {
	head := p
	if c.skip > 0 {
		if int64(len(head)) <= c.skip {
			c.skip -= int64(len(head))
			head = nil
		} else {
			head = head[c.skip:]
			c.skip = 0
		}
	}
	if len(c.buf) < c.max && len(head) > 0 {
		take := c.max - len(c.buf)
		if take > len(head) {
			take = len(head)
		}
		c.buf = append(c.buf, head[:take]...)
	}
	return c.w.Write(p)
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open output %q: %w", path, err)
	}
	return f, f.Close, nil
}

var (
	_ pflag.Value = (*beaconField)(nil)
	_ pflag.Value = metricIntValue{}
	_ pflag.Value = metricFloatValue{}
)

// beaconFlags accumulates the order-sensitive -f/-a/-l/-i flags. Each -f
// starts a new beacon, the other fields modify the most recent one.
type beaconFlags struct {
	beacons []pulse.Beacon
}

func (b *beaconFlags) field(fresh bool, set func(*pulse.Beacon, int)) *beaconField {
	return &beaconField{flags: b, fresh: fresh, set: set}
}

func (b *beaconFlags) current() *pulse.Beacon {
	if len(b.beacons) == 0 {
		b.beacons = append(b.beacons, pulse.Beacon{})
	}
	return &b.beacons[len(b.beacons)-1]
}

type beaconField struct {
	flags *beaconFlags
	fresh bool
	set   func(*pulse.Beacon, int)
}

func (f *beaconField) Set(s string) error {
	v, err := units.MetricInt(s)
	if err != nil {
		return err
	}
	if f.fresh && f.flags.current().FreqHz != 0 {
		f.flags.beacons = append(f.flags.beacons, pulse.Beacon{})
	}
	f.set(f.flags.current(), v)
	return nil
}

func (f *beaconField) String() string { return "" }
func (f *beaconField) Type() string   { return "metric" }

type metricIntValue struct{ v *int }

func (m metricIntValue) Set(s string) error {
	n, err := units.MetricInt(s)
	if err != nil {
		return err
	}
	*m.v = n
	return nil
}

func (m metricIntValue) String() string { return fmt.Sprintf("%d", *m.v) }
func (m metricIntValue) Type() string   { return "metric" }

type metricFloatValue struct{ v *float64 }

func (m metricFloatValue) Set(s string) error {
	f, err := units.Metric(s)
	if err != nil {
		return err
	}
	*m.v = f
	return nil
}

func (m metricFloatValue) String() string { return fmt.Sprintf("%g", *m.v) }
func (m metricFloatValue) Type() string   { return "metric" }
