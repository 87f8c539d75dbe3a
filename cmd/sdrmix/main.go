// Command sdrmix sums multiple I/Q sample files into one stream with a
// per-file gain. Inputs are consumed in lock-step blocks and the run ends
// with the shortest input.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mccnc/tx-tools/internal/iq"
	"github.com/mccnc/tx-tools/internal/logging"
	"github.com/mccnc/tx-tools/internal/mix"
	"github.com/mccnc/tx-tools/internal/units"
)

const version = "0.1"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	inputs    inputFlags
	frameSize int
	outPath   string
	verbosity int
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &options{frameSize: iq.DefaultFrameSize}
	cmd := &cobra.Command{
		Use:   "sdrmix",
		Short: "SDR I/Q sample file mixer",
		Long: `sdrmix reads several I/Q sample files block by block, applies a per-file
gain and writes the sum. Each -r adds an input at gain 1.0; a following -g
changes that input's gain. The run stops when the shortest input ends.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	fs := cmd.Flags()
	fs.VarP(metricIntValue{&opts.frameSize}, "block-size", "b", "block size in bytes")
	fs.VarP(opts.inputs.pathField(), "read", "r", "add a file to read samples from ('-' reads from stdin)")
	fs.VarP(opts.inputs.gainField(), "gain", "g",
		"gain for the current file, dBFS if negative or multiplier, 1 is 0 dBFS")
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

	inputs := opts.inputs.inputs
	if len(inputs) == 0 || inputs[0].Path == "" {
		return fmt.Errorf("no inputs")
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for i := range inputs {
		if inputs[i].Path == "-" {
			inputs[i].Reader = os.Stdin
			continue
		}
		f, err := os.Open(inputs[i].Path)
		if err != nil {
			return fmt.Errorf("open input %q: %w", inputs[i].Path, err)
		}
		inputs[i].Reader = f
		closers = append(closers, f)
	}

	var out io.Writer = os.Stdout
	if opts.outPath == "-" {
		log.Info("output to stdout")
	} else {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("open output %q: %w", opts.outPath, err)
		}
		out = f
		closers = append(closers, f)
	}

	m, err := mix.New(opts.frameSize, log)
	if err != nil {
		return err
	}
	return m.Run(inputs, out)
}

var (
	_ pflag.Value = (*inputPath)(nil)
	_ pflag.Value = (*inputGain)(nil)
	_ pflag.Value = metricIntValue{}
)

// inputFlags accumulates the order-sensitive -r/-g pairs. Each -r adds an
// input at gain 1.0, -g modifies the most recent one.
type inputFlags struct {
	inputs []mix.Input
}

func (f *inputFlags) pathField() *inputPath { return &inputPath{flags: f} }
func (f *inputFlags) gainField() *inputGain { return &inputGain{flags: f} }

func (f *inputFlags) current() *mix.Input {
	if len(f.inputs) == 0 {
		f.inputs = append(f.inputs, mix.Input{Gain: 1.0})
	}
	return &f.inputs[len(f.inputs)-1]
}

type inputPath struct{ flags *inputFlags }

func (p *inputPath) Set(s string) error {
	if p.flags.current().Path != "" {
		p.flags.inputs = append(p.flags.inputs, mix.Input{})
	}
	cur := p.flags.current()
	cur.Path = s
	cur.Gain = 1.0
	return nil
}

func (p *inputPath) String() string { return "" }
func (p *inputPath) Type() string   { return "file" }

type inputGain struct{ flags *inputFlags }

func (g *inputGain) Set(s string) error {
	v, err := units.Metric(s)
	if err != nil {
		return err
	}
	g.flags.current().Gain = units.Amplitude(v)
	return nil
}

func (g *inputGain) String() string { return "" }
func (g *inputGain) Type() string   { return "level" }

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
