// Package mix combines multiple I/Q sample streams into one. Inputs are
// read in lock-step blocks, converted from unsigned-centered bytes to a
// signed accumulator, gain-scaled, summed and written back out as
// unsigned-centered bytes.
package mix

import (
	"errors"
	"fmt"
	"io"

	"github.com/mccnc/tx-tools/internal/logging"
)

// MaxInputs bounds the number of sources mixed per run.
const MaxInputs = 32

// Input is one open sample source with its linear amplitude gain.
type Input struct {
	Reader io.Reader
	Path   string
	Gain   float64
}

// Mixer sums CU8 sample streams block by block. The transfer and
// accumulator buffers are owned by the run loop and reused in place each
// iteration.
type Mixer struct {
	frameSize int
	log       logging.Logger

	cu8 []byte
	cs8 []int8
}

// New returns a Mixer reading and writing blocks of frameSize bytes.
func New(frameSize int, log logging.Logger) (*Mixer, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", frameSize)
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Mixer{
		frameSize: frameSize,
		log:       log,
		cu8:       make([]byte, frameSize),
		cs8:       make([]int8, frameSize),
	}, nil
}

// Run mixes the inputs into w until any source delivers a short block.
// The output length follows the shortest source: a block is trimmed to the
// smallest read of the iteration, and the first trimmed block is written
// and ends the run even if other inputs still hold data. Summation is
// 8-bit two's-complement and wraps on overflow rather than clipping. Read
// failures stop the loop cleanly after logging; a short write is fatal.
func (m *Mixer) Run(inputs []Input, w io.Writer) error {
	if len(inputs) == 0 {
		return errors.New("no inputs")
	}
	if len(inputs) > MaxInputs {
		return fmt.Errorf("too many inputs: %d (limit %d)", len(inputs), MaxInputs)
	}

	var total int64
	for {
		r1, err := m.readBlock(inputs[0])
		if err != nil {
			return err
		}
		writeSize := r1

		// convert and attenuate the first input
		if inputs[0].Gain == 1.0 {
			for k := 0; k < r1; k++ {
				m.cs8[k] = int8(int(m.cu8[k]) - 128)
			}
		} else {
			for k := 0; k < r1; k++ {
				m.cs8[k] = int8(int(float64(int(m.cu8[k])-128) * inputs[0].Gain))
			}
		}
		for k := r1; k < m.frameSize; k++ {
			m.cs8[k] = 0
		}

		// accumulate the remaining inputs
		for i := 1; i < len(inputs); i++ {
			rn, err := m.readBlock(inputs[i])
			if err != nil {
				return err
			}
			if rn < writeSize {
				writeSize = rn
			}
			for k := 0; k < rn; k++ {
				m.cs8[k] += int8(int(float64(int(m.cu8[k])-128) * inputs[i].Gain))
			}
		}

		// back to unsigned-centered wire format
		for k := 0; k < writeSize; k++ {
			m.cu8[k] = uint8(int(m.cs8[k]) + 128)
		}

		n, err := w.Write(m.cu8[:writeSize])
		if err != nil || n != writeSize {
			m.log.Error("failed to write output",
				logging.F("bytes", writeSize), logging.F("written", n), logging.F("err", err))
			if err != nil {
				return fmt.Errorf("write %d bytes: %w", writeSize, err)
			}
			return fmt.Errorf("short write: %d of %d bytes", n, writeSize)
		}
		total += int64(n)

		if writeSize != m.frameSize {
			m.log.Info("done", logging.F("bytes", total))
			return nil
		}
	}
}

// readBlock fills the transfer buffer from one input, returning how many
// bytes arrived. End of stream is not an error; anything else is logged
// and returned.
func (m *Mixer) readBlock(in Input) (int, error) {
	n, err := io.ReadFull(in.Reader, m.cu8)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	if err != nil {
		m.log.Error("failed to read input",
			logging.F("path", in.Path), logging.F("bytes", m.frameSize), logging.F("err", err))
		return n, fmt.Errorf("read %q: %w", in.Path, err)
	}
	return n, nil
}
