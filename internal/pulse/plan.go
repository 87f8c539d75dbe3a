// Package pulse builds timed tone/silence schedules from periodic beacon
// definitions. The resulting timeline is handed to the iq renderer.
package pulse

import (
	"fmt"
	"math"
	"math/rand"
)

// MaxBeacons bounds the number of beacon definitions accepted per run.
const MaxBeacons = 32

// DefaultCapacity is the reference timeline length in segments.
const DefaultCapacity = 30

// SilenceDB is the level used for gap segments.
const SilenceDB = -99

// leadInUs is the fixed silence emitted before the first beacon fires.
const leadInUs = 500 * 1000

// Beacon describes one periodic tone source.
type Beacon struct {
	FreqHz     int // carrier offset in Hz
	AttenDB    int // tone level in dB
	LengthMs   int // pulse length in ms
	IntervalMs int // repeat interval in ms
}

// Tone is one contiguous segment of the output timeline.
// FreqHz 0 means silence.
type Tone struct {
	FreqHz     int
	LevelDB    int
	DurationUs int
}

// Validate rejects beacon definitions the scheduler cannot handle.
func Validate(beacons []Beacon) error {
	if len(beacons) == 0 {
		return fmt.Errorf("no beacons defined")
	}
	if len(beacons) > MaxBeacons {
		return fmt.Errorf("too many beacons: %d (limit %d)", len(beacons), MaxBeacons)
	}
	for i, b := range beacons {
		if b.FreqHz == 0 {
			return fmt.Errorf("beacon %d has no frequency", i)
		}
		if b.IntervalMs <= 0 {
			return fmt.Errorf("beacon %d interval must be positive, got %d ms", i, b.IntervalMs)
		}
		if b.LengthMs <= 0 {
			return fmt.Errorf("beacon %d pulse length must be positive, got %d ms", i, b.LengthMs)
		}
	}
	return nil
}

// Plan interleaves the beacons into a time-ordered tone/silence sequence of
// at most capacity segments. The schedule starts with a fixed lead-in
// silence and then alternates gap silence and beacon tone until the
// capacity guard is reached; it is slot-bounded, not time-bounded.
//
// Each beacon's phase is drawn from rng as a countdown in [1, interval], so
// the same seed reproduces the same timeline. When several beacons come due
// on the same step the earliest-defined one sounds and all coincident
// beacons reset to their full interval.
func Plan(beacons []Beacon, capacity int, rng *rand.Rand) ([]Tone, error) {
	if err := Validate(beacons); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	tones := make([]Tone, 0, capacity)
	tones = append(tones, Tone{FreqHz: 0, LevelDB: SilenceDB, DurationUs: leadInUs})

	// countdown[i] is the time in ms until beacon i next fires
	countdown := make([]int, len(beacons))
	for i, b := range beacons {
		countdown[i] = rng.Intn(b.IntervalMs) + 1
	}

	for len(tones) < capacity-2 {
		gap := math.MaxInt
		sel := 0
		for i, c := range countdown {
			if c < gap {
				gap = c
				sel = i
			}
		}

		tones = append(tones, Tone{FreqHz: 0, LevelDB: SilenceDB, DurationUs: gap * 1000})
		tones = append(tones, Tone{
			FreqHz:     beacons[sel].FreqHz,
			LevelDB:    beacons[sel].AttenDB,
			DurationUs: beacons[sel].LengthMs * 1000,
		})

		for i := range countdown {
			if countdown[i] <= gap {
				countdown[i] = beacons[i].IntervalMs
			} else {
				countdown[i] -= gap
			}
		}
	}

	return tones, nil
}
