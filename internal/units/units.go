// Package units parses metric-suffixed numeric literals ("2048k", "1.5M")
// and decodes the sign-encoded level convention used on the command line,
// where a negative value is a dBFS attenuation and a non-negative value is
// a linear amplitude multiplier.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metric parses a decimal literal with an optional k/M/G suffix.
func Metric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	scale := 1.0
	switch s[len(s)-1] {
	case 'k', 'K':
		scale = 1e3
		s = s[:len(s)-1]
	case 'M', 'm':
		scale = 1e6
		s = s[:len(s)-1]
	case 'G', 'g':
		scale = 1e9
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	return v * scale, nil
}

// MetricInt parses a metric literal and truncates it to an int.
func MetricInt(s string) (int, error) {
	v, err := Metric(s)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("numeric value %q out of range", s)
	}
	return int(v), nil
}

// MetricUint parses a metric literal and rejects negative values.
func MetricUint(s string) (uint, error) {
	v, err := Metric(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("numeric value %q must not be negative", s)
	}
	return uint(v), nil
}

// Amplitude converts a sign-encoded level to a linear amplitude.
// Negative levels are dBFS, non-negative levels pass through unchanged.
func Amplitude(level float64) float64 {
	if level < 0 {
		return math.Pow(10, level/20)
	}
	return level
}

// DBToAmplitude converts a dB value to a linear amplitude.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}
