package units

import (
	"math"
	"testing"
)

func TestMetric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"2048k", 2048000},
		{"1.5M", 1500000},
		{"159M", 159000000},
		{"1G", 1e9},
		{"4000", 4000},
		{"-20", -20},
		{"0.4", 0.4},
	}
	for _, c := range cases {
		got, err := Metric(c.in)
		if err != nil {
			t.Fatalf("Metric(%q) failed: %v", c.in, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("Metric(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMetricRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "12q3", "k"} {
		if _, err := Metric(in); err == nil {
			t.Fatalf("Metric(%q) expected error", in)
		}
	}
}

func TestMetricUintRejectsNegative(t *testing.T) {
	if _, err := MetricUint("-2k"); err == nil {
		t.Fatalf("expected error for negative value")
	}
}

func TestAmplitude(t *testing.T) {
	if got := Amplitude(-20); math.Abs(got-0.1) > 1e-9 {
		t.Fatalf("Amplitude(-20) = %v, want 0.1", got)
	}
	if got := Amplitude(0.5); got != 0.5 {
		t.Fatalf("Amplitude(0.5) = %v, want passthrough", got)
	}
	if got := Amplitude(0); got != 0 {
		t.Fatalf("Amplitude(0) = %v, want 0", got)
	}
}
