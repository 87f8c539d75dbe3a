// Package dsp holds the spectral helpers used to inspect rendered I/Q
// streams: windowing, FFT magnitude and peak search.
package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	win := make([]float64, n)
	for i := 0; i < n; i++ {
		win[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return win
}

// FFTShift returns the FFT output reordered so that DC is centered.
// The input is left untouched.
func FFTShift(data []complex128) []complex128 {
	n := len(data)
	if n == 0 {
		return []complex128{}
	}
	half := n / 2
	shifted := make([]complex128, 0, n)
	shifted = append(shifted, data[half:]...)
	return append(shifted, data[:half]...)
}

// Spectrum windows the samples, runs a complex FFT and returns the
// DC-centered magnitude spectrum in dBFS relative to full scale 1.0.
func Spectrum(samples []complex128) []float64 {
	n := len(samples)
	if n == 0 {
		return []float64{}
	}
	win := Hamming(n)
	sumWin := 0.0
	windowed := make([]complex128, n)
	for i, v := range samples {
		windowed[i] = v * complex(win[i], 0)
		sumWin += win[i]
	}
	coeffs := fourier.NewCmplxFFT(n).Coefficients(nil, windowed)
	for i := range coeffs {
		coeffs[i] /= complex(sumWin, 0)
	}
	shifted := FFTShift(coeffs)
	dbfs := make([]float64, n)
	for i, v := range shifted {
		mag := cmplx.Abs(v)
		if mag == 0 {
			dbfs[i] = math.Inf(-1)
			continue
		}
		dbfs[i] = 20 * math.Log10(mag)
	}
	return dbfs
}

// PeakBin returns the index of the strongest bin in a spectrum.
func PeakBin(spectrum []float64) int {
	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}
	return peak
}

// BinFrequency converts a DC-centered bin index to its frequency in Hz.
func BinFrequency(bin, n int, sampleRate float64) float64 {
	return (float64(bin) - float64(n)/2) * sampleRate / float64(n)
}
