// Package core holds small numeric helpers shared by the DSP kernels and
// the mixing engine: clamping, dB conversion and smoothing coefficients.
package core
