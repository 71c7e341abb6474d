// Package biquad provides second-order IIR sections and the RBJ cookbook
// designs used by the mixer's EQ and filter stages.
//
// A [Section] implements Direct Form II Transposed processing for a single
// section defined by [Coefficients]. [Design] maps a [Type] plus frequency,
// Q and gain onto coefficients; it is cheap enough to call from the render
// path whenever an automated parameter moves.
package biquad
