// Package fxchain builds the fixed per-track processing chain:
//
//	input -> lowshelf 320 Hz -> peaking 1 kHz -> highshelf 3.2 kHz
//	      -> highpass -> lowpass -+-------------------------------+-> compressor -> output
//	                              +-> send -> reverb ------------>+
//	                              +-> send -> delay ------------->+
//	                              +-> send -> phaser ------------>+
//	                              +-> send -> flanger ----------->+
//
// The dry path is always summed at unity; sends are additive. Setters
// clamp out-of-range input instead of failing.
package fxchain
