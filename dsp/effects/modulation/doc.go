// Package modulation provides the LFO-driven send effects of the mixer:
// an allpass-cascade [Phaser] and a short modulated-delay [Flanger].
//
// Both are stereo with one LFO shared by the two channels, and both return
// the wet signal only; the caller sums them into a dry path.
package modulation
