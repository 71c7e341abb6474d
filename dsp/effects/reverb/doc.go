// Package reverb provides the send reverb of the mixer: a synthetic stereo
// impulse response and a convolution processor built on dsp/conv.
//
// The impulse is generated once (exponentially decaying noise) and shared
// through an [Impulse]; every channel strip owns its own [Convolution]
// with private streaming state.
package reverb
