// Package effects holds the stereo feedback [Echo] used by the delay send.
// Phaser and flanger live in the modulation subpackage, the compressor in
// dynamics and the convolution reverb in reverb.
package effects
