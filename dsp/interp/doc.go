// Package interp provides the fractional-read primitives used by the delay
// lines and the clip playback node.
//
//   - [Linear2]:  2-point linear interpolation (clip resampling)
//   - [Hermite4]: 4-point cubic Hermite (modulated delays)
//
// [Mode] selects one of them at construction time of a delay line.
package interp
