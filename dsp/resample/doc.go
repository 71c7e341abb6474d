// Package resample converts sample rates with a polyphase Kaiser-windowed
// sinc filter. Converter streams arbitrary block sizes; Convert handles a
// whole decoded channel and removes the filter delay so that the result
// stays aligned with the source.
package resample
