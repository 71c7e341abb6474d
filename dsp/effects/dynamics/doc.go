// Package dynamics provides the stereo-linked soft-knee compressor used on
// every channel strip and on the master bus.
package dynamics
