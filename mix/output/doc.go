// Package output moves rendered audio out of the engine.
//
// [Driver] renders fixed frames at real-time pace onto a channel of
// interleaved int16 PCM, the format the stream and device sinks consume.
// [WAVWriter] encodes blocks to a WAV file and [Offline] renders a session
// faster than real time, ticking the scheduler in audio time.
package output
