// Package scheduler turns the clips of a project into source nodes on the
// signal graph, a short lookahead ahead of the playhead.
//
// The scheduler runs on the control timeline. Each tick reads the audio
// clock once, works out the session position and starts every clip that
// begins within the lookahead window at its exact audio-clock time:
//
//	source -> clip gain (volume, fades) -> track chain input
//
// A clip is started at most once per session. Seek, Pause and Stop end
// the session: sounding clips are faded out over a few milliseconds and
// the scheduled set is cleared so the next session starts fresh.
//
// Buffers come from a [BufferProvider]. A clip whose buffer cannot be
// loaded is marked errored and reported on the NodeError bus; the other
// clips keep playing.
package scheduler
