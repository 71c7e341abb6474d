// Package engine assembles one mixing session: the audio clock, the
// signal graph, the track mixer, the crossfader and the clip scheduler.
//
// An Engine is constructed per session and disposed explicitly. Callers
// drive audio by calling Render from the device or stream callback and
// control the mix through parameter setters; graph nodes are never
// exposed.
//
//	clips -> track chains -> deck buses -> crossfader -> master -> Render
package engine
