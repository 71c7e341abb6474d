// Package trackmix routes tracks to decks and decks to the master bus.
//
// Each track gets its own effects chain, followed by a gain stage carrying
// the track's effective volume and an equal-power panner. Tracks sum into
// their deck bus; each deck bus passes a trim gain used by transitions and
// leaves through DeckOutput. Whatever connects into MasterInput is summed,
// scaled by the master volume and compressed before reaching the graph
// destination.
package trackmix
