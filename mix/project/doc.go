// Package project holds the mixing data model: clips on tracks, deck and
// crossfader state, and transition specs. Timeline values are in seconds.
//
// The engine treats projects as read-only snapshots. Deck and crossfader
// state types are owned by the engine and mutated through its setters,
// which clamp through the Clamp methods defined here.
package project
