// Package crossfader blends the two decks and runs automated transitions.
//
// Each deck passes a channel-volume gain and a crossfader gain before the
// master bus. Gains follow the selected curve; position changes are
// smoothed with the cut-lag time constant.
//
// A transition is a [Plan]: a list of phases, each a pure function from
// progress in [0, 1] to a [Frame] of parameter values. One stepped loop on
// an injectable clock samples the plan and applies the frames, so a new
// transition can cancel the running one between steps.
package crossfader
