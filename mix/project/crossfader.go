package project

import "errors"

// ErrUnknownCurve is returned by ParseCurve.
var ErrUnknownCurve = errors.New("project: unknown crossfader curve")

// CrossfaderCurve selects the position to gain mapping.
type CrossfaderCurve string

const (
	CurveLinear CrossfaderCurve = "linear"
	CurveSmooth CrossfaderCurve = "smooth"
	CurveSharp  CrossfaderCurve = "sharp"
	CurveCut    CrossfaderCurve = "cut"
)

// ParseCurve validates a curve name.
func ParseCurve(s string) (CrossfaderCurve, error) {
	c := CrossfaderCurve(s)
	if !c.Valid() {
		return "", ErrUnknownCurve
	}

	return c, nil
}

// Valid reports whether c is one of the four curves.
func (c CrossfaderCurve) Valid() bool {
	switch c {
	case CurveLinear, CurveSmooth, CurveSharp, CurveCut:
		return true
	default:
		return false
	}
}

// Position and timing limits of the crossfader.
const (
	MinPosition = -50.0
	MaxPosition = 50.0
	MaxCutLagMs = 10.0
)

// CrossfaderState is the engine-owned crossfader state. CutLag is in
// milliseconds.
type CrossfaderState struct {
	Position       float64         `yaml:"position" json:"position"`
	Curve          CrossfaderCurve `yaml:"curve" json:"curve"`
	CutLag         float64         `yaml:"cutLag" json:"cutLag"`
	ChannelAVolume float64         `yaml:"channelAVolume" json:"channelAVolume"`
	ChannelBVolume float64         `yaml:"channelBVolume" json:"channelBVolume"`
}

// DefaultCrossfaderState is centered, equal power, 2 ms lag, full volume.
func DefaultCrossfaderState() CrossfaderState {
	return CrossfaderState{
		Curve:          CurveSmooth,
		CutLag:         2,
		ChannelAVolume: 100,
		ChannelBVolume: 100,
	}
}

// ClampPosition limits p to [-50, 50].
func ClampPosition(p float64) float64 {
	return clampFinite(p, MinPosition, MaxPosition)
}

// ChannelVolume returns the channel volume of deck d.
func (s CrossfaderState) ChannelVolume(d DeckID) float64 {
	if d == DeckB {
		return s.ChannelBVolume
	}

	return s.ChannelAVolume
}

// Clamp returns s with every field in range. Unknown curves fall back to
// smooth.
func (s CrossfaderState) Clamp() CrossfaderState {
	out := CrossfaderState{
		Position:       ClampPosition(s.Position),
		Curve:          s.Curve,
		CutLag:         clampFinite(s.CutLag, 0, MaxCutLagMs),
		ChannelAVolume: clampFinite(s.ChannelAVolume, 0, 100),
		ChannelBVolume: clampFinite(s.ChannelBVolume, 0, 100),
	}

	if !out.Curve.Valid() {
		out.Curve = CurveSmooth
	}

	return out
}
