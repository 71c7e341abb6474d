package crossfader

import (
	"math"

	"github.com/cwbudde/algo-mixer/mix/project"
)

// Curve breakpoints in normalized travel t = (position+50)/100.
const (
	sharpBand = 0.2
	cutBand   = 0.1
)

// Gains maps a crossfader position in [-50, 50] to the deck A and deck B
// gains of curve. Unknown curves behave like linear.
func Gains(curve project.CrossfaderCurve, position float64) (a, b float64) {
	t := (project.ClampPosition(position) - project.MinPosition) /
		(project.MaxPosition - project.MinPosition)

	switch curve {
	case project.CurveSmooth:
		return math.Cos(t * math.Pi / 2), math.Sin(t * math.Pi / 2)
	case project.CurveSharp:
		a, b = 1, 1
		if t > 1-sharpBand {
			a = (1 - t) / sharpBand
		}

		if t < sharpBand {
			b = t / sharpBand
		}

		return a, b
	case project.CurveCut:
		a, b = 1, 1
		if t >= 1-cutBand {
			a = 0
		}

		if t <= cutBand {
			b = 0
		}

		return a, b
	default:
		return 1 - t, t
	}
}
