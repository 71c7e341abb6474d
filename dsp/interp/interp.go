package interp

// Mode selects the interpolation kernel of a fractional read.
type Mode int

const (
	// Hermite is 4-point cubic Hermite, the default for modulated delays.
	Hermite Mode = iota
	// Linear is 2-point linear interpolation.
	Linear
)

func (m Mode) String() string {
	switch m {
	case Hermite:
		return "hermite"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// Linear2 interpolates between x0 and x1, t in [0, 1].
func Linear2(t, x0, x1 float64) float64 {
	return x0 + t*(x1-x0)
}

// Hermite4 computes cubic 4-point interpolation.
// It interpolates from x0 to x1 using neighbor points xm1 and x2.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)

	return ((c3*t+c2)*t+c1)*t + c0
}

// At reads samples at a fractional index with the given mode. Indices
// outside the slice read as zero, so the edges of a clip fade cleanly.
func At(mode Mode, samples []float32, pos float64) float64 {
	if pos < 0 {
		return 0
	}

	i := int(pos)
	t := pos - float64(i)

	if mode == Linear {
		return Linear2(t, sampleAt(samples, i), sampleAt(samples, i+1))
	}

	return Hermite4(t,
		sampleAt(samples, i-1),
		sampleAt(samples, i),
		sampleAt(samples, i+1),
		sampleAt(samples, i+2),
	)
}

func sampleAt(samples []float32, i int) float64 {
	if i < 0 || i >= len(samples) {
		return 0
	}

	return float64(samples[i])
}
