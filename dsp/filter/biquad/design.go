package biquad

import "math"

// Type selects one of the RBJ cookbook responses.
type Type int

const (
	Lowpass Type = iota
	Highpass
	LowShelf
	HighShelf
	Peaking
	Allpass
)

// DefaultQ is the Butterworth quality factor. Shelves always use it,
// which gives the cookbook's shelf slope S = 1.
const DefaultQ = 1 / math.Sqrt2

func (t Type) String() string {
	switch t {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	case LowShelf:
		return "lowshelf"
	case HighShelf:
		return "highshelf"
	case Peaking:
		return "peaking"
	case Allpass:
		return "allpass"
	default:
		return "unknown"
	}
}

// Design returns coefficients for the given response. gainDB is ignored by
// the pass and allpass types; q is ignored by the shelves. Frequencies at or
// beyond Nyquist are pulled just below it, invalid input yields Identity.
func Design(t Type, freq, q, gainDB, sampleRate float64) Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return Identity()
	}

	if t == LowShelf || t == HighShelf {
		q = DefaultQ
	}

	q = normalizedQ(q)
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)
	a := math.Pow(10, gainDB/40)

	switch t {
	case Lowpass:
		return normalizeBiquad((1-cw)/2, 1-cw, (1-cw)/2, 1+alpha, -2*cw, 1-alpha)
	case Highpass:
		return normalizeBiquad((1+cw)/2, -(1 + cw), (1+cw)/2, 1+alpha, -2*cw, 1-alpha)
	case Allpass:
		return normalizeBiquad(1-alpha, -2*cw, 1+alpha, 1+alpha, -2*cw, 1-alpha)
	case Peaking:
		return normalizeBiquad(1+alpha*a, -2*cw, 1-alpha*a, 1+alpha/a, -2*cw, 1-alpha/a)
	case LowShelf:
		beta := 2 * math.Sqrt(a) * alpha

		return normalizeBiquad(
			a*((a+1)-(a-1)*cw+beta),
			2*a*((a-1)-(a+1)*cw),
			a*((a+1)-(a-1)*cw-beta),
			(a+1)+(a-1)*cw+beta,
			-2*((a-1)+(a+1)*cw),
			(a+1)+(a-1)*cw-beta,
		)
	case HighShelf:
		beta := 2 * math.Sqrt(a) * alpha

		return normalizeBiquad(
			a*((a+1)+(a-1)*cw+beta),
			-2*a*((a-1)+(a+1)*cw),
			a*((a+1)+(a-1)*cw-beta),
			(a+1)-(a-1)*cw+beta,
			2*((a-1)-(a+1)*cw),
			(a+1)-(a-1)*cw-beta,
		)
	default:
		return Identity()
	}
}

func normalizedW0(freq, sampleRate float64) (float64, bool) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return 0, false
	}

	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}

	nyquist := sampleRate / 2
	if freq >= nyquist {
		freq = nyquist * 0.999
	}

	return 2 * math.Pi * freq / sampleRate, true
}

func normalizedQ(q float64) float64 {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return DefaultQ
	}

	return q
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	if a0 == 0 || math.IsNaN(a0) || math.IsInf(a0, 0) {
		return Identity()
	}

	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// MagnitudeAt evaluates |H(e^jw)| of c at freq Hz.
func (c Coefficients) MagnitudeAt(freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	z1 := complex(math.Cos(w), -math.Sin(w))
	z2 := z1 * z1
	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := 1 + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2

	return cmplxAbs(num / den)
}

func cmplxAbs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}
