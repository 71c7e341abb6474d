package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))

	return diff/largest <= eps
}

// FlushDenormals converts tiny denormal-like values to exact zero.
// Feedback paths (delay, flanger, allpass chains) decay into this range.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// SmoothingCoeff returns the per-sample coefficient of a one-pole
// exponential approach with the given time constant in seconds:
//
//	y[n] = y[n-1] + coeff*(target - y[n-1])
//
// A non-positive time constant yields 1 (jump to target).
func SmoothingCoeff(timeConstant, sampleRate float64) float64 {
	if timeConstant <= 0 || sampleRate <= 0 {
		return 1
	}

	return 1 - math.Exp(-1/(timeConstant*sampleRate))
}

// Lerp interpolates linearly between a and b, t in [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LogLerp interpolates between two positive values on a logarithmic
// scale, t in [0, 1]. Used for frequency sweeps.
func LogLerp(a, b, t float64) float64 {
	if a <= 0 || b <= 0 {
		return Lerp(a, b, t)
	}

	return a * math.Pow(b/a, t)
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
