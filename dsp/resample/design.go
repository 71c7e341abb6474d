package resample

import "math"

// lowpass designs the prototype filter for an up/down converter: n taps at
// the upsampled rate, cutoff at the narrower of the two Nyquist bands,
// normalized to a DC gain of up. The sinc is centered on a multiple of
// down, so the returned delay is a whole number of output samples.
func lowpass(up, down, perPhase int, cutoff, beta float64) (branches [][]float64, delay int) {
	n := perPhase * up
	fc := cutoff * 0.5 / float64(max(up, down))
	delay = int(math.Round(float64(n-1) / 2 / float64(down)))
	center := float64(delay * down)

	proto := make([]float64, n)

	var sum float64

	for i := range proto {
		x := 2 * fc * (float64(i) - center)
		proto[i] = 2 * fc * sinc(x) * kaiser(float64(i)/float64(n-1), beta)
		sum += proto[i]
	}

	// Branch p holds taps p, p+up, p+2up, ...
	branches = make([][]float64, up)
	for p := range branches {
		br := make([]float64, perPhase)
		for j := range br {
			br[j] = proto[p+j*up] * float64(up) / sum
		}

		branches[p] = br
	}

	return branches, delay
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// kaiser evaluates the window at t in [0, 1].
func kaiser(t, beta float64) float64 {
	r := 2*t - 1
	return besselI0(beta*math.Sqrt(max(0, 1-r*r))) / besselI0(beta)
}

func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	q := x * x / 4

	for k := 1.0; k < 64; k++ {
		term *= q / (k * k)
		sum += term

		if term < sum*1e-16 {
			break
		}
	}

	return sum
}

// ratio approximates v by a continued fraction with denominator at most
// maxDen.
func ratio(v float64, maxDen int) (num, den int) {
	h0, h1 := 0.0, 1.0
	k0, k1 := 1.0, 0.0
	x := v

	for {
		a := math.Floor(x)
		h2, k2 := a*h1+h0, a*k1+k0

		if k2 > float64(maxDen) {
			break
		}

		h0, h1, k0, k1 = h1, h2, k1, k2

		f := x - a
		if f < 1e-12 {
			break
		}

		x = 1 / f
	}

	num, den = int(h1), int(k1)
	if num <= 0 || den <= 0 {
		return 1, 1
	}

	g := gcd(num, den)

	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}
