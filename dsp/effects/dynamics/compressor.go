package dynamics

import (
	"fmt"
	"math"
)

const (
	// Defaults of the mixer's channel compressor.
	defaultCompressorThresholdDB = -24.0
	defaultCompressorRatio       = 12.0
	defaultCompressorKneeDB      = 30.0
	defaultCompressorAttackMs    = 3.0
	defaultCompressorReleaseMs   = 250.0

	minCompressorRatio     = 1.0
	maxCompressorRatio     = 20.0
	minCompressorAttackMs  = 0.0
	maxCompressorAttackMs  = 1000.0
	minCompressorReleaseMs = 1.0
	maxCompressorReleaseMs = 1000.0
	minCompressorKneeDB    = 0.0
	maxCompressorKneeDB    = 40.0
	minCompressorThreshDB  = -100.0
	maxCompressorThreshDB  = 0.0

	// log2Of10Div20 converts dB to the log2 domain: log2(10) / 20.
	log2Of10Div20 = 0.166096404744
)

// Compressor is a stereo-linked soft-knee compressor with log2-domain gain
// computation. The detector follows the louder of the two channels, so both
// channels receive the same gain and the stereo image stays put.
//
// There is no makeup gain: the compressor only ever attenuates.
//
// Not thread-safe; parameter changes and processing must happen on the
// same goroutine.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attackMs    float64
	releaseMs   float64
	sampleRate  float64

	peakLevel float64
	lastGain  float64

	attackCoeff      float64
	releaseCoeff     float64
	thresholdLog2    float64
	kneeWidthLog2    float64
	invKneeWidthLog2 float64
}

// NewCompressor creates a compressor with the channel-strip defaults:
// threshold -24 dB, ratio 12:1, knee 30 dB, attack 3 ms, release 250 ms.
func NewCompressor(sampleRate float64) (*Compressor, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("compressor sample rate must be positive and finite: %f", sampleRate)
	}

	c := &Compressor{
		thresholdDB: defaultCompressorThresholdDB,
		ratio:       defaultCompressorRatio,
		kneeDB:      defaultCompressorKneeDB,
		attackMs:    defaultCompressorAttackMs,
		releaseMs:   defaultCompressorReleaseMs,
		sampleRate:  sampleRate,
		lastGain:    1,
	}

	c.updateCoefficients()

	return c, nil
}

// SetThreshold sets the threshold in dB, [-100, 0].
func (c *Compressor) SetThreshold(dB float64) error {
	if dB < minCompressorThreshDB || dB > maxCompressorThreshDB || math.IsNaN(dB) {
		return fmt.Errorf("compressor threshold must be in [%f, %f]: %f",
			minCompressorThreshDB, maxCompressorThreshDB, dB)
	}

	c.thresholdDB = dB
	c.updateCoefficients()

	return nil
}

// SetRatio sets the compression ratio, [1, 20].
func (c *Compressor) SetRatio(ratio float64) error {
	if ratio < minCompressorRatio || ratio > maxCompressorRatio || math.IsNaN(ratio) {
		return fmt.Errorf("compressor ratio must be in [%f, %f]: %f",
			minCompressorRatio, maxCompressorRatio, ratio)
	}

	c.ratio = ratio

	return nil
}

// SetKnee sets the soft-knee width in dB, [0, 40].
func (c *Compressor) SetKnee(kneeDB float64) error {
	if kneeDB < minCompressorKneeDB || kneeDB > maxCompressorKneeDB || math.IsNaN(kneeDB) {
		return fmt.Errorf("compressor knee must be in [%f, %f]: %f",
			minCompressorKneeDB, maxCompressorKneeDB, kneeDB)
	}

	c.kneeDB = kneeDB
	c.updateCoefficients()

	return nil
}

// SetAttack sets attack time in milliseconds, [0, 1000].
func (c *Compressor) SetAttack(ms float64) error {
	if ms < minCompressorAttackMs || ms > maxCompressorAttackMs || math.IsNaN(ms) {
		return fmt.Errorf("compressor attack must be in [%f, %f]: %f",
			minCompressorAttackMs, maxCompressorAttackMs, ms)
	}

	c.attackMs = ms
	c.updateTimeConstants()

	return nil
}

// SetRelease sets release time in milliseconds, [1, 1000].
func (c *Compressor) SetRelease(ms float64) error {
	if ms < minCompressorReleaseMs || ms > maxCompressorReleaseMs || math.IsNaN(ms) {
		return fmt.Errorf("compressor release must be in [%f, %f]: %f",
			minCompressorReleaseMs, maxCompressorReleaseMs, ms)
	}

	c.releaseMs = ms
	c.updateTimeConstants()

	return nil
}

// Threshold returns the current threshold in dB.
func (c *Compressor) Threshold() float64 { return c.thresholdDB }

// Ratio returns the current compression ratio.
func (c *Compressor) Ratio() float64 { return c.ratio }

// Knee returns the current knee width in dB.
func (c *Compressor) Knee() float64 { return c.kneeDB }

// Attack returns the current attack time in milliseconds.
func (c *Compressor) Attack() float64 { return c.attackMs }

// Release returns the current release time in milliseconds.
func (c *Compressor) Release() float64 { return c.releaseMs }

// Reduction returns the most recent linear gain applied, 1 meaning none.
func (c *Compressor) Reduction() float64 { return c.lastGain }

// ProcessStereo compresses one frame.
func (c *Compressor) ProcessStereo(l, r float64) (float64, float64) {
	level := math.Max(math.Abs(l), math.Abs(r))

	if level > c.peakLevel {
		c.peakLevel += (level - c.peakLevel) * c.attackCoeff
	} else {
		c.peakLevel = level + (c.peakLevel-level)*c.releaseCoeff
	}

	gain := c.calculateGain(c.peakLevel)
	c.lastGain = gain

	return l * gain, r * gain
}

// ProcessBlock compresses a stereo block in place.
func (c *Compressor) ProcessBlock(left, right []float64) {
	for i := range left {
		left[i], right[i] = c.ProcessStereo(left[i], right[i])
	}
}

// Gain returns the static gain for a steady input magnitude, for metering
// and tests.
func (c *Compressor) Gain(inputMagnitude float64) float64 {
	return c.calculateGain(math.Abs(inputMagnitude))
}

// Reset clears the envelope follower.
func (c *Compressor) Reset() {
	c.peakLevel = 0
	c.lastGain = 1
}

func (c *Compressor) updateCoefficients() {
	c.thresholdLog2 = c.thresholdDB * log2Of10Div20
	c.kneeWidthLog2 = c.kneeDB * log2Of10Div20

	if c.kneeDB > 0 {
		c.invKneeWidthLog2 = 1.0 / c.kneeWidthLog2
	} else {
		c.invKneeWidthLog2 = 0
	}

	c.updateTimeConstants()
}

func (c *Compressor) updateTimeConstants() {
	if c.attackMs <= 0 {
		c.attackCoeff = 1
	} else {
		c.attackCoeff = 1.0 - math.Exp(-math.Ln2/(c.attackMs*0.001*c.sampleRate))
	}

	c.releaseCoeff = math.Exp(-math.Ln2 / (c.releaseMs * 0.001 * c.sampleRate))
}

func (c *Compressor) calculateGain(peakLevel float64) float64 {
	if peakLevel <= 1e-9 {
		return 1.0
	}

	overshoot := mathLog2(peakLevel) - c.thresholdLog2

	if c.kneeDB <= 0 {
		if overshoot <= 0 {
			return 1.0
		}

		return mathPower2(-overshoot * (1.0 - 1.0/c.ratio))
	}

	halfWidth := c.kneeWidthLog2 * 0.5

	var effective float64

	switch {
	case overshoot < -halfWidth:
		return 1.0
	case overshoot > halfWidth:
		effective = overshoot
	default:
		scratch := overshoot + halfWidth
		effective = scratch * scratch * 0.5 * c.invKneeWidthLog2
	}

	return mathPower2(-effective * (1.0 - 1.0/c.ratio))
}

// DBToGain converts a dB value to linear gain.
func DBToGain(dB float64) float64 {
	return mathPower10(dB / 20)
}
