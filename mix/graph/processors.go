package graph

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mixer/dsp/effects"
	"github.com/cwbudde/algo-mixer/dsp/effects/dynamics"
	"github.com/cwbudde/algo-mixer/dsp/effects/modulation"
	"github.com/cwbudde/algo-mixer/dsp/effects/reverb"
	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
)

// filterUpdateInterval is how often, in frames, a moving filter parameter
// triggers a coefficient redesign.
const filterUpdateInterval = 32

type gainProc struct {
	gain *Param
}

func (p *gainProc) process(n *Node, start int64, frames int) {
	g, constant := p.gain.fill(start, frames)
	for ch := range n.out {
		if constant {
			vecmath.ScaleBlock(n.out[ch][:frames], n.in[ch][:frames], g[0])
			continue
		}

		vecmath.MulBlock(n.out[ch][:frames], n.in[ch][:frames], g)
	}
}

type filterProc struct {
	typ       biquad.Type
	freq      *Param
	q         *Param
	gainDB    *Param
	sections  [2]*biquad.Section
	designed  [3]float64
	hasDesign bool
}

func (p *filterProc) process(n *Node, start int64, frames int) {
	freq, _ := p.freq.fill(start, frames)
	q, _ := p.q.fill(start, frames)
	gain, _ := p.gainDB.fill(start, frames)

	n.passThrough(frames)

	sr := n.graph.sampleRate
	for off := 0; off < frames; off += filterUpdateInterval {
		end := min(off+filterUpdateInterval, frames)

		want := [3]float64{freq[off], q[off], gain[off]}
		if !p.hasDesign || want != p.designed {
			c := biquad.Design(p.typ, want[0], want[1], want[2], sr)
			p.sections[0].SetCoefficients(c)
			p.sections[1].SetCoefficients(c)
			p.designed = want
			p.hasDesign = true
		}

		p.sections[0].ProcessBlock(n.out[0][off:end])
		p.sections[1].ProcessBlock(n.out[1][off:end])
	}
}

func (p *filterProc) reset() {
	p.sections[0].Reset()
	p.sections[1].Reset()
}

type delayProc struct {
	time     *Param
	feedback *Param
	echo     *effects.Echo
}

func (p *delayProc) process(n *Node, start int64, frames int) {
	times, _ := p.time.fill(start, frames)
	fbs, _ := p.feedback.fill(start, frames)

	inL, inR := n.in[0], n.in[1]
	outL, outR := n.out[0], n.out[1]

	for i := 0; i < frames; i++ {
		outL[i], outR[i] = p.echo.ProcessStereo(inL[i], inR[i], times[i], fbs[i])
	}
}

func (p *delayProc) reset() { p.echo.Reset() }

type convolverProc struct {
	conv *reverb.Convolution
}

func (p *convolverProc) process(n *Node, _ int64, frames int) {
	err := p.conv.ProcessStereo(n.out[0][:frames], n.out[1][:frames], n.in[0][:frames], n.in[1][:frames])
	if err != nil {
		clear(n.out[0][:frames])
		clear(n.out[1][:frames])
	}
}

func (p *convolverProc) reset() { p.conv.Reset() }

type phaserProc struct {
	rate  *Param
	depth *Param
	base  *Param
	fx    *modulation.Phaser
}

func (p *phaserProc) process(n *Node, start int64, frames int) {
	// Range clamping keeps these setters from failing.
	_ = p.fx.SetRateHz(p.rate.control(start, frames))
	_ = p.fx.SetDepthHz(p.depth.control(start, frames))
	_ = p.fx.SetBaseHz(p.base.control(start, frames))

	n.passThrough(frames)
	p.fx.ProcessBlock(n.out[0][:frames], n.out[1][:frames])
}

func (p *phaserProc) reset() { p.fx.Reset() }

type flangerProc struct {
	rate     *Param
	depth    *Param
	center   *Param
	feedback *Param
	fx       *modulation.Flanger
}

func (p *flangerProc) process(n *Node, start int64, frames int) {
	_ = p.fx.SetRateHz(p.rate.control(start, frames))
	_ = p.fx.SetDepthSeconds(p.depth.control(start, frames))
	_ = p.fx.SetCenterDelaySeconds(p.center.control(start, frames))
	_ = p.fx.SetFeedback(p.feedback.control(start, frames))

	n.passThrough(frames)
	p.fx.ProcessBlock(n.out[0][:frames], n.out[1][:frames])
}

func (p *flangerProc) reset() { p.fx.Reset() }

type compressorProc struct {
	threshold *Param
	ratio     *Param
	knee      *Param
	attack    *Param
	release   *Param
	fx        *dynamics.Compressor
}

func (p *compressorProc) process(n *Node, start int64, frames int) {
	p.configure(start, frames)

	n.passThrough(frames)
	p.fx.ProcessBlock(n.out[0][:frames], n.out[1][:frames])
}

// configure pushes changed parameters into the compressor. Attack and
// release are automated in seconds.
func (p *compressorProc) configure(start int64, frames int) {
	if v := p.threshold.control(start, frames); v != p.fx.Threshold() {
		_ = p.fx.SetThreshold(v)
	}

	if v := p.ratio.control(start, frames); v != p.fx.Ratio() {
		_ = p.fx.SetRatio(v)
	}

	if v := p.knee.control(start, frames); v != p.fx.Knee() {
		_ = p.fx.SetKnee(v)
	}

	if v := p.attack.control(start, frames) * 1000; v != p.fx.Attack() {
		_ = p.fx.SetAttack(v)
	}

	if v := p.release.control(start, frames) * 1000; v != p.fx.Release() {
		_ = p.fx.SetRelease(v)
	}
}

func (p *compressorProc) reset() { p.fx.Reset() }

// pannerProc is an equal-power stereo panner. A centered pan passes both
// channels unchanged; moving left folds the right channel into the left.
type pannerProc struct {
	pan *Param
}

func (p *pannerProc) process(n *Node, start int64, frames int) {
	pan, _ := p.pan.fill(start, frames)

	inL, inR := n.in[0], n.in[1]
	outL, outR := n.out[0], n.out[1]

	for i := 0; i < frames; i++ {
		outL[i], outR[i] = PanStereo(pan[i], inL[i], inR[i])
	}
}

// PanStereo applies the equal-power stereo pan law for pan in [-1, 1].
func PanStereo(pan, l, r float64) (float64, float64) {
	if pan <= 0 {
		x := (pan + 1) * math.Pi / 2
		return l + r*math.Cos(x), r * math.Sin(x)
	}

	x := pan * math.Pi / 2

	return l * math.Cos(x), r + l*math.Sin(x)
}

type destinationProc struct{}

func (destinationProc) process(n *Node, _ int64, frames int) {
	n.passThrough(frames)
}
