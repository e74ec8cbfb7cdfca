package trail

import (
	"math"
	"time"

	"github.com/gogpu/gg"
)

// TimeConstant is the decay constant of the fade overlay.
const TimeConstant = 300 * time.Millisecond

// FadeFactor returns the overlay opacity for a frame interval:
// min(1, 1 - e^(-elapsed/TimeConstant)), and 0 for non-positive intervals.
func FadeFactor(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	tau := float64(TimeConstant) / float64(time.Millisecond)
	return math.Min(1, 1-math.Exp(-ms/tau))
}

// Timer measures the interval between render ticks.
// The zero value is ready to use.
type Timer struct {
	last time.Time
	set  bool
}

// Elapsed records now and returns the time since the previous call.
// The first call after construction or Reset returns 0.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	if !t.set {
		t.last, t.set = now, true
		return 0
	}
	d := now.Sub(t.last)
	t.last = now
	if d < 0 {
		return 0
	}
	return d
}

// Reset forgets the previous timestamp.
func (t *Timer) Reset() {
	t.set = false
}

// Accumulator fades the render target towards a solid tone before each frame.
type Accumulator struct {
	tone gg.RGBA
}

// New returns an Accumulator fading towards tone.
func New(tone gg.RGBA) *Accumulator {
	return &Accumulator{tone: tone}
}

// Fade prepares dc for the next frame. When disabled the canvas is cleared to
// the tone; otherwise the tone is laid over it at FadeFactor(elapsed) opacity.
func (a *Accumulator) Fade(dc *gg.Context, elapsed time.Duration, enabled bool) error {
	if !enabled {
		dc.ClearWithColor(a.tone)
		return nil
	}
	alpha := FadeFactor(elapsed)
	if alpha <= 0 {
		return nil
	}
	if alpha >= 1 {
		dc.ClearWithColor(a.tone)
		return nil
	}
	dc.DrawRectangle(0, 0, float64(dc.Width()), float64(dc.Height()))
	dc.SetRGBA(a.tone.R, a.tone.G, a.tone.B, alpha)
	return dc.Fill()
}
