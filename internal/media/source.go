package media

import (
	"image"
	"image/gif"
	"time"

	"golang.org/x/image/draw"
)

// defaultFrameDelay is used for GIF frames that declare no delay.
const defaultFrameDelay = 100 * time.Millisecond

// Still is a decoded background image.
type Still struct {
	img *image.RGBA
}

// NewStill converts img to RGBA once so per-tick sampling stays cheap.
func NewStill(img image.Image) *Still {
	return &Still{img: toRGBA(img)}
}

// Size implements compositor.Source.
func (s *Still) Size() (int, int) {
	return s.img.Rect.Dx(), s.img.Rect.Dy()
}

// Frame implements compositor.Source.
func (s *Still) Frame() image.Image { return s.img }

// Clip is a fully buffered looping frame sequence.
type Clip struct {
	frames []*image.RGBA
	ends   []time.Duration // cumulative end time of each frame
	total  time.Duration
	start  time.Time
	now    func() time.Time
}

// NewClip builds a clip from frames and per-frame delays. Playback starts at
// the first call to now.
func NewClip(frames []*image.RGBA, delays []time.Duration, now func() time.Time) *Clip {
	if now == nil {
		now = time.Now
	}
	c := &Clip{frames: frames, ends: make([]time.Duration, len(frames)), now: now}
	for i := range frames {
		d := defaultFrameDelay
		if i < len(delays) && delays[i] > 0 {
			d = delays[i]
		}
		c.total += d
		c.ends[i] = c.total
	}
	c.start = now()
	return c
}

// Size implements compositor.Source.
func (c *Clip) Size() (int, int) {
	if len(c.frames) == 0 {
		return 0, 0
	}
	return c.frames[0].Rect.Dx(), c.frames[0].Rect.Dy()
}

// Len returns the number of frames.
func (c *Clip) Len() int { return len(c.frames) }

// Frame implements compositor.Source; it returns the frame due at the current
// time, looping forever.
func (c *Clip) Frame() image.Image {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[c.index(c.now().Sub(c.start))]
}

func (c *Clip) index(elapsed time.Duration) int {
	if c.total <= 0 || elapsed < 0 {
		return 0
	}
	pos := elapsed % c.total
	for i, end := range c.ends {
		if pos < end {
			return i
		}
	}
	return len(c.frames) - 1
}

// gifFrames composes a decoded GIF into full-canvas frames honouring the
// per-frame disposal methods.
func gifFrames(g *gif.GIF) ([]*image.RGBA, []time.Duration) {
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		for _, p := range g.Image {
			w = max(w, p.Rect.Max.X)
			h = max(h, p.Rect.Max.Y)
		}
	}
	bounds := image.Rect(0, 0, w, h)
	canvas := image.NewRGBA(bounds)

	frames := make([]*image.RGBA, 0, len(g.Image))
	delays := make([]time.Duration, 0, len(g.Image))
	for i, p := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var prev *image.RGBA
		if disposal == gif.DisposalPrevious {
			prev = cloneRGBA(canvas)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))
		var delay time.Duration
		if i < len(g.Delay) {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		delays = append(delays, delay)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = prev
		}
	}
	return frames, delays
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}
