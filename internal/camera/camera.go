package camera

import (
	"image"
	"math"
	"time"

	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// Source yields the most recent camera frame. The returned image belongs to
// the caller and may be handed to another goroutine.
type Source interface {
	Frame() image.Image
}

// Synthetic renders a bright figure swaying over a dark backdrop. It stands in
// for a real camera when the server runs without capture hardware.
type Synthetic struct {
	dc     *gg.Context
	width  int
	height int
	start  time.Time
	now    func() time.Time
	skin   gg.RGBA
	room   gg.RGBA
}

// NewSynthetic returns a w x h synthetic feed driven by now.
func NewSynthetic(w, h int, now func() time.Time) *Synthetic {
	if now == nil {
		now = time.Now
	}
	skin := colorful.Hsv(28, 0.35, 0.95)
	room := colorful.Hsv(220, 0.3, 0.12)
	return &Synthetic{
		dc:     gg.NewContext(w, h),
		width:  w,
		height: h,
		start:  now(),
		now:    now,
		skin:   gg.RGB(skin.R, skin.G, skin.B),
		room:   gg.RGB(room.R, room.G, room.B),
	}
}

// Frame implements Source.
func (s *Synthetic) Frame() image.Image {
	t := s.now().Sub(s.start).Seconds()
	w, h := float64(s.width), float64(s.height)
	cx := w/2 + math.Sin(t*0.8)*w/5

	s.dc.ClearWithColor(s.room)
	s.dc.SetRGBA(s.skin.R, s.skin.G, s.skin.B, 1)
	// Head and shoulders.
	s.dc.DrawCircle(cx, h*0.35, h*0.13)
	s.dc.DrawEllipse(cx, h*0.85, w*0.2, h*0.3)
	_ = s.dc.Fill()
	return s.dc.ResizeTarget().ToImage()
}

// Close releases the drawing context.
func (s *Synthetic) Close() error {
	return s.dc.Close()
}
