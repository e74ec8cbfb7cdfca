package compositor

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Source is a drawable background: a still image or the current frame of a clip.
type Source interface {
	// Size returns the source dimensions in pixels.
	Size() (w, h int)
	// Frame returns the image to draw for this tick.
	Frame() image.Image
}

// Placement describes where a cover-fitted source lands on the canvas.
type Placement struct {
	Scale   float64
	DrawW   float64
	DrawH   float64
	OffsetX float64
	OffsetY float64
}

// CoverFit scales (sw, sh) just enough to cover (cw, ch) and centres it.
// The excess on the longer axis falls outside the canvas.
func CoverFit(sw, sh, cw, ch int) Placement {
	if sw <= 0 || sh <= 0 || cw <= 0 || ch <= 0 {
		return Placement{}
	}
	scale := math.Max(float64(cw)/float64(sw), float64(ch)/float64(sh))
	drawW := float64(sw) * scale
	drawH := float64(sh) * scale
	return Placement{
		Scale:   scale,
		DrawW:   drawW,
		DrawH:   drawH,
		OffsetX: (float64(cw) - drawW) / 2,
		OffsetY: (float64(ch) - drawH) / 2,
	}
}

// Compositor renders a background source into a canvas-sized buffer. The
// buffer is owned by the Compositor and reused across calls; the returned
// image is only valid until the next Compose.
type Compositor struct {
	buf *image.RGBA
}

// New returns a Compositor with no scratch buffer allocated yet.
func New() *Compositor {
	return &Compositor{}
}

// Compose draws src cover-fitted onto a cw x ch buffer. When mirrored the
// result is reflected horizontally about the canvas centre. ok is false when
// there is nothing to draw (nil or zero-sized source, zero-sized canvas); the
// buffer is then cleared to transparent.
func (c *Compositor) Compose(src Source, cw, ch int, mirrored bool) (frame *image.RGBA, ok bool) {
	buf := c.ensure(cw, ch)
	if src == nil {
		clear(buf.Pix)
		return buf, false
	}
	sw, sh := src.Size()
	img := src.Frame()
	if sw <= 0 || sh <= 0 || cw <= 0 || ch <= 0 || img == nil {
		clear(buf.Pix)
		return buf, false
	}

	p := CoverFit(sw, sh, cw, ch)
	sr := img.Bounds()

	// Source-to-canvas affine transform. A source pixel at local x lands at
	// OffsetX + x*Scale, or at cw - (OffsetX + x*Scale) when mirrored.
	s2d := f64.Aff3{
		p.Scale, 0, p.OffsetX - p.Scale*float64(sr.Min.X),
		0, p.Scale, p.OffsetY - p.Scale*float64(sr.Min.Y),
	}
	if mirrored {
		s2d[0] = -p.Scale
		s2d[2] = float64(cw) - p.OffsetX + p.Scale*float64(sr.Min.X)
	}

	// At exact integer downscales pixel centres fall on texel boundaries.
	// Ties resolve towards the source's vertical centre line, so each canvas
	// half is drawn with the sample point nudged towards it; a symmetric
	// source then composes to a symmetric frame.
	toRight, toLeft := nudge(s2d, tieEpsilon), nudge(s2d, -tieEpsilon)
	left, right := toRight, toLeft
	if mirrored {
		left, right = toLeft, toRight
	}
	half := cw / 2

	clear(buf.Pix)
	draw.NearestNeighbor.Transform(buf.SubImage(image.Rect(0, 0, half, ch)).(*image.RGBA), left, img, sr, draw.Src, nil)
	draw.NearestNeighbor.Transform(buf.SubImage(image.Rect(half, 0, cw, ch)).(*image.RGBA), right, img, sr, draw.Src, nil)
	return buf, true
}

// tieEpsilon is the source-space shift, in texels, applied to sample points.
const tieEpsilon = 1e-6

// nudge returns m adjusted so that the sampled source x moves by du texels.
func nudge(m f64.Aff3, du float64) f64.Aff3 {
	m[2] -= m[0] * du
	return m
}

// ensure returns the scratch buffer sized to w x h, reslicing the existing
// backing array when it is large enough.
func (c *Compositor) ensure(w, h int) *image.RGBA {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if c.buf != nil && c.buf.Rect.Dx() == w && c.buf.Rect.Dy() == h {
		return c.buf
	}
	n := w * h * 4
	if c.buf != nil && cap(c.buf.Pix) >= n {
		c.buf = &image.RGBA{Pix: c.buf.Pix[:n], Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
		return c.buf
	}
	c.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	return c.buf
}
