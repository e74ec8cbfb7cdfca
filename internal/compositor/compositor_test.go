package compositor

import (
	"image"
	"image/color"
	"testing"
)

type stillSource struct{ img image.Image }

func (s stillSource) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s stillSource) Frame() image.Image { return s.img }

// columns builds a w x h image whose column x has colour cols[x].
func columns(h int, cols ...color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, len(cols), h))
	for y := 0; y < h; y++ {
		for x, c := range cols {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

func TestCoverFit_example(t *testing.T) {
	p := CoverFit(200, 100, 400, 300)
	if p.Scale != 3 {
		t.Errorf("scale = %v, want 3", p.Scale)
	}
	if p.DrawW != 600 || p.DrawH != 300 {
		t.Errorf("draw = %vx%v, want 600x300", p.DrawW, p.DrawH)
	}
	if p.OffsetX != -100 || p.OffsetY != 0 {
		t.Errorf("offset = (%v,%v), want (-100,0)", p.OffsetX, p.OffsetY)
	}
}

func TestCoverFit_always_covers(t *testing.T) {
	sizes := []int{1, 3, 7, 64, 100, 199, 640, 1080, 1921}
	for _, sw := range sizes {
		for _, sh := range sizes {
			for _, cw := range sizes {
				for _, ch := range sizes {
					p := CoverFit(sw, sh, cw, ch)
					// Allow for float rounding in the product.
					if p.DrawW < float64(cw)-1e-9 || p.DrawH < float64(ch)-1e-9 {
						t.Fatalf("CoverFit(%d,%d,%d,%d) = %+v does not cover", sw, sh, cw, ch, p)
					}
				}
			}
		}
	}
}

func TestCoverFit_zero(t *testing.T) {
	if p := CoverFit(0, 10, 10, 10); p != (Placement{}) {
		t.Errorf("zero source should give zero placement, got %+v", p)
	}
}

func TestCompose_fills_canvas(t *testing.T) {
	c := New()
	src := stillSource{columns(2, red, green, blue, red)}
	frame, ok := c.Compose(src, 40, 10, false)
	if !ok {
		t.Fatal("Compose: ok false")
	}
	if frame.Bounds() != image.Rect(0, 0, 40, 10) {
		t.Fatalf("frame bounds = %v", frame.Bounds())
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 40; x++ {
			if frame.RGBAAt(x, y).A != 255 {
				t.Fatalf("pixel (%d,%d) not covered", x, y)
			}
		}
	}
	if got := frame.RGBAAt(0, 5); got != red {
		t.Errorf("left edge = %v, want red", got)
	}
	if got := frame.RGBAAt(15, 5); got != green {
		t.Errorf("pixel 15 = %v, want green", got)
	}
}

func TestCompose_mirrored_reflects(t *testing.T) {
	c := New()
	src := stillSource{columns(2, red, green, green, blue)}
	frame, ok := c.Compose(src, 20, 10, true)
	if !ok {
		t.Fatal("Compose: ok false")
	}
	if got := frame.RGBAAt(0, 0); got != blue {
		t.Errorf("mirrored left edge = %v, want blue", got)
	}
	if got := frame.RGBAAt(19, 9); got != red {
		t.Errorf("mirrored right edge = %v, want red", got)
	}
}

// symmetric builds a w x w image whose columns mirror about the centre line
// while every column in one half has its own colour.
func symmetric(w int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, w))
	for x := 0; x < w; x++ {
		k := min(x, w-1-x)
		c := color.RGBA{R: uint8(k), G: uint8(k >> 8), B: 200, A: 255}
		for y := 0; y < w; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestCompose_symmetric_source_mirror_invariant(t *testing.T) {
	cases := []struct {
		name   string
		src    image.Image
		cw, ch int
	}{
		{"upscale 4 to 20", columns(2, red, green, green, red), 20, 10},
		{"downscale 4 to 2", symmetric(4), 2, 2},
		{"downscale 8 to 4", symmetric(8), 4, 4},
		{"downscale 9 to 3", symmetric(9), 3, 3},
		{"downscale 1280 to 640", symmetric(1280), 640, 640},
		{"downscale 1920 to 1280", symmetric(1920), 1280, 1280},
		{"odd canvas", symmetric(12), 5, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := stillSource{tc.src}
			plain, ok := New().Compose(src, tc.cw, tc.ch, false)
			if !ok {
				t.Fatal("plain: ok false")
			}
			mirrored, ok := New().Compose(src, tc.cw, tc.ch, true)
			if !ok {
				t.Fatal("mirrored: ok false")
			}
			diff := 0
			for i := range plain.Pix {
				if plain.Pix[i] != mirrored.Pix[i] {
					diff++
				}
			}
			if diff != 0 {
				t.Errorf("%d of %d bytes differ", diff, len(plain.Pix))
			}
		})
	}
}

func TestCompose_downscale_samples_inside_each_half(t *testing.T) {
	// Columns 0..3 are red, green, blue, red; at 2x downscale each canvas
	// pixel centre sits on a texel boundary.
	src := stillSource{columns(4, red, green, blue, red)}
	frame, ok := New().Compose(src, 2, 2, false)
	if !ok {
		t.Fatal("Compose: ok false")
	}
	if got := frame.RGBAAt(0, 0); got != green {
		t.Errorf("left pixel = %v, want green (texel 1)", got)
	}
	if got := frame.RGBAAt(1, 0); got != blue {
		t.Errorf("right pixel = %v, want blue (texel 2)", got)
	}
}

func TestCompose_no_source(t *testing.T) {
	c := New()
	frame, ok := c.Compose(nil, 8, 8, false)
	if ok {
		t.Error("nil source should not be ok")
	}
	if frame.Bounds().Dx() != 8 {
		t.Errorf("frame should still be canvas sized, got %v", frame.Bounds())
	}

	empty := stillSource{image.NewRGBA(image.Rect(0, 0, 0, 5))}
	if _, ok := c.Compose(empty, 8, 8, false); ok {
		t.Error("zero-width source should not be ok")
	}
}

func TestCompose_reuses_buffer(t *testing.T) {
	c := New()
	src := stillSource{columns(1, red)}
	a, _ := c.Compose(src, 16, 16, false)
	b, _ := c.Compose(src, 16, 16, false)
	if &a.Pix[0] != &b.Pix[0] {
		t.Error("same canvas size should reuse the buffer")
	}
	small, _ := c.Compose(src, 8, 8, false)
	if &small.Pix[0] != &a.Pix[0] {
		t.Error("shrinking should reslice the existing buffer")
	}
	if small.Bounds() != image.Rect(0, 0, 8, 8) {
		t.Errorf("shrunk bounds = %v", small.Bounds())
	}
}
