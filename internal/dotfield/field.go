package dotfield

import (
	"image"
	"image/color"
	"math"

	"dotveil/internal/mask"
	"dotveil/internal/mode"

	"github.com/gogpu/gg"
)

const (
	// ActiveScale multiplies the base radius of dots inside the silhouette.
	ActiveScale = 1.5
	// IdleScale multiplies the base radius of dots outside it.
	IdleScale = 0.5
)

// Dot is one grid cell. The anchor and base radius are fixed for the life of
// the grid; Active and Fill are recomputed every frame.
type Dot struct {
	BaseX, BaseY float64
	BaseRadius   float64
	Active       bool
	Fill         gg.RGBA
}

// Radius returns the radius the dot is drawn at this frame.
func (d Dot) Radius() float64 {
	if d.Active {
		return d.BaseRadius * ActiveScale
	}
	return d.BaseRadius * IdleScale
}

// Field owns the dot grid for one canvas size and density preset.
// It is not safe for concurrent use; the render loop owns it.
type Field struct {
	width, height int
	density       Density
	palette       Palette
	dots          []Dot
	active        int
}

// New returns an empty Field painting with the given palette.
func New(p Palette) *Field {
	return &Field{palette: p, density: Medium}
}

// Rebuild regenerates the whole grid for a w x h canvas at density d.
// A non-positive size yields an empty grid.
func (f *Field) Rebuild(w, h int, d Density) {
	f.width, f.height, f.density = w, h, d
	f.active = 0
	if w <= 0 || h <= 0 {
		f.dots = f.dots[:0]
		return
	}

	p := d.Preset()
	cols := (w + p.Spacing - 1) / p.Spacing
	rows := (h + p.Spacing - 1) / p.Spacing
	if n := cols * rows; cap(f.dots) < n {
		f.dots = make([]Dot, 0, n)
	}
	f.dots = f.dots[:0]
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			f.dots = append(f.dots, Dot{
				BaseX:      float64(col * p.Spacing),
				BaseY:      float64(row * p.Spacing),
				BaseRadius: p.Radius,
			})
		}
	}
}

// Size returns the canvas size the grid was built for.
func (f *Field) Size() (w, h int) { return f.width, f.height }

// Density returns the preset the grid was built with.
func (f *Field) Density() Density { return f.density }

// Dots returns the grid. The slice is owned by the Field and must not be
// retained past the next Rebuild.
func (f *Field) Dots() []Dot { return f.dots }

// ActiveCount returns the number of dots active after the last Classify.
func (f *Field) ActiveCount() int { return f.active }

// Classify decides activation and fill for every dot. m and bg may be nil.
func (f *Field) Classify(md mode.Mode, m *mask.Mask, bg *image.RGBA) {
	f.active = 0
	hasMask := !m.Empty() && f.width > 0 && f.height > 0
	var sx, sy float64
	if hasMask {
		sx = float64(m.W) / float64(f.width)
		sy = float64(m.H) / float64(f.height)
	}

	for i := range f.dots {
		d := &f.dots[i]
		d.Active = false
		d.Fill = f.palette.Idle
		if !hasMask {
			continue
		}
		mx := int(math.Floor(d.BaseX * sx))
		my := int(math.Floor(d.BaseY * sy))
		if mx < 0 || my < 0 || mx >= m.W || my >= m.H || !m.At(mx, my) {
			continue
		}
		d.Active = true
		d.Fill = f.fill(md, bg, d)
		f.active++
	}
}

// fill resolves the colour of an active dot.
func (f *Field) fill(md mode.Mode, bg *image.RGBA, d *Dot) gg.RGBA {
	if !md.Reveals() || bg == nil {
		return f.palette.Hue
	}
	x, y := int(d.BaseX), int(d.BaseY)
	if !(image.Point{X: x, Y: y}).In(bg.Rect) {
		return f.palette.Hue
	}
	c := color.NRGBAModel.Convert(bg.RGBAAt(x, y)).(color.NRGBA)
	return gg.RGBA{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}

// Render classifies the grid and paints it onto dc. Inactive dots are always
// drawn so the background keeps its texture.
func (f *Field) Render(dc *gg.Context, md mode.Mode, m *mask.Mask, bg *image.RGBA) error {
	if len(f.dots) == 0 {
		f.active = 0
		return nil
	}
	f.Classify(md, m, bg)

	// Idle dots and flat-colour dots share one colour each, so they go out as
	// a single path per colour.
	uniform := !md.Reveals() || bg == nil
	if f.active < len(f.dots) {
		for _, d := range f.dots {
			if !d.Active {
				dc.DrawCircle(d.BaseX, d.BaseY, d.Radius())
			}
		}
		dc.SetRGBA(f.palette.Idle.R, f.palette.Idle.G, f.palette.Idle.B, f.palette.Idle.A)
		if err := dc.Fill(); err != nil {
			return err
		}
	}

	if f.active == 0 {
		return nil
	}
	if uniform {
		for _, d := range f.dots {
			if d.Active {
				dc.DrawCircle(d.BaseX, d.BaseY, d.Radius())
			}
		}
		dc.SetRGBA(f.palette.Hue.R, f.palette.Hue.G, f.palette.Hue.B, f.palette.Hue.A)
		return dc.Fill()
	}

	for _, d := range f.dots {
		if !d.Active {
			continue
		}
		dc.DrawCircle(d.BaseX, d.BaseY, d.Radius())
		dc.SetRGBA(d.Fill.R, d.Fill.G, d.Fill.B, d.Fill.A)
		if err := dc.Fill(); err != nil {
			return err
		}
	}
	return nil
}
