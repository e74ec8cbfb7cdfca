package mask

import (
	"image"
	"image/color"
)

// Mask is a binary grid at segmentation resolution. Cells are stored row-major.
// A Mask handed to Stabilizer.Ingest or returned in a Snapshot must not be
// modified afterwards.
type Mask struct {
	W, H  int
	Cells []bool
}

// New returns an all-off mask of the given size. Non-positive sizes produce an
// empty mask.
func New(w, h int) *Mask {
	if w <= 0 || h <= 0 {
		return &Mask{}
	}
	return &Mask{W: w, H: h, Cells: make([]bool, w*h)}
}

// FromRows builds a mask from rows of 0/1 values. All rows must have equal length.
func FromRows(rows ...[]int) *Mask {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return &Mask{}
	}
	m := New(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, v := range row {
			m.Cells[y*m.W+x] = v != 0
		}
	}
	return m
}

// FromImage converts an oracle result into a mask: a cell is on when the
// pixel's luminance is at least half scale. Transparent pixels read as off.
func FromImage(img image.Image) *Mask {
	if img == nil {
		return &Mask{}
	}
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	if m.Empty() {
		return m
	}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			m.Cells[y*m.W+x] = g.Y >= 0x8000
		}
	}
	return m
}

// Empty reports whether the mask has no cells.
func (m *Mask) Empty() bool {
	return m == nil || m.W <= 0 || m.H <= 0 || len(m.Cells) < m.W*m.H
}

// At returns the cell at (x, y). Out-of-range coordinates read as off.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Cells[y*m.W+x]
}

// Set sets the cell at (x, y); out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Cells[y*m.W+x] = on
}

// SameSize reports whether m and o have identical dimensions.
func (m *Mask) SameSize(o *Mask) bool {
	return m.W == o.W && m.H == o.H
}

// Count returns the number of on cells.
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.Cells {
		if c {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{W: m.W, H: m.H, Cells: make([]bool, len(m.Cells))}
	copy(out.Cells, m.Cells)
	return out
}

// Equal reports whether both masks have the same size and cells.
func (m *Mask) Equal(o *Mask) bool {
	if !m.SameSize(o) {
		return false
	}
	for i := range m.Cells {
		if m.Cells[i] != o.Cells[i] {
			return false
		}
	}
	return true
}
