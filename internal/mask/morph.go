package mask

import "math"

const (
	// HistoryCapacity is the number of raw masks kept for the temporal vote.
	HistoryCapacity = 4
	// VoteRatio is the fraction of history entries that must agree for a cell to be on.
	VoteRatio = 0.75
	// KernelRadius is the half-width of the square structuring element used by Close.
	KernelRadius = 1
)

// VoteThreshold returns the number of on observations needed out of n.
func VoteThreshold(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n) * VoteRatio))
}

// Vote returns the per-cell majority of history. All entries must share the
// size of the first one; callers guarantee this.
func Vote(history []*Mask) *Mask {
	if len(history) == 0 {
		return &Mask{}
	}
	first := history[0]
	out := New(first.W, first.H)
	threshold := VoteThreshold(len(history))
	for i := range out.Cells {
		n := 0
		for _, h := range history {
			if h.Cells[i] {
				n++
			}
		}
		out.Cells[i] = n >= threshold
	}
	return out
}

// Dilate sets a cell when any in-grid cell of its 3x3 neighbourhood is on.
// Off-grid neighbours count as off.
func Dilate(m *Mask) *Mask {
	out := New(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			out.Cells[y*m.W+x] = anyNeighbour(m, x, y)
		}
	}
	return out
}

// Erode keeps a cell on only when its whole 3x3 footprint lies on the grid and
// is on. Border cells always come out off.
func Erode(m *Mask) *Mask {
	out := New(m.W, m.H)
	for y := KernelRadius; y < m.H-KernelRadius; y++ {
		for x := KernelRadius; x < m.W-KernelRadius; x++ {
			out.Cells[y*m.W+x] = allNeighbours(m, x, y)
		}
	}
	return out
}

// Close is dilation followed by erosion with the same 3x3 element.
func Close(m *Mask) *Mask {
	if m.Empty() {
		return &Mask{}
	}
	return Erode(Dilate(m))
}

func anyNeighbour(m *Mask, x, y int) bool {
	for dy := -KernelRadius; dy <= KernelRadius; dy++ {
		for dx := -KernelRadius; dx <= KernelRadius; dx++ {
			if m.At(x+dx, y+dy) {
				return true
			}
		}
	}
	return false
}

func allNeighbours(m *Mask, x, y int) bool {
	for dy := -KernelRadius; dy <= KernelRadius; dy++ {
		row := (y + dy) * m.W
		for dx := -KernelRadius; dx <= KernelRadius; dx++ {
			if !m.Cells[row+x+dx] {
				return false
			}
		}
	}
	return true
}
