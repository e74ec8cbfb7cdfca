package dotfield

import (
	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// Palette holds the fixed colours of the effect.
type Palette struct {
	// Hue fills active dots in flat colour mode and when no background is ready.
	Hue gg.RGBA
	// Idle fills inactive dots.
	Idle gg.RGBA
	// Background is the canvas tone the trail fades towards.
	Background gg.RGBA
}

// DefaultPalette is a cyan hue over a near-black canvas.
func DefaultPalette() Palette {
	return Palette{
		Hue:        fromColorful(colorful.Hsv(186, 0.85, 1)),
		Idle:       fromColorful(colorful.Hsv(0, 0, 0.16)),
		Background: fromColorful(colorful.Hsv(0, 0, 0.04)),
	}
}

func fromColorful(c colorful.Color) gg.RGBA {
	c = c.Clamped()
	return gg.RGB(c.R, c.G, c.B)
}
