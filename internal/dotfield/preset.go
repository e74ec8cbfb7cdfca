package dotfield

import "strings"

// Density selects one of the fixed grid presets.
type Density int

const (
	Fine Density = iota
	Medium
	Coarse
)

// Preset is a grid spacing and base dot radius, both in canvas pixels.
type Preset struct {
	Spacing int
	Radius  float64
}

var presets = [...]Preset{
	Fine:   {Spacing: 8, Radius: 2},
	Medium: {Spacing: 12, Radius: 3},
	Coarse: {Spacing: 18, Radius: 4.5},
}

// Preset returns the spacing and radius for d. Unknown values map to Medium.
func (d Density) Preset() Preset {
	if d < Fine || d > Coarse {
		return presets[Medium]
	}
	return presets[d]
}

// Next returns the following preset, wrapping from Coarse to Fine.
func (d Density) Next() Density {
	return (d + 1) % Density(len(presets))
}

func (d Density) String() string {
	switch d {
	case Fine:
		return "fine"
	case Coarse:
		return "coarse"
	default:
		return "medium"
	}
}

// ParseDensity maps "fine", "medium" or "coarse" to a Density.
func ParseDensity(s string) (Density, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fine":
		return Fine, true
	case "medium":
		return Medium, true
	case "coarse":
		return Coarse, true
	}
	return Medium, false
}
