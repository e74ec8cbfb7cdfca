package mode

// Mode is the visual mode of a session.
type Mode int

const (
	// FlatColor fills active dots with a fixed hue.
	FlatColor Mode = iota
	// ImageReveal fills active dots from a still background image.
	ImageReveal
	// VideoReveal fills active dots from the current frame of a looping clip.
	VideoReveal
)

// String returns the wire name used in logs and the HTTP state document.
func (m Mode) String() string {
	switch m {
	case ImageReveal:
		return "image_reveal"
	case VideoReveal:
		return "video_reveal"
	default:
		return "flat_color"
	}
}

// Reveals reports whether the mode samples a background source.
func (m Mode) Reveals() bool {
	return m == ImageReveal || m == VideoReveal
}
