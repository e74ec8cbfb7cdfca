package segment

import (
	"context"
	"errors"
	"image"
	"strings"
)

// Model selects the oracle's quality/speed trade-off.
type Model int

const (
	// General is the square, higher quality model.
	General Model = iota
	// Landscape is the faster 16:9 model.
	Landscape
)

func (m Model) String() string {
	if m == Landscape {
		return "landscape"
	}
	return "general"
}

// ParseModel maps "general" or "landscape" to a Model.
func ParseModel(s string) (Model, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "general":
		return General, true
	case "landscape":
		return Landscape, true
	}
	return General, false
}

// Options configures an oracle.
type Options struct {
	Model Model
	// Mirror flips the input horizontally before segmentation so results line
	// up with a mirrored display.
	Mirror bool
}

// Result is one segmentation output. A nil Mask means the oracle found no
// subject in the frame.
type Result struct {
	Mask image.Image
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("segmentation oracle closed")

// Oracle is the segmentation model. Send submits a frame and returns when the
// oracle has finished with it; results arrive through the OnResult callback at
// the oracle's own pace, on its own goroutine, zero or more times per
// submission.
type Oracle interface {
	Send(ctx context.Context, frame image.Image) error
	OnResult(fn func(Result))
	SetOptions(opts Options)
	Close() error
}
