package segment

import (
	"context"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// LumaOracle is a reference segmenter: it downscales the frame to the model
// resolution and marks pixels brighter than a threshold as subject. It stands
// in for a real model in the demo server and in tests.
type LumaOracle struct {
	mu        sync.Mutex
	opts      Options
	threshold uint8
	onResult  func(Result)
	closed    bool
}

// NewLumaOracle returns an oracle that treats luminance >= threshold as subject.
func NewLumaOracle(threshold uint8) *LumaOracle {
	return &LumaOracle{threshold: threshold}
}

// Resolution returns the mask size produced for a model.
func Resolution(m Model) (w, h int) {
	if m == Landscape {
		return 256, 144
	}
	return 256, 256
}

// OnResult implements Oracle.OnResult.
func (o *LumaOracle) OnResult(fn func(Result)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onResult = fn
}

// SetOptions implements Oracle.SetOptions.
func (o *LumaOracle) SetOptions(opts Options) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts = opts
}

// Send implements Oracle.Send. The result callback runs before Send returns.
func (o *LumaOracle) Send(ctx context.Context, frame image.Image) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	opts, threshold, cb := o.opts, o.threshold, o.onResult
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	w, h := Resolution(opts.Model)
	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Rect, frame, frame.Bounds(), draw.Src, nil)

	out := image.NewGray(gray.Rect)
	found := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if gray.Pix[y*gray.Stride+x] < threshold {
				continue
			}
			dx := x
			if opts.Mirror {
				dx = w - 1 - x
			}
			out.Pix[y*out.Stride+dx] = 0xff
			found = true
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if cb != nil {
		if found {
			cb(Result{Mask: out})
		} else {
			cb(Result{})
		}
	}
	return nil
}

// Close implements Oracle.Close.
func (o *LumaOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.closed = true
	return nil
}
