// Package engine runs the render tick loop: it fades the canvas, composites
// the active background, paints the dot field from the latest stabilized mask
// and hands camera frames to the segmentation driver.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dotveil/internal/compositor"
	"dotveil/internal/dotfield"
	"dotveil/internal/mask"
	"dotveil/internal/session"
	"dotveil/internal/trail"

	"github.com/gogpu/gg"
)

// DefaultInterval is the render period when none is configured (about 60 Hz).
const DefaultInterval = 16 * time.Millisecond

// ErrInvalidSize is returned for negative canvas dimensions.
var ErrInvalidSize = errors.New("invalid canvas size")

// Segmenter receives camera frames from the render loop. *segment.Driver
// implements it.
type Segmenter interface {
	SetMirror(on bool)
	Tick(capture func() image.Image) bool
}

// Camera yields the current camera frame. *camera.Synthetic implements it.
type Camera interface {
	Frame() image.Image
}

// Recorder receives per-tick measurements. *metrics.Metrics implements it.
type Recorder interface {
	ObserveTick(d time.Duration)
	SetDots(active, total int)
}

// Config sizes the canvas and sets the tick period.
type Config struct {
	Width    int
	Height   int
	Interval time.Duration
	Palette  dotfield.Palette
}

// Option configures an Engine.
type Option func(*Engine)

// WithSegmenter wires the segmentation driver and the camera it samples.
func WithSegmenter(s Segmenter, cam Camera) Option {
	return func(e *Engine) {
		e.seg = s
		e.cam = cam
	}
}

// WithRecorder sets where tick metrics go.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// WithClock sets the time source passed to Tick by Run.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine owns the render target and everything painted onto it. Tick must
// only be called from one goroutine at a time; Run does that. The On* entry
// points and the read accessors are safe from any goroutine.
type Engine struct {
	session *session.Controller
	stab    *mask.Stabilizer
	seg     Segmenter
	cam     Camera
	rec     Recorder
	log     *slog.Logger
	now     func() time.Time

	interval time.Duration
	palette  dotfield.Palette

	// Render-loop state.
	tickMu   sync.Mutex
	dc       *gg.Context
	field    *dotfield.Field
	comp     *compositor.Compositor
	acc      *trail.Accumulator
	timer    trail.Timer
	width    int
	height   int
	rebuild  bool
	trailWas bool

	pending atomic.Pointer[image.Point]
	canvas  atomic.Pointer[image.Point]
	frame   atomic.Pointer[image.RGBA]
	ticks   atomic.Uint64
	active  atomic.Int64
}

// New returns an engine painting a cfg.Width x cfg.Height canvas. The initial
// size must be positive; later resizes may go to zero.
func New(cfg Config, sess *session.Controller, stab *mask.Stabilizer, log *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, cfg.Width, cfg.Height)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	e := &Engine{
		session:  sess,
		stab:     stab,
		log:      log,
		now:      time.Now,
		interval: cfg.Interval,
		palette:  cfg.Palette,
		dc:       gg.NewContext(cfg.Width, cfg.Height),
		field:    dotfield.New(cfg.Palette),
		comp:     compositor.New(),
		acc:      trail.New(cfg.Palette.Background),
		width:    cfg.Width,
		height:   cfg.Height,
		rebuild:  true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dc.ClearWithColor(cfg.Palette.Background)
	e.canvas.Store(&image.Point{X: cfg.Width, Y: cfg.Height})
	return e, nil
}

// Run ticks at the configured interval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("render loop started", slog.Duration("interval", e.interval))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("render loop stopped", slog.Uint64("ticks", e.ticks.Load()))
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(e.now()); err != nil {
				e.log.Warn("tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick renders one frame.
func (e *Engine) Tick(now time.Time) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	defer func() {
		e.ticks.Add(1)
		if e.rec != nil {
			e.rec.ObserveTick(time.Since(start))
			e.rec.SetDots(e.field.ActiveCount(), len(e.field.Dots()))
		}
	}()

	if err := e.applyResize(); err != nil {
		return err
	}

	st := e.session.State()
	if e.rebuild || st.Density != e.field.Density() {
		e.field.Rebuild(e.width, e.height, st.Density)
		e.rebuild = false
	}

	if st.Trail && !e.trailWas {
		e.timer.Reset()
	}
	e.trailWas = st.Trail
	elapsed := e.timer.Elapsed(now)

	if e.seg != nil && e.cam != nil {
		e.seg.SetMirror(st.Mirror)
		e.seg.Tick(e.cam.Frame)
	}

	if e.width <= 0 || e.height <= 0 {
		e.active.Store(0)
		return nil
	}

	if err := e.acc.Fade(e.dc, elapsed, st.Trail); err != nil {
		return fmt.Errorf("fade: %w", err)
	}

	var bg *image.RGBA
	if st.Mode.Reveals() && st.Source != nil {
		if f, ok := e.comp.Compose(st.Source, e.width, e.height, st.Mirror); ok {
			bg = f
		}
	}

	var m *mask.Mask
	if snap := e.stab.Current(); snap != nil {
		m = snap.Mask
	}

	if err := e.field.Render(e.dc, st.Mode, m, bg); err != nil {
		return fmt.Errorf("render dots: %w", err)
	}
	e.active.Store(int64(e.field.ActiveCount()))
	e.frame.Store(e.dc.ResizeTarget().ToImage())
	return nil
}

// applyResize picks up a size posted by OnResize. The render target cannot
// shrink to zero, so a zero size only empties the grid.
func (e *Engine) applyResize() error {
	p := e.pending.Swap(nil)
	if p == nil {
		return nil
	}
	if p.X == e.width && p.Y == e.height {
		return nil
	}
	e.width, e.height = p.X, p.Y
	e.rebuild = true
	e.canvas.Store(&image.Point{X: p.X, Y: p.Y})
	if p.X <= 0 || p.Y <= 0 {
		e.frame.Store(nil)
		return nil
	}
	if err := e.dc.Resize(p.X, p.Y); err != nil {
		return fmt.Errorf("resize render target: %w", err)
	}
	e.dc.ClearWithColor(e.palette.Background)
	e.timer.Reset()
	e.log.Debug("canvas resized", slog.Int("width", p.X), slog.Int("height", p.Y))
	return nil
}

// OnResize posts a new canvas size, applied at the start of the next tick.
// Zero is accepted and renders nothing.
func (e *Engine) OnResize(w, h int) error {
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	e.pending.Store(&image.Point{X: w, Y: h})
	return nil
}

// OnModeCycle advances the visual mode.
func (e *Engine) OnModeCycle() session.State {
	return e.session.CycleMode()
}

// OnDensityCycle advances the density preset; the grid is rebuilt next tick.
func (e *Engine) OnDensityCycle() dotfield.Density {
	return e.session.CycleDensity()
}

// OnTrailToggle flips the ghost trail.
func (e *Engine) OnTrailToggle() bool {
	return e.session.ToggleTrail()
}

// OnMirrorToggle flips horizontal mirroring of the background and the
// segmentation input.
func (e *Engine) OnMirrorToggle() bool {
	return e.session.ToggleMirror()
}

// Frame returns the last rendered canvas, or nil before the first frame or
// while the canvas is empty. The image must not be modified.
func (e *Engine) Frame() *image.RGBA {
	return e.frame.Load()
}

// Canvas returns the canvas size currently in effect.
func (e *Engine) Canvas() (w, h int) {
	p := e.canvas.Load()
	return p.X, p.Y
}

// Ticks returns the number of ticks run.
func (e *Engine) Ticks() uint64 {
	return e.ticks.Load()
}

// ActiveDots returns the active dot count of the last frame.
func (e *Engine) ActiveDots() int {
	return int(e.active.Load())
}

// Session returns the controller the engine reads its state from.
func (e *Engine) Session() *session.Controller {
	return e.session
}

// Close releases the render target. Run must have returned.
func (e *Engine) Close() error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	return e.dc.Close()
}
