package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dotveil/internal/compositor"
	"dotveil/internal/dotfield"
	"dotveil/internal/media"
	"dotveil/internal/mode"
)

// NoSelection is the cursor value when no media entry is selected.
const NoSelection = -1

// Loader decodes a media entry into a drawable source.
type Loader interface {
	Load(ctx context.Context, e media.Entry) (compositor.Source, error)
}

// State is a consistent snapshot of the session, taken once per render tick.
type State struct {
	Mode    mode.Mode
	Density dotfield.Density
	Trail   bool
	Mirror  bool
	Cursor  int
	Entry   *media.Entry
	// Source is the ready background, or nil while loading or in flat mode.
	Source compositor.Source
	// Loading is true while a selected entry is still being loaded.
	Loading bool
}

// Controller holds the visual mode, density and toggles, and switches the
// background source when a media load completes. All methods are safe for
// concurrent use.
type Controller struct {
	mu      sync.Mutex
	entries []media.Entry
	cursor  int
	mode    mode.Mode
	density dotfield.Density
	trail   bool
	mirror  bool
	source  compositor.Source
	loading bool

	gen    uint64
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup

	loader   Loader
	log      *slog.Logger
	onChange func(State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithDensity sets the initial density preset.
func WithDensity(d dotfield.Density) Option {
	return func(c *Controller) { c.density = d }
}

// WithTrail sets whether the ghost trail starts enabled.
func WithTrail(on bool) Option {
	return func(c *Controller) { c.trail = on }
}

// WithMirror sets whether output starts mirrored.
func WithMirror(on bool) Option {
	return func(c *Controller) { c.mirror = on }
}

// WithModeObserver registers fn to be called after every mode change,
// outside the controller's lock.
func WithModeObserver(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// NewController returns a controller in flat colour mode with no selection.
func NewController(loader Loader, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		cursor:  NoSelection,
		mode:    mode.FlatColor,
		density: dotfield.Medium,
		trail:   true,
		mirror:  true,
		loader:  loader,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEntries replaces the discovered media list. The session returns to flat
// colour since the old cursor no longer refers to the same entry.
func (c *Controller) SetEntries(entries []media.Entry) {
	c.mu.Lock()
	c.entries = append([]media.Entry(nil), entries...)
	c.selectFlatLocked()
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
}

// Entries returns a copy of the media list.
func (c *Controller) Entries() []media.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]media.Entry(nil), c.entries...)
}

// CycleMode advances the cursor over the media entries plus the implicit flat
// colour option: (cursor+1) mod (N+1), where index N means flat colour.
func (c *Controller) CycleMode() State {
	c.mu.Lock()
	if c.closed {
		st := c.stateLocked()
		c.mu.Unlock()
		return st
	}
	n := len(c.entries)
	next := (c.cursor + 1) % (n + 1)
	if next == n {
		c.selectFlatLocked()
	} else {
		c.selectEntryLocked(next)
	}
	st := c.stateLocked()
	c.mu.Unlock()

	c.log.Info("mode changed",
		slog.String("mode", st.Mode.String()),
		slog.Int("cursor", st.Cursor))
	c.notify(st)
	return st
}

// CycleDensity advances to the next density preset.
func (c *Controller) CycleDensity() dotfield.Density {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.density = c.density.Next()
	return c.density
}

// ToggleTrail flips the ghost trail and returns the new value.
func (c *Controller) ToggleTrail() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trail = !c.trail
	return c.trail
}

// ToggleMirror flips horizontal mirroring and returns the new value.
func (c *Controller) ToggleMirror() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror = !c.mirror
	return c.mirror
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close cancels any pending load and waits for loader goroutines to exit.
// Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// selectFlatLocked switches to flat colour and drops any pending load.
// Caller must hold c.mu.
func (c *Controller) selectFlatLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.cursor = NoSelection
	c.mode = mode.FlatColor
	c.source = nil
	c.loading = false
}

// selectEntryLocked switches to the entry at i and starts loading it. The
// previous source stays out of use: until the load completes the dot field
// falls back to flat colour. Caller must hold c.mu.
func (c *Controller) selectEntryLocked(i int) {
	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	e := c.entries[i]
	c.cursor = i
	c.mode = mode.ImageReveal
	if e.Kind == media.KindVideo {
		c.mode = mode.VideoReveal
	}
	c.source = nil
	c.loading = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	gen := c.gen
	c.wg.Add(1)
	go c.load(ctx, gen, e)
}

// load runs one media load and installs the result if it is still current.
func (c *Controller) load(ctx context.Context, gen uint64, e media.Entry) {
	defer c.wg.Done()
	src, err := c.loader.Load(ctx, e)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("stale media load discarded", slog.String("url", e.URL))
		return
	}
	c.loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Warn("media load failed", slog.String("url", e.URL), slog.String("error", err.Error()))
		}
		return
	}
	c.source = src
}

// stateLocked builds a State. Caller must hold c.mu.
func (c *Controller) stateLocked() State {
	st := State{
		Mode:    c.mode,
		Density: c.density,
		Trail:   c.trail,
		Mirror:  c.mirror,
		Cursor:  c.cursor,
		Source:  c.source,
		Loading: c.loading,
	}
	if c.cursor >= 0 && c.cursor < len(c.entries) {
		e := c.entries[c.cursor]
		st.Entry = &e
	}
	return st
}

func (c *Controller) notify(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}
