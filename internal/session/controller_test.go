package session

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dotveil/internal/compositor"
	"dotveil/internal/dotfield"
	"dotveil/internal/media"
	"dotveil/internal/mode"
)

type fakeSource struct{ name string }

func (fakeSource) Size() (int, int)   { return 1, 1 }
func (fakeSource) Frame() image.Image { return image.NewRGBA(image.Rect(0, 0, 1, 1)) }

// gatedLoader blocks each load until its URL's gate is released.
type gatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedLoader(urls ...string) *gatedLoader {
	l := &gatedLoader{gates: make(map[string]chan struct{})}
	for _, u := range urls {
		l.gates[u] = make(chan struct{})
	}
	return l
}

func (l *gatedLoader) release(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	close(l.gates[url])
}

func (l *gatedLoader) Load(ctx context.Context, e media.Entry) (compositor.Source, error) {
	l.mu.Lock()
	gate := l.gates[e.URL]
	l.mu.Unlock()
	if gate == nil {
		return fakeSource{name: e.URL}, nil
	}
	select {
	case <-gate:
		return fakeSource{name: e.URL}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type failingLoader struct{}

func (failingLoader) Load(context.Context, media.Entry) (compositor.Source, error) {
	return nil, errors.New("boom")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCycleMode_no_media(t *testing.T) {
	c := NewController(newGatedLoader(), testLogger())
	defer c.Close()
	for i := 0; i < 3; i++ {
		st := c.CycleMode()
		if st.Mode != mode.FlatColor {
			t.Errorf("cycle %d: mode = %v, want flat", i, st.Mode)
		}
		if st.Cursor != NoSelection {
			t.Errorf("cycle %d: cursor = %d, want unset", i, st.Cursor)
		}
	}
}

func TestCycleMode_walks_entries_then_flat(t *testing.T) {
	c := NewController(newGatedLoader(), testLogger())
	defer c.Close()
	c.SetEntries([]media.Entry{
		{URL: "a.png", Kind: media.KindImage},
		{URL: "b.gif", Kind: media.KindVideo},
	})

	want := []struct {
		mode   mode.Mode
		cursor int
	}{
		{mode.ImageReveal, 0},
		{mode.VideoReveal, 1},
		{mode.FlatColor, NoSelection},
		{mode.ImageReveal, 0},
	}
	for i, w := range want {
		st := c.CycleMode()
		if st.Mode != w.mode || st.Cursor != w.cursor {
			t.Errorf("step %d: got (%v,%d), want (%v,%d)", i, st.Mode, st.Cursor, w.mode, w.cursor)
		}
	}
}

func TestSource_ready_only_after_load(t *testing.T) {
	l := newGatedLoader("a.png")
	c := NewController(l, testLogger())
	defer c.Close()
	c.SetEntries([]media.Entry{{URL: "a.png", Kind: media.KindImage}})

	st := c.CycleMode()
	if st.Source != nil || !st.Loading {
		t.Fatalf("source should not be ready while loading: %+v", st)
	}
	l.release("a.png")
	waitFor(t, func() bool { return c.State().Source != nil })
	if c.State().Loading {
		t.Error("loading should be false once ready")
	}
}

func TestStale_load_does_not_override(t *testing.T) {
	l := newGatedLoader("a.png", "b.gif")
	c := NewController(l, testLogger())
	defer c.Close()
	c.SetEntries([]media.Entry{
		{URL: "a.png", Kind: media.KindImage},
		{URL: "b.gif", Kind: media.KindVideo},
	})

	c.CycleMode() // a.png, blocked
	c.CycleMode() // b.gif, blocked
	l.release("b.gif")
	waitFor(t, func() bool { return c.State().Source != nil })

	l.release("a.png")
	c.Close() // waits for the stale goroutine to finish
	st := c.State()
	if src, ok := st.Source.(fakeSource); !ok || src.name != "b.gif" {
		t.Errorf("current source = %+v, want b.gif", st.Source)
	}
	if st.Mode != mode.VideoReveal {
		t.Errorf("mode = %v, want video", st.Mode)
	}
}

func TestFailed_load_falls_back(t *testing.T) {
	c := NewController(failingLoader{}, testLogger())
	defer c.Close()
	c.SetEntries([]media.Entry{{URL: "a.png", Kind: media.KindImage}})
	c.CycleMode()
	waitFor(t, func() bool { return !c.State().Loading })
	if c.State().Source != nil {
		t.Error("failed load should leave no source")
	}
}

func TestToggles_and_density(t *testing.T) {
	c := NewController(newGatedLoader(), testLogger(), WithTrail(false), WithMirror(false), WithDensity(dotfield.Coarse))
	defer c.Close()
	if !c.ToggleTrail() || c.ToggleTrail() {
		t.Error("trail toggle should flip each call")
	}
	if !c.ToggleMirror() {
		t.Error("mirror toggle should flip to true")
	}
	if got := c.CycleDensity(); got != dotfield.Fine {
		t.Errorf("density after coarse = %v, want fine", got)
	}
}

func TestModeObserver(t *testing.T) {
	var seen []mode.Mode
	c := NewController(newGatedLoader(), testLogger(), WithModeObserver(func(st State) {
		seen = append(seen, st.Mode)
	}))
	defer c.Close()
	c.CycleMode()
	if len(seen) != 1 || seen[0] != mode.FlatColor {
		t.Errorf("observer saw %v", seen)
	}
}
