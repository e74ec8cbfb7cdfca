package segment

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dotveil/internal/mask"
)

// stubOracle blocks each Send until release is signalled and then emits the
// configured result.
type stubOracle struct {
	mu       sync.Mutex
	cb       func(Result)
	opts     Options
	result   Result
	err      error
	release  chan struct{}
	sends    atomic.Int32
	closes   atomic.Int32
	blocking bool
}

func newStubOracle(blocking bool) *stubOracle {
	return &stubOracle{release: make(chan struct{}, 16), blocking: blocking}
}

func (o *stubOracle) OnResult(fn func(Result)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cb = fn
}

func (o *stubOracle) SetOptions(opts Options) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts = opts
}

func (o *stubOracle) Send(ctx context.Context, frame image.Image) error {
	o.sends.Add(1)
	if o.blocking {
		select {
		case <-o.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	o.mu.Lock()
	cb, res, err := o.cb, o.result, o.err
	o.mu.Unlock()
	if err != nil {
		return err
	}
	if cb != nil {
		cb(res)
	}
	return nil
}

func (o *stubOracle) Close() error {
	o.closes.Add(1)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frame() image.Image {
	return image.NewGray(image.Rect(0, 0, 4, 4))
}

func fullMask(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
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

func TestDriver_submits_every_other_tick(t *testing.T) {
	o := newStubOracle(false)
	d := NewDriver(o, mask.NewStabilizer(), testLogger(), nil, Options{})
	defer d.Close()

	var started []bool
	for i := 0; i < 4; i++ {
		started = append(started, d.Tick(frame))
		waitFor(t, func() bool { return !d.inFlight.Load() })
	}
	want := []bool{false, true, false, true}
	for i := range want {
		if started[i] != want[i] {
			t.Errorf("tick %d started=%v, want %v", i+1, started[i], want[i])
		}
	}
}

func TestDriver_skips_while_in_flight(t *testing.T) {
	o := newStubOracle(true)
	d := NewDriver(o, mask.NewStabilizer(), testLogger(), nil, Options{})
	defer d.Close()

	d.Tick(frame)
	if !d.Tick(frame) {
		t.Fatal("second tick should submit")
	}
	d.Tick(frame)
	if d.Tick(frame) {
		t.Fatal("fourth tick should be skipped while the first call is pending")
	}
	if got := d.Stats().Skipped; got != 1 {
		t.Errorf("skipped = %d, want 1", got)
	}
	o.release <- struct{}{}
	waitFor(t, func() bool { return !d.inFlight.Load() })
	d.Tick(frame)
	if !d.Tick(frame) {
		t.Error("submission should resume once the call completes")
	}
	o.release <- struct{}{}
}

func TestDriver_results_feed_stabilizer(t *testing.T) {
	o := newStubOracle(false)
	o.result = Result{Mask: fullMask(6, 6)}
	stab := mask.NewStabilizer()
	d := NewDriver(o, stab, testLogger(), nil, Options{})
	defer d.Close()

	d.Tick(frame)
	d.Tick(frame)
	waitFor(t, func() bool { return stab.Current() != nil })
	if snap := stab.Current(); snap.Mask.W != 6 || !snap.Mask.At(3, 3) {
		t.Errorf("unexpected snapshot %+v", snap.Mask)
	}

	o.mu.Lock()
	o.result = Result{}
	o.mu.Unlock()
	waitFor(t, func() bool { return !d.inFlight.Load() })
	d.Tick(frame)
	d.Tick(frame)
	waitFor(t, func() bool { return stab.Current() == nil })
}

type countingRecorder struct {
	failures atomic.Int32
	degraded atomic.Bool
}

func (r *countingRecorder) IncOracleSubmitted()       {}
func (r *countingRecorder) IncOracleSkipped()         {}
func (r *countingRecorder) IncOracleFailures()        { r.failures.Add(1) }
func (r *countingRecorder) SetOracleDegraded(on bool) { r.degraded.Store(on) }

func TestDriver_failures_degrade_and_keep_history(t *testing.T) {
	o := newStubOracle(false)
	o.result = Result{Mask: fullMask(5, 5)}
	stab := mask.NewStabilizer()
	rec := &countingRecorder{}
	d := NewDriver(o, stab, testLogger(), rec, Options{})
	defer d.Close()

	submit := func() {
		d.Tick(frame)
		d.Tick(frame)
		waitFor(t, func() bool { return !d.inFlight.Load() })
	}
	submit()
	if stab.HistoryLen() != 1 {
		t.Fatalf("history = %d, want 1", stab.HistoryLen())
	}

	o.mu.Lock()
	o.err = errors.New("model crashed")
	o.mu.Unlock()
	for i := 0; i < DegradedAfter; i++ {
		if d.Degraded() {
			t.Fatalf("degraded after only %d failures", i)
		}
		submit()
	}
	if !d.Degraded() || !rec.degraded.Load() {
		t.Error("expected degraded after consecutive failures")
	}
	if stab.HistoryLen() != 1 || stab.Current() == nil {
		t.Error("failures must not touch the stabilizer")
	}
	if got := rec.failures.Load(); got != DegradedAfter {
		t.Errorf("recorded failures = %d", got)
	}

	o.mu.Lock()
	o.err = nil
	o.mu.Unlock()
	submit()
	if d.Degraded() || rec.degraded.Load() {
		t.Error("a success should clear the degraded state")
	}
}

func TestDriver_Close_once_with_call_in_flight(t *testing.T) {
	o := newStubOracle(true)
	d := NewDriver(o, mask.NewStabilizer(), testLogger(), nil, Options{})

	d.Tick(frame)
	d.Tick(frame)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Close()
		}()
	}
	wg.Wait()
	if got := o.closes.Load(); got != 1 {
		t.Errorf("oracle closed %d times, want 1", got)
	}
	if d.Degraded() || d.Stats().Failures != 0 {
		t.Error("cancellation on close should not count as a failure")
	}
	d.Tick(frame)
	if d.Tick(frame) {
		t.Error("no submissions after Close")
	}
}

func TestDriver_SetMirror_reconfigures(t *testing.T) {
	o := newStubOracle(false)
	d := NewDriver(o, mask.NewStabilizer(), testLogger(), nil, Options{Model: Landscape})
	defer d.Close()
	d.SetMirror(true)
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.opts.Mirror || o.opts.Model != Landscape {
		t.Errorf("options = %+v", o.opts)
	}
}

func TestLumaOracle(t *testing.T) {
	o := NewLumaOracle(128)
	o.SetOptions(Options{Model: Landscape, Mirror: true})
	var got Result
	o.OnResult(func(r Result) { got = r })

	// Bright left third, dark elsewhere.
	src := image.NewGray(image.Rect(0, 0, 300, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			src.SetGray(x, y, color.Gray{Y: 250})
		}
	}
	if err := o.Send(context.Background(), src); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Mask == nil {
		t.Fatal("expected a mask")
	}
	m := mask.FromImage(got.Mask)
	if m.W != 256 || m.H != 144 {
		t.Errorf("mask size %dx%d, want 256x144", m.W, m.H)
	}
	// Mirrored: the bright region is on the right.
	if !m.At(250, 70) || m.At(5, 70) {
		t.Error("mirrored mask should have the subject on the right")
	}

	if err := o.Send(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10))); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Mask != nil {
		t.Error("dark frame should report no mask")
	}

	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := o.Send(context.Background(), src); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestParseModel(t *testing.T) {
	if m, ok := ParseModel("Landscape"); !ok || m != Landscape {
		t.Errorf("ParseModel(Landscape) = %v, %v", m, ok)
	}
	if m, ok := ParseModel("general"); !ok || m != General || m.String() != "general" {
		t.Errorf("ParseModel(general) = %v, %v", m, ok)
	}
	if m, ok := ParseModel(" landscape\t"); !ok || m != Landscape {
		t.Errorf("ParseModel with padding = %v, %v", m, ok)
	}
	if _, ok := ParseModel("selfie"); ok {
		t.Error("unknown model should not parse")
	}
}
