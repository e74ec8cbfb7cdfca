package segment

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"dotveil/internal/mask"
)

// DegradedAfter is the number of consecutive Send failures after which the
// driver reports a degraded state.
const DegradedAfter = 3

// Stats is a snapshot of driver counters.
type Stats struct {
	Submitted           uint64
	Skipped             uint64
	Failures            uint64
	ConsecutiveFailures int32
	Degraded            bool
}

// Recorder receives driver events; metrics.Metrics implements it.
type Recorder interface {
	IncOracleSubmitted()
	IncOracleSkipped()
	IncOracleFailures()
	SetOracleDegraded(bool)
}

// Driver submits camera frames to an Oracle from the render loop and feeds
// its results into a mask.Stabilizer. Tick never blocks on the oracle.
type Driver struct {
	oracle Oracle
	stab   *mask.Stabilizer
	log    *slog.Logger
	rec    Recorder

	ticks    uint64     // render loop only
	mu       sync.Mutex // orders Tick's wg.Add against Close
	inFlight atomic.Bool
	closed   atomic.Bool
	mirror   atomic.Bool

	submitted   atomic.Uint64
	skipped     atomic.Uint64
	failures    atomic.Uint64
	consecutive atomic.Int32

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	opts Options
}

// NewDriver wires oracle results into stab. rec may be nil.
func NewDriver(o Oracle, stab *mask.Stabilizer, log *slog.Logger, rec Recorder, opts Options) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		oracle: o,
		stab:   stab,
		log:    log,
		rec:    rec,
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
	}
	d.mirror.Store(opts.Mirror)
	o.SetOptions(opts)
	o.OnResult(d.handleResult)
	return d
}

// SetMirror reconfigures the oracle's input mirroring when it changes.
// Called from the render loop.
func (d *Driver) SetMirror(on bool) {
	if d.mirror.Swap(on) == on {
		return
	}
	d.opts.Mirror = on
	d.oracle.SetOptions(d.opts)
}

// Tick is called once per render tick. On every other tick it captures a
// frame and submits it, unless the previous submission is still in flight, in
// which case this tick's submission is skipped. capture is only called when a
// submission goes ahead. Tick reports whether a submission started.
func (d *Driver) Tick(capture func() image.Image) bool {
	d.ticks++
	if d.ticks%2 != 0 {
		return false
	}

	d.mu.Lock()
	if d.closed.Load() {
		d.mu.Unlock()
		return false
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		d.mu.Unlock()
		d.skipped.Add(1)
		if d.rec != nil {
			d.rec.IncOracleSkipped()
		}
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	frame := capture()
	if frame == nil {
		d.inFlight.Store(false)
		d.wg.Done()
		return false
	}

	d.submitted.Add(1)
	if d.rec != nil {
		d.rec.IncOracleSubmitted()
	}
	go d.send(frame)
	return true
}

func (d *Driver) send(frame image.Image) {
	defer d.wg.Done()
	defer d.inFlight.Store(false)

	if err := d.oracle.Send(d.ctx, frame); err != nil {
		if d.closed.Load() {
			return
		}
		d.failures.Add(1)
		n := d.consecutive.Add(1)
		d.log.Warn("segmentation submit failed",
			slog.String("error", err.Error()),
			slog.Int("consecutive", int(n)))
		if d.rec != nil {
			d.rec.IncOracleFailures()
		}
		if n == DegradedAfter {
			d.log.Error("segmentation degraded", slog.Int("consecutive_failures", int(n)))
			if d.rec != nil {
				d.rec.SetOracleDegraded(true)
			}
		}
		return
	}
	if d.consecutive.Swap(0) >= DegradedAfter {
		d.log.Info("segmentation recovered")
		if d.rec != nil {
			d.rec.SetOracleDegraded(false)
		}
	}
}

// handleResult runs on the oracle's goroutine.
func (d *Driver) handleResult(r Result) {
	if d.closed.Load() {
		return
	}
	if r.Mask == nil {
		d.stab.Clear()
		return
	}
	d.stab.Ingest(mask.FromImage(r.Mask))
}

// Degraded reports whether DegradedAfter or more consecutive submissions failed.
func (d *Driver) Degraded() bool {
	return d.consecutive.Load() >= DegradedAfter
}

// Stats returns the driver counters.
func (d *Driver) Stats() Stats {
	n := d.consecutive.Load()
	return Stats{
		Submitted:           d.submitted.Load(),
		Skipped:             d.skipped.Load(),
		Failures:            d.failures.Load(),
		ConsecutiveFailures: n,
		Degraded:            n >= DegradedAfter,
	}
}

// Close stops accepting submissions, cancels and waits for an in-flight Send,
// then closes the oracle. The oracle is closed exactly once no matter how many
// times Close is called.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed.Store(true)
		d.mu.Unlock()
		d.cancel()
		d.wg.Wait()
		d.closeErr = d.oracle.Close()
	})
	return d.closeErr
}
