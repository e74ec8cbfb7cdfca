package mask

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrMalformedHistory is reported when history entries disagree on size.
// Ingest guarantees this cannot happen, so seeing it means a bug.
var ErrMalformedHistory = errors.New("mask history entries differ in size")

// Snapshot is an immutable stabilized mask as published to readers.
type Snapshot struct {
	Mask        *Mask
	Seq         uint64
	PublishedAt time.Time
}

// Stabilizer folds raw oracle masks into a denoised, temporally smoothed mask.
//
// Ingest and Clear are called from the oracle's result callback; Current may be
// called concurrently from the render loop and always returns a complete
// snapshot.
type Stabilizer struct {
	mu      sync.Mutex
	history []*Mask
	seq     uint64

	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// Option configures a Stabilizer.
type Option func(*Stabilizer)

// WithClock sets the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Stabilizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStabilizer returns a Stabilizer with empty history and no snapshot.
func NewStabilizer(opts ...Option) *Stabilizer {
	s := &Stabilizer{
		history: make([]*Mask, 0, HistoryCapacity),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest adds raw to the history and publishes a new stabilized snapshot.
// Empty masks are ignored.
func (s *Stabilizer) Ingest(raw *Mask) {
	if raw.Empty() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) > 0 && !s.history[0].SameSize(raw) {
		s.history = s.history[:0]
	}
	s.history = append(s.history, raw)
	if over := len(s.history) - HistoryCapacity; over > 0 {
		copy(s.history, s.history[over:])
		s.history = s.history[:HistoryCapacity]
	}

	if err := s.checkHistoryLocked(); err != nil {
		if strictHistory {
			panic(err)
		}
		s.history = append(s.history[:0], raw)
	}

	s.seq++
	s.current.Store(&Snapshot{
		Mask:        Close(Vote(s.history)),
		Seq:         s.seq,
		PublishedAt: s.now(),
	})
}

// Clear drops the published snapshot; the history is kept.
func (s *Stabilizer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(nil)
}

// Reset drops both history and snapshot.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:0]
	s.current.Store(nil)
}

// Current returns the latest snapshot, or nil if there is none.
func (s *Stabilizer) Current() *Snapshot {
	return s.current.Load()
}

// HistoryLen returns the number of raw masks currently retained.
func (s *Stabilizer) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// checkHistoryLocked verifies all entries share one size.
// Caller must hold s.mu.
func (s *Stabilizer) checkHistoryLocked() error {
	for i, h := range s.history[1:] {
		if !h.SameSize(s.history[0]) || len(h.Cells) != len(s.history[0].Cells) {
			return fmt.Errorf("%w: entry %d is %dx%d, want %dx%d",
				ErrMalformedHistory, i+1, h.W, h.H, s.history[0].W, s.history[0].H)
		}
	}
	return nil
}
