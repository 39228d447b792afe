// Package sched implements the millisecond-resolution timer scheduler
// shared by the L2 and L3 engines.
//
// It is a direct port of the slot-table scheduler in libpri's
// prisched.c: a sparse array of (deadline, callback) slots that grows
// by doubling up to a hard maximum, searched linearly for a free slot
// on schedule and scanned linearly for the soonest deadline on query.
// Unlike the original, the high-water mark and the slot table are
// instance fields rather than process globals (see DESIGN.md, "Global
// mutable state").
package sched

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// InitialSlots is the number of timer slots allocated on first use.
const InitialSlots = 128

// MaxSlots is the hard upper bound on the slot table size.
const MaxSlots = 8192

// ErrFull is returned by Schedule when the slot table is at MaxSlots
// and every slot is occupied.
var ErrFull = errors.New("sched: scheduler table is full")

// Callback is invoked when a scheduled timer expires. data is the
// opaque value passed to Schedule.
type Callback func(data any)

type slot struct {
	deadline time.Time
	callback Callback
	data     any
	used     bool
}

// Clock returns the current time. Tests inject a fake clock to advance
// virtual time without sleeping.
type Clock func() time.Time

// Scheduler is a single-threaded, non-reentrant set of timer slots.
// A callback invoked from Run may call Schedule or Cancel, but must
// never call Run itself.
type Scheduler struct {
	slots   []slot
	maxUsed int
	now     Clock
}

// New creates an empty scheduler using the real wall clock.
func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// NewWithClock creates an empty scheduler using a caller-supplied clock,
// for deterministic tests.
func NewWithClock(clock Clock) *Scheduler {
	return &Scheduler{now: clock}
}

func (s *Scheduler) grow() error {
	var want int
	if len(s.slots) == 0 {
		want = InitialSlots
	} else {
		if len(s.slots) >= MaxSlots {
			return ErrFull
		}
		want = len(s.slots) * 2
		if want > MaxSlots {
			want = MaxSlots
		}
	}
	grown := make([]slot, want)
	copy(grown, s.slots)
	s.slots = grown
	return nil
}

// Schedule arms a timer to fire after ms milliseconds, invoking cb with
// data. It returns a stable 1-based id, or 0 if the scheduler is full.
func (s *Scheduler) Schedule(ms int, cb Callback, data any) int {
	idx := -1
	for i := 0; i < s.maxUsed; i++ {
		if !s.slots[i].used {
			idx = i
			break
		}
	}
	if idx < 0 {
		if s.maxUsed == len(s.slots) {
			if err := s.grow(); err != nil {
				log.Warnf("[SCHED] no more room in scheduler: %v", err)
				return 0
			}
		}
		idx = s.maxUsed
	}
	if s.maxUsed <= idx {
		s.maxUsed = idx + 1
	}
	s.slots[idx] = slot{
		deadline: s.now().Add(time.Duration(ms) * time.Millisecond),
		callback: cb,
		data:     data,
		used:     true,
	}
	return idx + 1
}

// Cancel clears a scheduled timer. id == 0 is a sentinel and is ignored.
// A stale id (already fired, or never valid) is tolerated silently.
func (s *Scheduler) Cancel(id int) {
	if id <= 0 {
		return
	}
	idx := id - 1
	if idx >= len(s.slots) {
		return
	}
	s.slots[idx] = slot{}
}

// NextDeadline returns the soonest armed deadline, if any.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	for i := 0; i < s.maxUsed; i++ {
		if !s.slots[i].used {
			continue
		}
		if !found || s.slots[i].deadline.Before(best) {
			best = s.slots[i].deadline
			found = true
		}
	}
	return best, found
}

// Run fires every slot whose deadline has passed. It invokes at most
// one callback whose side effect sets stop to true via the pending
// function, matching libpri's "at most one event per run" contract:
// the caller passes a pending func that reports whether an upward
// event has been produced; Run stops scanning as soon as pending
// reports true.
func (s *Scheduler) Run(pending func() bool) {
	now := s.now()
	for i := 0; i < s.maxUsed; i++ {
		sl := s.slots[i]
		if !sl.used || sl.deadline.After(now) {
			continue
		}
		s.slots[i] = slot{}
		sl.callback(sl.data)
		if pending != nil && pending() {
			return
		}
	}
}

// MaxUsed reports the largest number of slots that have been in use at
// once, the diagnostic-only analog of libpri's process-global maxsched.
func (s *Scheduler) MaxUsed() int {
	return s.maxUsed
}
