// Package scheduler decides when a registration number edit turns into a
// lookup. A burst of edits is collapsed by the debounce timer, and the
// fallback timer bounds the wait from the first edit of the burst.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"vehiclelookup/internal/clock"
	"vehiclelookup/internal/regnr"
)

// Trigger names what caused a lookup to be dispatched.
type Trigger string

const (
	TriggerImmediate Trigger = "immediate"
	TriggerDebounce  Trigger = "debounce"
	TriggerFallback  Trigger = "fallback"
	TriggerDirect    Trigger = "direct"
	TriggerStartup   Trigger = "startup"
	TriggerButton    Trigger = "button"
)

// DispatchFunc is called once per lookup decision. It must not block.
type DispatchFunc func(trigger Trigger, number string)

// State of the scheduler.
type State int

const (
	// Idle means no debounce or fallback timer is armed.
	Idle State = iota
	// Pending means a lookup is waiting on the debounce or fallback timer.
	Pending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultDebounce = 15 * time.Second
	DefaultFallback = 60 * time.Second
	MaxDebounce     = 300 * time.Second
	MaxFallback     = 600 * time.Second

	// DefaultStartupDelay is the wait before looking up a restored number.
	DefaultStartupDelay = 5 * time.Second
)

// Options configures the timers. A zero Debounce dispatches on every valid
// edit; a zero Fallback disables the fallback timer.
type Options struct {
	Debounce time.Duration
	Fallback time.Duration
}

// DefaultOptions returns the 15 s debounce / 60 s fallback configuration.
func DefaultOptions() Options {
	return Options{Debounce: DefaultDebounce, Fallback: DefaultFallback}
}

// Validate checks the timer ranges.
func (o Options) Validate() error {
	if o.Debounce < 0 || o.Debounce > MaxDebounce {
		return fmt.Errorf("debounce must be between 0s and %s, got %s", MaxDebounce, o.Debounce)
	}
	if o.Fallback < 0 || o.Fallback > MaxFallback {
		return fmt.Errorf("fallback must be between 0s and %s, got %s", MaxFallback, o.Fallback)
	}
	return nil
}

// armed is a timer handle. Callbacks compare their handle against the
// scheduler's current one, so a timer stopped after it started firing is
// still a no-op.
type armed struct {
	timer clock.Timer
}

// Scheduler tracks one editable registration number field.
type Scheduler struct {
	clock    clock.Clock
	dispatch DispatchFunc
	logger   *zap.Logger

	mu       sync.Mutex
	opts     Options
	value    string
	pending  string
	debounce *armed
	fallback *armed
	startup  *armed
	stopped  bool
}

// New creates a scheduler. Invalid options fall back to DefaultOptions.
func New(clk clock.Clock, opts Options, dispatch DispatchFunc, logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	if err := opts.Validate(); err != nil {
		logger.Warn("Invalid scheduler options, using defaults", zap.Error(err))
		opts = DefaultOptions()
	}
	return &Scheduler{
		clock:    clk,
		dispatch: dispatch,
		logger:   logger,
		opts:     opts,
	}
}

// Edit handles a user edit of the field. The normalized value is always
// kept for display; only a valid registration number arms timers.
// Returns the normalized value and whether it was accepted for lookup.
func (s *Scheduler) Edit(raw string) (string, bool) {
	normalized := regnr.Normalize(raw)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return normalized, false
	}
	s.value = normalized

	if !regnr.Valid(normalized) {
		s.mu.Unlock()
		s.logger.Debug("Value does not match registration number pattern, no lookup",
			zap.String("value", raw))
		return normalized, false
	}

	if s.opts.Debounce == 0 {
		// a debounce armed before the options changed must not fire later;
		// a fallback still running looks up the latest number
		s.stopLocked(&s.debounce)
		s.pending = ""
		if s.fallback != nil {
			s.pending = normalized
		}
		s.mu.Unlock()
		s.dispatch(TriggerImmediate, normalized)
		return normalized, true
	}

	opts := s.opts
	s.pending = normalized
	s.stopLocked(&s.debounce)
	s.debounce = s.armLocked(opts.Debounce, s.fireDebounce)

	if s.fallback == nil && opts.Fallback > 0 {
		s.fallback = s.armLocked(opts.Fallback, s.fireFallback)
	}
	s.mu.Unlock()

	s.logger.Debug("Lookup scheduled",
		zap.String("regnr", normalized),
		zap.Duration("debounce", opts.Debounce))
	return normalized, true
}

// SetDirect sets the field from a control-plane command. Both timers are
// cancelled and the lookup is dispatched without entering Pending.
// Invalid input returns regnr.ErrInvalid and changes nothing.
func (s *Scheduler) SetDirect(raw string) (string, error) {
	number, err := regnr.Parse(raw)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return number, nil
	}
	s.stopLocked(&s.debounce)
	s.stopLocked(&s.fallback)
	s.stopLocked(&s.startup)
	s.pending = ""
	s.value = number
	s.mu.Unlock()

	s.dispatch(TriggerDirect, number)
	return number, nil
}

// Restore sets a previously persisted value and schedules one lookup after
// delay. A non-positive delay dispatches immediately.
func (s *Scheduler) Restore(raw string, delay time.Duration) (string, error) {
	number, err := regnr.Parse(raw)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return number, nil
	}
	s.value = number
	s.stopLocked(&s.startup)
	if delay > 0 {
		s.startup = s.armLocked(delay, s.fireStartup)
		s.mu.Unlock()
		s.logger.Debug("Restored registration number, startup lookup scheduled",
			zap.String("regnr", number),
			zap.Duration("delay", delay))
		return number, nil
	}
	s.mu.Unlock()

	s.dispatch(TriggerStartup, number)
	return number, nil
}

// SetOptions replaces the timer configuration. Running timers keep their
// original deadlines; the new values apply from the next edit.
func (s *Scheduler) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
	return nil
}

// Options returns the current timer configuration.
func (s *Scheduler) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Stop cancels every timer. Later edits are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(&s.debounce)
	s.stopLocked(&s.fallback)
	s.stopLocked(&s.startup)
	s.pending = ""
	s.stopped = true
}

// State reports whether a debounced lookup is waiting.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil || s.fallback != nil {
		return Pending
	}
	return Idle
}

// Pending returns the number a waiting lookup will use.
func (s *Scheduler) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce == nil && s.fallback == nil {
		return "", false
	}
	return s.pending, true
}

// Value returns the last normalized value of the field, valid or not.
func (s *Scheduler) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Scheduler) fireDebounce(a *armed) {
	s.mu.Lock()
	if s.debounce != a || s.stopped {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	s.stopLocked(&s.fallback)
	number := s.pending
	s.pending = ""
	s.mu.Unlock()

	s.logger.Debug("Debounce timer expired", zap.String("regnr", number))
	s.dispatch(TriggerDebounce, number)
}

func (s *Scheduler) fireFallback(a *armed) {
	s.mu.Lock()
	if s.fallback != a || s.stopped {
		s.mu.Unlock()
		return
	}
	s.fallback = nil
	s.stopLocked(&s.debounce)
	number := s.pending
	s.pending = ""
	s.mu.Unlock()

	s.logger.Debug("Fallback timer expired, forcing lookup", zap.String("regnr", number))
	s.dispatch(TriggerFallback, number)
}

func (s *Scheduler) fireStartup(a *armed) {
	s.mu.Lock()
	if s.startup != a || s.stopped {
		s.mu.Unlock()
		return
	}
	s.startup = nil
	number := s.value
	s.mu.Unlock()

	s.dispatch(TriggerStartup, number)
}

// armLocked starts a timer that calls fire with its own handle.
func (s *Scheduler) armLocked(d time.Duration, fire func(*armed)) *armed {
	a := &armed{}
	a.timer = s.clock.AfterFunc(d, func() { fire(a) })
	return a
}

// stopLocked cancels the timer in slot, if any. Safe to call repeatedly.
func (s *Scheduler) stopLocked(slot **armed) {
	if *slot == nil {
		return
	}
	(*slot).timer.Stop()
	*slot = nil
}
