package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vehiclelookup/internal/clock"
	"vehiclelookup/internal/regnr"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type dispatched struct {
	trigger Trigger
	number  string
	at      time.Duration
}

// recorder collects dispatches with the mock-clock offset they happened at.
type recorder struct {
	mu    sync.Mutex
	clock *clock.MockClock
	calls []dispatched
}

func (r *recorder) dispatch(trigger Trigger, number string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dispatched{trigger, number, r.clock.Since(epoch)})
}

func (r *recorder) Calls() []dispatched {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatched(nil), r.calls...)
}

func newTestScheduler(t *testing.T, opts Options) (*Scheduler, *clock.MockClock, *recorder) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	clk := clock.NewMockClock(epoch)
	rec := &recorder{clock: clk}
	return New(clk, opts, rec.dispatch, logger), clk, rec
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func TestEdit_DebounceCoalescesBurst(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(5), Fallback: seconds(60)})

	s.Edit("AB12345")
	clk.Advance(seconds(1))
	s.Edit("AB12346")
	clk.Advance(seconds(1))
	s.Edit("ab 12347")
	assert.Equal(t, Pending, s.State())

	clk.Advance(seconds(4))
	assert.Empty(t, rec.Calls(), "nothing fires before t=7")

	clk.Advance(seconds(1))
	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, dispatched{TriggerDebounce, "AB12347", seconds(7)}, rec.Calls()[0])

	clk.Advance(time.Hour)
	assert.Len(t, rec.Calls(), 1, "fallback was cancelled by the debounce fire")
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 0, clk.Pending())
}

func TestEdit_FallbackBoundsContinuousTyping(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(10), Fallback: seconds(20)})

	for i := 0; i < 30; i++ {
		s.Edit("AB12345")
		clk.Advance(seconds(1))
		if len(rec.Calls()) > 0 {
			break
		}
	}

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, TriggerFallback, calls[0].trigger)
	assert.Equal(t, seconds(20), calls[0].at)
	assert.Equal(t, Idle, s.State(), "fallback cancels the debounce timer")
}

func TestEdit_FallbackNotRestartedByLaterEdits(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(10), Fallback: seconds(15)})

	s.Edit("AB12345")
	clk.Advance(seconds(8))
	s.Edit("AB12346")
	clk.Advance(seconds(7))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dispatched{TriggerFallback, "AB12346", seconds(15)}, calls[0])
}

func TestEdit_NewBurstAfterFireArmsFreshFallback(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(2), Fallback: seconds(10)})

	s.Edit("AB12345")
	clk.Advance(seconds(2))
	require.Len(t, rec.Calls(), 1)

	s.Edit("CD12345")
	clk.Advance(seconds(2))
	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, dispatched{TriggerDebounce, "CD12345", seconds(4)}, calls[1])
}

func TestEdit_ZeroDebounceDispatchesSynchronously(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: 0, Fallback: seconds(60)})

	number, ok := s.Edit("ab12345")
	assert.True(t, ok)
	assert.Equal(t, "AB12345", number)

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dispatched{TriggerImmediate, "AB12345", 0}, calls[0])
	assert.Equal(t, 0, clk.Pending(), "no timer is created")
	assert.Equal(t, Idle, s.State())

	s.Edit("AB12346")
	assert.Len(t, rec.Calls(), 2)
	assert.Equal(t, 0, clk.Pending())
}

func TestEdit_SwitchToZeroDebounceMidBurst(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(15), Fallback: seconds(60)})

	s.Edit("AB12345")
	require.NoError(t, s.SetOptions(Options{Debounce: 0, Fallback: seconds(60)}))
	s.Edit("CD67890")

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dispatched{TriggerImmediate, "CD67890", 0}, calls[0])
	pending, ok := s.Pending()
	assert.True(t, ok, "the fallback from the first edit is still running")
	assert.Equal(t, "CD67890", pending)

	clk.Advance(seconds(100))
	calls = rec.Calls()
	require.Len(t, calls, 2, "the old debounce never fires")
	assert.Equal(t, dispatched{TriggerFallback, "CD67890", seconds(60)}, calls[1])
	for _, c := range calls {
		assert.NotEqual(t, "AB12345", c.number)
	}
	assert.Equal(t, Idle, s.State())
}

func TestEdit_SwitchToZeroDebounceWithoutFallback(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(15), Fallback: 0})

	s.Edit("AB12345")
	require.NoError(t, s.SetOptions(Options{}))
	s.Edit("CD67890")

	_, ok := s.Pending()
	assert.False(t, ok)
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(seconds(100))
	assert.Equal(t, []dispatched{{TriggerImmediate, "CD67890", 0}}, rec.Calls())
}

func TestEdit_ZeroFallbackOnlyDebounces(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(5), Fallback: 0})

	s.Edit("AB12345")
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(seconds(5))
	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, TriggerDebounce, rec.Calls()[0].trigger)
}

func TestEdit_InvalidNeverArms(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(5), Fallback: seconds(20)})

	for _, in := range []string{"", "AB1234", "AB123456", "A112345", "ABC1234", "AB-12345", "ÆØ12345"} {
		number, ok := s.Edit(in)
		assert.False(t, ok, "input %q", in)
		assert.Equal(t, regnr.Normalize(in), number)
		assert.Equal(t, regnr.Normalize(in), s.Value(), "invalid input is still kept for display")
	}

	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, Idle, s.State())
	clk.Advance(time.Hour)
	assert.Empty(t, rec.Calls())
}

func TestEdit_InvalidInZeroDebounceModeNeverDispatches(t *testing.T) {
	s, _, rec := newTestScheduler(t, Options{Debounce: 0, Fallback: 0})

	s.Edit("not a plate")
	assert.Empty(t, rec.Calls())
}

func TestEdit_InvalidLeavesPendingLookupRunning(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(5), Fallback: seconds(20)})

	s.Edit("AB12345")
	clk.Advance(seconds(2))
	s.Edit("AB123")

	pending, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, "AB12345", pending)

	clk.Advance(seconds(3))
	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, dispatched{TriggerDebounce, "AB12345", seconds(5)}, rec.Calls()[0])
}

func TestSetDirect_CancelsTimersAndDispatches(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(5), Fallback: seconds(20)})

	s.Edit("AB12345")
	clk.Advance(seconds(1))

	number, err := s.SetDirect("cd 54321")
	require.NoError(t, err)
	assert.Equal(t, "CD54321", number)
	assert.Equal(t, "CD54321", s.Value())

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dispatched{TriggerDirect, "CD54321", seconds(1)}, calls[0])
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Hour)
	assert.Len(t, rec.Calls(), 1, "cancelled timers never fire")
}

func TestSetDirect_InvalidChangesNothing(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(5), Fallback: seconds(20)})
	s.Edit("AB12345")

	_, err := s.SetDirect("bogus")
	assert.ErrorIs(t, err, regnr.ErrInvalid)
	assert.Equal(t, Pending, s.State())
	assert.Equal(t, 2, clk.Pending())
	assert.Empty(t, rec.Calls())
}

func TestRestore_SchedulesStartupLookup(t *testing.T) {
	s, clk, rec := newTestScheduler(t, DefaultOptions())

	number, err := s.Restore("ab 12345", DefaultStartupDelay)
	require.NoError(t, err)
	assert.Equal(t, "AB12345", number)
	assert.Equal(t, "AB12345", s.Value())
	assert.Equal(t, Idle, s.State(), "startup lookup is not a debounce")

	clk.Advance(seconds(4))
	assert.Empty(t, rec.Calls())

	clk.Advance(seconds(1))
	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, dispatched{TriggerStartup, "AB12345", seconds(5)}, rec.Calls()[0])
}

func TestRestore_ZeroDelayDispatchesNow(t *testing.T) {
	s, _, rec := newTestScheduler(t, DefaultOptions())

	_, err := s.Restore("AB12345", 0)
	require.NoError(t, err)
	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, TriggerStartup, rec.Calls()[0].trigger)
}

func TestRestore_Invalid(t *testing.T) {
	s, clk, rec := newTestScheduler(t, DefaultOptions())

	_, err := s.Restore("unknown", DefaultStartupDelay)
	assert.ErrorIs(t, err, regnr.ErrInvalid)
	assert.Equal(t, 0, clk.Pending())
	assert.Empty(t, rec.Calls())
}

func TestStop_CancelsEverything(t *testing.T) {
	s, clk, rec := newTestScheduler(t, Options{Debounce: seconds(5), Fallback: seconds(20)})

	_, err := s.Restore("AB12345", seconds(5))
	require.NoError(t, err)
	s.Edit("CD12345")
	require.Equal(t, 3, clk.Pending())

	s.Stop()
	s.Stop()
	assert.Equal(t, 0, clk.Pending())

	s.Edit("EF12345")
	clk.Advance(time.Hour)
	assert.Empty(t, rec.Calls())
	assert.Equal(t, 0, clk.Pending())
}

// lateStopClock hands out timers whose Stop has no effect, as if the
// callback had already started when it was cancelled.
type lateStopClock struct {
	*clock.MockClock
}

type lateTimer struct{}

func (lateTimer) Stop() bool { return false }

func (c lateStopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.MockClock.AfterFunc(d, f)
	return lateTimer{}
}

func TestCancelledTimerAlreadyFiringIsIgnored(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	mock := clock.NewMockClock(epoch)
	rec := &recorder{clock: mock}
	s := New(lateStopClock{mock}, Options{Debounce: seconds(5), Fallback: seconds(20)}, rec.dispatch, logger)

	s.Edit("AB12345")
	mock.Advance(seconds(1))
	s.Edit("AB12346") // the first debounce cannot be stopped and will still fire

	mock.Advance(seconds(5))
	calls := rec.Calls()
	require.Len(t, calls, 1, "the superseded debounce callback is a no-op")
	assert.Equal(t, dispatched{TriggerDebounce, "AB12346", seconds(6)}, calls[0])

	mock.Advance(time.Hour)
	assert.Len(t, rec.Calls(), 1, "the fallback was cancelled by handle even though its timer ran")
}

func TestSetOptions(t *testing.T) {
	s, clk, rec := newTestScheduler(t, DefaultOptions())

	assert.Error(t, s.SetOptions(Options{Debounce: seconds(301)}))
	assert.Error(t, s.SetOptions(Options{Fallback: seconds(601)}))
	assert.Error(t, s.SetOptions(Options{Debounce: -time.Second}))
	assert.Equal(t, DefaultOptions(), s.Options())

	require.NoError(t, s.SetOptions(Options{Debounce: 0, Fallback: 0}))
	s.Edit("AB12345")
	assert.Len(t, rec.Calls(), 1)
	assert.Equal(t, 0, clk.Pending())
}

func TestNew_InvalidOptionsUseDefaults(t *testing.T) {
	s, _, _ := newTestScheduler(t, Options{Debounce: time.Hour})
	assert.Equal(t, DefaultOptions(), s.Options())
}

func TestOptionsValidateBounds(t *testing.T) {
	assert.NoError(t, Options{Debounce: MaxDebounce, Fallback: MaxFallback}.Validate())
	assert.NoError(t, Options{}.Validate())
}
