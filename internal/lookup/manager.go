// Package lookup wires the registration number field, the lookup
// scheduler and the coordinator to Home Assistant, MQTT and the restore
// store.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"vehiclelookup/internal/attributes"
	"vehiclelookup/internal/clock"
	"vehiclelookup/internal/coordinator"
	"vehiclelookup/internal/ha"
	"vehiclelookup/internal/metrics"
	"vehiclelookup/internal/regnr"
	"vehiclelookup/internal/restore"
	"vehiclelookup/internal/scheduler"
)

const storeTimeout = 5 * time.Second

// ErrNoTarget is returned when a refresh is requested before any
// registration number has been set.
var ErrNoTarget = errors.New("no registration number set")

// Publisher announces entities and publishes coordinator snapshots.
type Publisher interface {
	Announce(defs []attributes.Definition) error
	PublishSnapshot(snap coordinator.Snapshot) error
}

// Store persists the last registration number.
type Store interface {
	Save(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) (string, error)
}

// Config names the Home Assistant helpers and startup behaviour.
type Config struct {
	RegnrEntity        string
	LookupButtonEntity string
	StartupDelay       time.Duration
	ReadOnly           bool

	// Definitions is the initial attribute set; empty means every
	// supported attribute.
	Definitions []attributes.Definition
}

// Manager owns the lookup pipeline. HA, store and publisher are optional.
type Manager struct {
	haClient  ha.HAClient
	coord     *coordinator.Coordinator
	sched     *scheduler.Scheduler
	store     Store
	publisher Publisher
	logger    *zap.Logger
	cfg       Config

	haSubscriptions []ha.Subscription

	// requests holds at most one queued refresh; timer fires coalesce.
	requests chan scheduler.Trigger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// textMu guards the write-back bookkeeping for the HA text helper.
	textMu   sync.Mutex
	echo     string
	lastSeen string

	defsMu sync.RWMutex
	defs   []attributes.Definition
}

// NewManager creates a manager. Pass nil for haClient, store or publisher
// to run without them.
func NewManager(haClient ha.HAClient, coord *coordinator.Coordinator, store Store, publisher Publisher,
	clk clock.Clock, opts scheduler.Options, cfg Config, logger *zap.Logger) *Manager {
	m := &Manager{
		haClient:  haClient,
		coord:     coord,
		store:     store,
		publisher: publisher,
		logger:    logger.Named("lookup"),
		cfg:       cfg,
		requests:  make(chan scheduler.Trigger, 1),
		defs:      cfg.Definitions,
	}
	if len(m.defs) == 0 {
		m.defs = attributes.Supported()
	}
	m.sched = scheduler.New(clk, opts, m.dispatch, logger)
	return m
}

// Start subscribes to Home Assistant, starts the refresh worker and
// restores the last registration number.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info("Starting lookup manager",
		zap.Bool("home_assistant", m.haClient != nil),
		zap.Bool("publisher", m.publisher != nil),
		zap.Bool("read_only", m.cfg.ReadOnly))

	m.ctx, m.cancel = context.WithCancel(ctx)

	if m.haClient != nil {
		sub, err := m.haClient.SubscribeStateChanges(m.cfg.RegnrEntity, m.handleRegnrChange)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", m.cfg.RegnrEntity, err)
		}
		m.haSubscriptions = append(m.haSubscriptions, sub)

		if m.cfg.LookupButtonEntity != "" {
			sub, err := m.haClient.SubscribeStateChanges(m.cfg.LookupButtonEntity, m.handleButtonPress)
			if err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", m.cfg.LookupButtonEntity, err)
			}
			m.haSubscriptions = append(m.haSubscriptions, sub)
		}

		m.haClient.OnReconnect(m.resync)
	}

	m.coord.OnUpdate(m.publish)
	if m.publisher != nil {
		if err := m.publisher.Announce(m.Definitions()); err != nil {
			m.logger.Warn("Failed to announce entities", zap.Error(err))
		}
		m.publish(m.coord.Snapshot())
	}

	m.wg.Add(1)
	go m.worker()

	m.restore()

	m.logger.Info("Lookup manager started")
	return nil
}

// Stop cancels timers, unsubscribes and waits for the worker.
func (m *Manager) Stop() {
	m.logger.Info("Stopping lookup manager")

	m.sched.Stop()
	for _, sub := range m.haSubscriptions {
		sub.Unsubscribe()
	}
	m.haSubscriptions = nil

	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.logger.Info("Lookup manager stopped")
}

// Edit applies a user edit of the registration number field, exactly as
// typing into the Home Assistant helper would.
func (m *Manager) Edit(raw string) (string, bool) {
	number, ok := m.edit(raw)
	if ok {
		m.syncText(number)
	}
	return number, ok
}

// SetDirect sets the registration number without debounce and queues a
// lookup. An empty value refreshes the current number.
func (m *Manager) SetDirect(raw string) (string, error) {
	if raw == "" {
		return m.coord.Target(), m.Press()
	}
	number, err := m.setDirect(raw)
	if err != nil {
		return "", err
	}
	m.enqueue(scheduler.TriggerDirect)
	return number, nil
}

// Lookup sets the registration number without debounce and refreshes
// synchronously. An empty value refreshes the current number.
func (m *Manager) Lookup(ctx context.Context, raw string) (coordinator.Snapshot, error) {
	if raw == "" {
		if m.coord.Target() == "" {
			m.logger.Warn("Lookup requested but no registration number is set")
			return m.coord.Snapshot(), ErrNoTarget
		}
	} else if _, err := m.setDirect(raw); err != nil {
		return m.coord.Snapshot(), err
	}

	_, err := m.coord.RequestRefresh(ctx)
	return m.coord.Snapshot(), err
}

// Press handles the "Lookup Now" button.
func (m *Manager) Press() error {
	if m.coord.Target() == "" {
		m.logger.Warn("Lookup Now pressed but no registration number is set")
		return ErrNoTarget
	}
	metrics.DispatchTotal.WithLabelValues(string(scheduler.TriggerButton)).Inc()
	m.enqueue(scheduler.TriggerButton)
	return nil
}

// ApplyOptions updates the timers and the attribute set, then
// re-announces the entities.
func (m *Manager) ApplyOptions(opts scheduler.Options, defs []attributes.Definition) error {
	if err := m.sched.SetOptions(opts); err != nil {
		return err
	}

	m.defsMu.Lock()
	m.defs = append([]attributes.Definition(nil), defs...)
	m.defsMu.Unlock()

	m.logger.Info("Options applied",
		zap.Duration("debounce", opts.Debounce),
		zap.Duration("fallback", opts.Fallback),
		zap.Int("attributes", len(defs)))

	if m.publisher == nil {
		return nil
	}
	if err := m.publisher.Announce(defs); err != nil {
		return fmt.Errorf("failed to announce entities: %w", err)
	}
	m.publish(m.coord.Snapshot())
	return nil
}

// Definitions returns the active attribute definitions.
func (m *Manager) Definitions() []attributes.Definition {
	m.defsMu.RLock()
	defer m.defsMu.RUnlock()
	return append([]attributes.Definition(nil), m.defs...)
}

// Snapshot returns the coordinator state.
func (m *Manager) Snapshot() coordinator.Snapshot {
	return m.coord.Snapshot()
}

// Values returns every attribute value plus the diagnostics.
func (m *Manager) Values() map[string]any {
	defs := append(m.Definitions(), attributes.Diagnostics()...)
	return m.coord.Snapshot().Values(defs)
}

// Scheduler exposes the timer state for diagnostics.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.sched
}

// edit moves the target for a valid value, then hands the edit to the
// scheduler. The target must be set first since a zero debounce
// dispatches inside Edit.
func (m *Manager) edit(raw string) (string, bool) {
	if number := regnr.Normalize(raw); regnr.Valid(number) {
		m.setTarget(number)
	}
	return m.sched.Edit(raw)
}

// setDirect cancels pending timers and moves the target. The caller
// decides how the lookup runs.
func (m *Manager) setDirect(raw string) (string, error) {
	number, err := m.sched.SetDirect(raw)
	if err != nil {
		m.logger.Warn("Invalid registration number for lookup", zap.String("value", raw))
		return "", err
	}
	m.setTarget(number)
	m.syncText(number)
	return number, nil
}

func (m *Manager) setTarget(number string) {
	if m.coord.Target() == number {
		return
	}
	m.coord.SetTarget(number)
	m.persist(number)
}

// dispatch receives scheduler decisions. Direct sets are run by their
// caller; everything else goes through the worker.
func (m *Manager) dispatch(trigger scheduler.Trigger, number string) {
	metrics.DispatchTotal.WithLabelValues(string(trigger)).Inc()
	m.logger.Debug("Lookup dispatched",
		zap.String("trigger", string(trigger)),
		zap.String("regnr", number))

	if trigger == scheduler.TriggerDirect {
		return
	}
	m.enqueue(trigger)
}

func (m *Manager) enqueue(trigger scheduler.Trigger) {
	select {
	case m.requests <- trigger:
	default:
		m.logger.Debug("Refresh already queued", zap.String("trigger", string(trigger)))
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case trigger := <-m.requests:
			m.refresh(trigger)
		}
	}
}

func (m *Manager) refresh(trigger scheduler.Trigger) {
	_, err := m.coord.RequestRefresh(m.ctx)
	if err == nil {
		return
	}

	var refreshErr *coordinator.RefreshError
	if errors.As(err, &refreshErr) {
		m.logger.Warn("Lookup failed",
			zap.String("trigger", string(trigger)),
			zap.String("status", string(refreshErr.Status)),
			zap.Error(refreshErr.Err))
		return
	}
	m.logger.Error("Lookup failed", zap.String("trigger", string(trigger)), zap.Error(err))
}

func (m *Manager) publish(snap coordinator.Snapshot) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishSnapshot(snap); err != nil {
		m.logger.Warn("Failed to publish snapshot", zap.Error(err))
	}
}

// handleRegnrChange processes edits of the input_text helper.
func (m *Manager) handleRegnrChange(entityID string, oldState, newState *ha.State) {
	if newState == nil || isUnavailable(newState.State) {
		return
	}

	m.textMu.Lock()
	m.lastSeen = newState.State
	if m.echo != "" && newState.State == m.echo {
		m.echo = ""
		m.textMu.Unlock()
		m.logger.Debug("Ignoring write-back echo", zap.String("value", newState.State))
		return
	}
	m.textMu.Unlock()

	m.logger.Debug("Registration number edited",
		zap.String("entity_id", entityID),
		zap.String("value", newState.State))
	m.edit(newState.State)
}

// handleButtonPress processes input_button presses. A press changes the
// state to the press timestamp.
func (m *Manager) handleButtonPress(entityID string, oldState, newState *ha.State) {
	if newState == nil || isUnavailable(newState.State) {
		return
	}
	if oldState != nil && oldState.State == newState.State {
		return
	}

	m.logger.Info("Lookup Now pressed", zap.String("entity_id", entityID))
	_ = m.Press()
}

// syncText writes number back to the input_text helper. The resulting
// state_changed event is ignored.
func (m *Manager) syncText(number string) {
	if m.haClient == nil {
		return
	}

	m.textMu.Lock()
	if m.lastSeen == number {
		m.textMu.Unlock()
		return
	}
	if m.cfg.ReadOnly {
		m.textMu.Unlock()
		m.logger.Info("READ-ONLY mode: would set input_text",
			zap.String("entity_id", m.cfg.RegnrEntity),
			zap.String("value", number))
		return
	}
	m.echo = number
	m.textMu.Unlock()

	if err := m.haClient.SetInputText(m.cfg.RegnrEntity, number); err != nil {
		m.textMu.Lock()
		if m.echo == number {
			m.echo = ""
		}
		m.textMu.Unlock()
		m.logger.Warn("Failed to update input_text",
			zap.String("entity_id", m.cfg.RegnrEntity),
			zap.Error(err))
	}
}

func (m *Manager) persist(number string) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Save(ctx, restore.KeyRegnr, number); err != nil {
		m.logger.Warn("Failed to persist registration number", zap.Error(err))
	}
}

// restore loads the last registration number, or adopts the helper's
// current value, and schedules the startup lookup.
func (m *Manager) restore() {
	number := m.loadStored()
	if number == "" && m.haClient != nil {
		if state, err := m.haClient.GetState(m.cfg.RegnrEntity); err == nil && state != nil {
			m.textMu.Lock()
			m.lastSeen = state.State
			m.textMu.Unlock()
			if regnr.Valid(regnr.Normalize(state.State)) {
				number = state.State
			}
		} else if err != nil {
			m.logger.Debug("No current registration number in Home Assistant", zap.Error(err))
		}
	}
	if number == "" {
		m.logger.Info("No registration number to restore")
		return
	}

	restored, err := regnr.Parse(number)
	if err != nil {
		m.logger.Warn("Ignoring invalid stored registration number", zap.String("value", number))
		return
	}
	m.setTarget(restored)
	m.syncText(restored)
	if _, err := m.sched.Restore(restored, m.cfg.StartupDelay); err != nil {
		m.logger.Warn("Failed to schedule startup lookup", zap.Error(err))
		return
	}

	m.logger.Info("Restored registration number",
		zap.String("regnr", restored),
		zap.Duration("startup_delay", m.cfg.StartupDelay))
}

func (m *Manager) loadStored() string {
	if m.store == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	number, err := m.store.Load(ctx, restore.KeyRegnr)
	if errors.Is(err, restore.ErrNotFound) {
		return ""
	}
	if err != nil {
		m.logger.Warn("Failed to load stored registration number", zap.Error(err))
		return ""
	}
	return number
}

// resync picks up edits made while the connection to Home Assistant was
// down.
func (m *Manager) resync() {
	state, err := m.haClient.GetState(m.cfg.RegnrEntity)
	if err != nil {
		m.logger.Warn("Failed to read registration number after reconnect", zap.Error(err))
		return
	}

	m.textMu.Lock()
	changed := state.State != m.lastSeen
	m.textMu.Unlock()
	if !changed {
		return
	}

	m.logger.Info("Registration number changed while disconnected", zap.String("value", state.State))
	m.handleRegnrChange(m.cfg.RegnrEntity, nil, state)
}

func isUnavailable(state string) bool {
	return state == "unavailable" || state == "unknown"
}
