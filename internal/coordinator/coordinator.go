// Package coordinator owns the current registration number and the last
// fetched vehicle record, and performs one registry lookup per refresh.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"vehiclelookup/internal/attributes"
	"vehiclelookup/internal/clock"
	"vehiclelookup/internal/metrics"
	"vehiclelookup/internal/vegvesen"
)

// MaxRawJSONSize caps the serialized snapshot kept for diagnostics.
const MaxRawJSONSize = 16384

// Registry performs a single vehicle lookup.
type Registry interface {
	Lookup(ctx context.Context, number string) (vegvesen.Record, error)
}

// RefreshError reports a failed refresh. The previous record is kept.
type RefreshError struct {
	Status Status
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh failed (%s): %v", e.Status, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Snapshot is a read-only view of the coordinator state.
type Snapshot struct {
	Target      string
	Status      Status
	LastUpdated time.Time
	RawJSON     string
	Record      vegvesen.Record
	LookupID    string
}

// HasData reports whether a record is held.
func (s Snapshot) HasData() bool {
	return len(s.Record) > 0
}

// Raw response diagnostic values.
const (
	RawAvailable = "Available"
	RawNoData    = "No data"
)

// Values projects the record through defs and fills in the diagnostic
// keys. Absent attributes map to nil.
func (s Snapshot) Values(defs []attributes.Definition) map[string]any {
	out := attributes.Project(s.Record, defs)

	out[attributes.KeyLastStatus] = string(s.Status)
	if s.LastUpdated.IsZero() {
		out[attributes.KeyLastUpdated] = nil
	} else {
		out[attributes.KeyLastUpdated] = s.LastUpdated.UTC().Format(time.RFC3339)
	}
	if s.RawJSON != "" {
		out[attributes.KeyRawResponse] = RawAvailable
	} else {
		out[attributes.KeyRawResponse] = RawNoData
	}
	return out
}

// Coordinator tracks lookup status and the last record.
type Coordinator struct {
	registry Registry
	clock    clock.Clock
	logger   *zap.Logger

	// refreshMu allows one registry call at a time
	refreshMu sync.Mutex

	mu          sync.RWMutex
	target      string
	record      vegvesen.Record
	lastUpdated time.Time
	rawJSON     string
	lookupID    string
	machine     *fsm.FSM
	listeners   []func(Snapshot)
}

// New creates a coordinator in the idle state with no target.
func New(registry Registry, clk clock.Clock, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		clock:    clk,
		logger:   logger.Named("coordinator"),
		machine:  newStatusMachine(),
	}
}

// SetTarget sets the registration number used by the next refresh.
func (c *Coordinator) SetTarget(number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = number
}

// Target returns the current registration number, or "" if none is set.
func (c *Coordinator) Target() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

// Status returns the status of the last completed refresh.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status(c.machine.Current())
}

// Data returns the last record. Callers must not modify it.
func (c *Coordinator) Data() vegvesen.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		Target:      c.target,
		Status:      Status(c.machine.Current()),
		LastUpdated: c.lastUpdated,
		RawJSON:     c.rawJSON,
		Record:      c.record,
		LookupID:    c.lookupID,
	}
}

// OnUpdate registers fn to be called after every completed refresh.
func (c *Coordinator) OnUpdate(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RequestRefresh performs one registry lookup for the current target.
// With no target set it returns the last record without calling the
// registry. Not-found is a successful, empty result; every other failure
// returns a *RefreshError and keeps the previous record.
func (c *Coordinator) RequestRefresh(ctx context.Context) (vegvesen.Record, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	target := c.Target()
	if target == "" {
		c.logger.Debug("No registration number set, skipping lookup")
		return c.Data(), nil
	}

	lookupID := uuid.NewString()
	logger := c.logger.With(zap.String("regnr", target), zap.String("lookup_id", lookupID))
	logger.Debug("Looking up vehicle")

	start := c.clock.Now()
	record, err := c.registry.Lookup(ctx, target)
	status := classify(err)

	metrics.LookupsTotal.WithLabelValues(string(status)).Inc()
	metrics.LookupDuration.WithLabelValues(string(status)).Observe(c.clock.Since(start).Seconds())

	c.mu.Lock()
	c.lookupID = lookupID
	switch status {
	case StatusSuccess:
		c.record = record
		c.lastUpdated = c.clock.Now().UTC()
		c.rawJSON = truncatedJSON(record, logger)
		logger.Debug("Lookup successful")
	case StatusNotFound:
		c.record = vegvesen.Record{}
		c.lastUpdated = c.clock.Now().UTC()
		c.rawJSON = ""
		logger.Info("Vehicle not found for registration number")
	case StatusAuthError:
		logger.Error("Authentication error during lookup", zap.Error(err))
	case StatusConnectionError:
		logger.Warn("Connection error during lookup", zap.Error(err))
	default:
		logger.Error("API error during lookup", zap.Error(err))
	}
	if terr := transition(context.WithoutCancel(ctx), c.machine, status); terr != nil {
		logger.Error("Failed to record lookup status",
			zap.String("status", string(status)),
			zap.Error(terr))
	}
	snap := c.snapshotLocked()
	listeners := append(([]func(Snapshot))(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}

	switch status {
	case StatusSuccess, StatusNotFound:
		return snap.Record, nil
	default:
		return snap.Record, &RefreshError{Status: status, Err: err}
	}
}

// classify maps a registry error to the resulting status.
func classify(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, vegvesen.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, vegvesen.ErrAuth):
		return StatusAuthError
	case errors.Is(err, vegvesen.ErrConnection):
		return StatusConnectionError
	default:
		return StatusError
	}
}

// truncatedJSON serializes record for diagnostics, capped at
// MaxRawJSONSize bytes. Returns "" if the record cannot be serialized.
func truncatedJSON(record vegvesen.Record, logger *zap.Logger) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		logger.Warn("Failed to serialize raw response", zap.Error(err))
		return ""
	}

	raw := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if len(raw) > MaxRawJSONSize {
		raw = raw[:MaxRawJSONSize]
		// don't split a multi-byte rune
		for len(raw) > 0 && !utf8.Valid(raw) {
			raw = raw[:len(raw)-1]
		}
	}
	return string(raw)
}
