package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"vehiclelookup/internal/clock"
	"vehiclelookup/internal/coordinator"
	"vehiclelookup/internal/ha"
	"vehiclelookup/internal/lookup"
	"vehiclelookup/internal/restore"
	"vehiclelookup/internal/scheduler"
	"vehiclelookup/internal/vegvesen"
)

const (
	// RegnrEntity and ButtonEntity are the helpers the environment creates.
	RegnrEntity  = "input_text.vegvesen_regnr"
	ButtonEntity = "input_button.vegvesen_lookup"

	testToken  = "test_token"
	testAPIKey = "test_api_key"
)

// EnvOptions tunes a TestEnv. The zero value gives a 200ms debounce, no
// fallback and no startup delay.
type EnvOptions struct {
	Scheduler    scheduler.Options
	StartupDelay time.Duration
	ReadOnly     bool
	// Token overrides the token the client authenticates with.
	Token string
}

// TestEnv wires the lookup manager to a mock Home Assistant and a mock
// registry over real WebSocket and HTTP connections.
type TestEnv struct {
	Server   *MockHAServer
	Registry *MockRegistry
	Manager  *lookup.Manager
	Client   *ha.Client
	Store    *restore.Store
	Logger   *zap.Logger

	opts   EnvOptions
	dbPath string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTestEnv starts both mock servers and a connected manager. dir holds
// the restore database; pass t.TempDir().
func NewTestEnv(dir string, opts EnvOptions) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()

	if opts.Scheduler == (scheduler.Options{}) {
		opts.Scheduler = scheduler.Options{Debounce: 200 * time.Millisecond}
	}

	server := NewMockHAServer(testToken)
	server.InitializeStates(RegnrEntity, ButtonEntity)

	env := &TestEnv{
		Server:   server,
		Registry: NewMockRegistry(testAPIKey),
		Logger:   logger,
		opts:     opts,
		dbPath:   filepath.Join(dir, "state.db"),
	}
	if err := env.start(); err != nil {
		env.Registry.Stop()
		server.Stop()
		return nil, err
	}
	return env, nil
}

func (e *TestEnv) start() error {
	store, err := restore.Open(e.dbPath, e.Logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	token := e.opts.Token
	if token == "" {
		token = testToken
	}
	client := ha.NewClient(e.Server.URL(), token, e.Logger)
	if err := client.Connect(); err != nil {
		store.Close()
		return fmt.Errorf("failed to connect client: %w", err)
	}

	registry := vegvesen.NewClient(testAPIKey, e.Logger,
		vegvesen.WithBaseURL(e.Registry.URL()),
		vegvesen.WithTimeout(2*time.Second))

	clk := clock.NewRealClock()
	coord := coordinator.New(registry, clk, e.Logger)
	manager := lookup.NewManager(client, coord, store, nil, clk, e.opts.Scheduler, lookup.Config{
		RegnrEntity:        RegnrEntity,
		LookupButtonEntity: ButtonEntity,
		StartupDelay:       e.opts.StartupDelay,
		ReadOnly:           e.opts.ReadOnly,
	}, e.Logger)

	e.ctx, e.cancel = context.WithCancel(context.Background())
	if err := manager.Start(e.ctx); err != nil {
		e.cancel()
		client.Disconnect()
		store.Close()
		return fmt.Errorf("failed to start manager: %w", err)
	}

	e.Client = client
	e.Store = store
	e.Manager = manager
	return nil
}

func (e *TestEnv) stop() {
	if e.Manager != nil {
		e.Manager.Stop()
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.Client != nil {
		e.Client.Disconnect()
	}
	if e.Store != nil {
		e.Store.Close()
	}
	e.Manager, e.Client, e.Store = nil, nil, nil
}

// Restart stops the manager and starts a fresh one against the same
// servers and database, as a process restart would.
func (e *TestEnv) Restart() error {
	e.stop()
	return e.start()
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	e.stop()
	e.Registry.Stop()
	e.Server.Stop()
}

// TypeRegnr simulates the user typing value into the text helper
func (e *TestEnv) TypeRegnr(value string) {
	e.Server.SetState(RegnrEntity, value, nil)
}

// PressLookup simulates pressing the lookup button
func (e *TestEnv) PressLookup() {
	e.Server.PressButton(ButtonEntity)
}

// WaitFor polls cond until it holds or timeout elapses
func (e *TestEnv) WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// WaitForStatus waits until the coordinator reports status
func (e *TestEnv) WaitForStatus(status coordinator.Status, timeout time.Duration) bool {
	return e.WaitFor(timeout, func() bool {
		return e.Manager.Snapshot().Status == status
	})
}

// GetServiceCalls returns all service calls made to the mock server.
func (e *TestEnv) GetServiceCalls() []ServiceCall {
	return e.Server.GetServiceCalls()
}

// ClearServiceCalls clears the recorded service calls.
func (e *TestEnv) ClearServiceCalls() {
	e.Server.ClearServiceCalls()
}
