// Package database owns the lifecycle of the store connection: the initial
// connect, exponential backoff between failed attempts, a single quick retry
// after an unexpected drop, and the orderly close at shutdown.
package database

import (
	"context"
	"sync"
	"time"

	"expenses/internal/log"
)

// ConnectionState is the manager's view of the store connection.
type ConnectionState string

const (
	Disconnected  ConnectionState = "disconnected"
	Connecting    ConnectionState = "connecting"
	Connected     ConnectionState = "connected"
	Disconnecting ConnectionState = "disconnecting"
)

func (s ConnectionState) String() string { return string(s) }

// Connector opens and closes the underlying store connection.
// Connect must be safe to call again after a failure or a drop.
type Connector interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
}

// EventHandler receives driver-level notifications.
type EventHandler interface {
	OnDisconnect()
	OnReconnect()
	OnError(err error)
}

// EventSource is implemented by connectors that can report drops and
// errors observed by the driver after Connect returned.
type EventSource interface {
	SetEventHandler(h EventHandler)
}

// Config controls the retry schedule.
type Config struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxAttempts    int
	ReconnectDelay time.Duration
	ConnectTimeout time.Duration
}

// DefaultConfig returns the production retry schedule.
func DefaultConfig() Config {
	return Config{
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		MaxAttempts:    10,
		ReconnectDelay: time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// StateObserver is notified of every state transition, with the attempt
// counter at the time of the change. It is called with the manager's lock
// held and must not call back into the manager.
type StateObserver func(state ConnectionState, attempts int)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent(log.ComponentDatabase) }
}

// WithStateObserver registers a callback for state transitions.
func WithStateObserver(fn StateObserver) Option {
	return func(m *Manager) { m.observer = fn }
}

// Manager drives a Connector through the connection state machine.
type Manager struct {
	connector Connector
	cfg       Config
	clock     Clock
	logger    *log.Logger
	observer  StateObserver

	mu       sync.Mutex
	state    ConnectionState
	attempts int
	timer    Timer
	started  bool
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewManager creates a manager in the disconnected state. Nothing happens
// until Start is called.
func NewManager(connector Connector, cfg Config, opts ...Option) *Manager {
	defaults := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}

	m := &Manager{
		connector: connector,
		cfg:       cfg,
		clock:     SystemClock{},
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentDatabase),
		state:     Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start schedules the first connection attempt and returns immediately.
// ctx bounds every attempt; cancelling it stops further retries from making
// progress but does not close an established connection, use Stop for that.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)

	if src, ok := m.connector.(EventSource); ok {
		src.SetEventHandler(m)
	}
	m.scheduleLocked(0)
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of consecutive failed attempts.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// IsConnected reports whether the store is usable right now.
func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// Stop cancels pending retries and closes the connection. It is safe to
// call more than once; only the first call does any work.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.setStateLocked(Disconnecting)
	m.mu.Unlock()

	err := m.connector.Close(ctx)

	m.mu.Lock()
	m.setStateLocked(Disconnected)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Error closing database connection", log.FieldError, err)
		return err
	}
	m.logger.Info("Database connection closed")
	return nil
}

// attempt runs one connection attempt. It is only ever invoked by a timer.
func (m *Manager) attempt() {
	m.mu.Lock()
	m.timer = nil
	if m.stopped || m.state == Connected || m.state == Connecting {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(Connecting)
	ctx := m.ctx
	m.mu.Unlock()

	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	err := m.connector.Connect(attemptCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	if err == nil {
		m.attempts = 0
		m.setStateLocked(Connected)
		m.logger.Info("Database connected successfully")
		return
	}

	m.attempts++
	m.setStateLocked(Disconnected)
	if m.attempts >= m.cfg.MaxAttempts {
		m.logger.Error("Database connection failed, giving up",
			"attempts", m.attempts,
			"max_attempts", m.cfg.MaxAttempts,
			log.FieldError, err)
		return
	}

	delay := Backoff(m.cfg.BaseDelay, m.cfg.MaxDelay, m.attempts)
	m.logger.Warn("Database connection failed, retrying",
		"attempts", m.attempts,
		"max_attempts", m.cfg.MaxAttempts,
		"retry_in", delay.String(),
		log.FieldError, err)
	m.scheduleLocked(delay)
}

// OnDisconnect handles a drop reported by the driver. Only a drop from the
// connected state counts; the attempt counter is left as it is.
func (m *Manager) OnDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.state != Connected {
		return
	}
	m.setStateLocked(Disconnected)
	m.logger.Warn("Database disconnected unexpectedly", "attempts", m.attempts)

	if m.attempts < m.cfg.MaxAttempts && m.timer == nil {
		m.logger.Info("Scheduling database reconnect", "retry_in", m.cfg.ReconnectDelay.String())
		m.scheduleLocked(m.cfg.ReconnectDelay)
	}
}

// OnReconnect handles the driver recovering on its own while the manager
// believes it is disconnected.
func (m *Manager) OnReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.state != Disconnected {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.attempts = 0
	m.setStateLocked(Connected)
	m.logger.Info("Database reconnected")
}

// OnError logs driver errors. They never change state by themselves.
func (m *Manager) OnError(err error) {
	if err == nil {
		return
	}
	m.logger.Error("Database connection error", log.FieldError, err)
}

func (m *Manager) scheduleLocked(d time.Duration) {
	m.timer = m.clock.AfterFunc(d, m.attempt)
}

func (m *Manager) setStateLocked(s ConnectionState) {
	if m.state == s {
		return
	}
	m.state = s
	if m.observer != nil {
		m.observer(s, m.attempts)
	}
}
