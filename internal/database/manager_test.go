package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/log"
)

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

// pending returns the timers that are still armed.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireNext runs the oldest armed timer and returns its delay.
func (c *fakeClock) fireNext(t *testing.T) time.Duration {
	t.Helper()
	c.mu.Lock()
	var next *fakeTimer
	for _, tm := range c.timers {
		if !tm.stopped && !tm.fired {
			next = tm
			break
		}
	}
	require.NotNil(t, next, "no pending timer")
	next.fired = true
	c.mu.Unlock()

	next.fn()
	return next.delay
}

type fakeConnector struct {
	mu       sync.Mutex
	results  []error
	fallback error
	connects int
	closes   int
	closeErr error
	handler  EventHandler
}

func (c *fakeConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if len(c.results) > 0 {
		err := c.results[0]
		c.results = c.results[1:]
		return err
	}
	return c.fallback
}

func (c *fakeConnector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return c.closeErr
}

func (c *fakeConnector) SetEventHandler(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *fakeConnector) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func testConfig() Config {
	return Config{
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		MaxAttempts:    10,
		ReconnectDelay: time.Second,
		ConnectTimeout: time.Second,
	}
}

func newTestManager(conn Connector, clock *fakeClock, opts ...Option) *Manager {
	opts = append([]Option{WithClock(clock), WithLogger(testLogger())}, opts...)
	return NewManager(conn, testConfig(), opts...)
}

var errRefused = errors.New("connection refused")

func TestManager_InitialState(t *testing.T) {
	m := newTestManager(&fakeConnector{}, &fakeClock{})

	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, 0, m.Attempts())
	assert.False(t, m.IsConnected())
}

func TestManager_ConnectSuccess(t *testing.T) {
	clock := &fakeClock{}
	conn := &fakeConnector{}
	m := newTestManager(conn, clock)

	m.Start(context.Background())
	assert.Equal(t, Disconnected, m.State(), "start must not connect synchronously")
	require.Len(t, clock.pending(), 1)

	assert.Equal(t, time.Duration(0), clock.fireNext(t))
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 0, m.Attempts())
	assert.Equal(t, 1, conn.connectCount())
	assert.Empty(t, clock.pending())
}

func TestManager_StartIsIdempotent(t *testing.T) {
	clock := &fakeClock{}
	m := newTestManager(&fakeConnector{}, clock)

	m.Start(context.Background())
	m.Start(context.Background())

	assert.Len(t, clock.pending(), 1)
}

func TestManager_RetryDelaysGrowAndCap(t *testing.T) {
	clock := &fakeClock{}
	conn := &fakeConnector{fallback: errRefused}
	m := newTestManager(conn, clock)

	m.Start(context.Background())

	var delays []time.Duration
	for len(clock.pending()) > 0 {
		delays = append(delays, clock.fireNext(t))
	}

	// The first entry is the immediate initial attempt.
	retryDelays := delays[1:]
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, retryDelays)

	for i, d := range retryDelays {
		assert.LessOrEqual(t, d, 30*time.Second)
		if i > 0 && retryDelays[i-1] < 30*time.Second {
			assert.Greater(t, d, retryDelays[i-1])
		}
	}

	assert.Equal(t, 10, conn.connectCount(), "stops after max attempts")
	assert.Equal(t, 10, m.Attempts())
	assert.Equal(t, Disconnected, m.State())
	assert.Empty(t, clock.pending())
}

func TestManager_SuccessResetsAttempts(t *testing.T) {
	clock := &fakeClock{}
	conn := &fakeConnector{results: []error{errRefused, errRefused, nil}}
	m := newTestManager(conn, clock)

	m.Start(context.Background())
	clock.fireNext(t)
	assert.Equal(t, 1, m.Attempts())
	clock.fireNext(t)
	assert.Equal(t, 2, m.Attempts())
	clock.fireNext(t)

	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 0, m.Attempts())
}

func TestManager_DisconnectSchedulesOneRetry(t *testing.T) {
	clock := &fakeClock{}
	conn := &fakeConnector{}
	m := newTestManager(conn, clock)

	m.Start(context.Background())
	clock.fireNext(t)
	require.Equal(t, Connected, m.State())

	m.OnDisconnect()
	m.OnDisconnect()

	assert.Equal(t, Disconnected, m.State())
	pending := clock.pending()
	require.Len(t, pending, 1, "exactly one retry scheduled")
	assert.Equal(t, time.Second, pending[0].delay)

	clock.fireNext(t)
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 2, conn.connectCount())
}

func TestManager_FailedReconnectFallsBackToBackoff(t *testing.T) {
	clock := &fakeClock{}
	conn := &fakeConnector{results: []error{nil, errRefused}}
	m := newTestManager(conn, clock)

	m.Start(context.Background())
	clock.fireNext(t)
	m.OnDisconnect()
	clock.fireNext(t)

	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, 1, m.Attempts())
	pending := clock.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 2*time.Second, pending[0].delay)
}

func TestManager_DisconnectIgnoredWhenNotConnected(t *testing.T) {
	clock := &fakeClock{}
	m := newTestManager(&fakeConnector{fallback: errRefused}, clock)

	m.OnDisconnect()
	assert.Empty(t, clock.pending())
	assert.Equal(t, Disconnected, m.State())
}

func TestManager_ErrorEventOnlyLogs(t *testing.T) {
	clock := &fakeClock{}
	m := newTestManager(&fakeConnector{}, clock)
	m.Start(context.Background())
	clock.fireNext(t)

	m.OnError(errors.New("heartbeat failed"))

	assert.Equal(t, Connected, m.State())
	assert.Empty(t, clock.pending())
}

func TestManager_ReconnectAfterGivingUp(t *testing.T) {
	clock := &fakeClock{}
	conn := &fakeConnector{fallback: errRefused}
	m := newTestManager(conn, clock)

	m.Start(context.Background())
	for len(clock.pending()) > 0 {
		clock.fireNext(t)
	}
	require.Equal(t, 10, m.Attempts())

	m.OnReconnect()
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 0, m.Attempts())
}

func TestManager_RegistersAsEventHandler(t *testing.T) {
	conn := &fakeConnector{}
	m := newTestManager(conn, &fakeClock{})

	m.Start(context.Background())

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Same(t, m, conn.handler)
}

func TestManager_Stop(t *testing.T) {
	clock := &fakeClock{}
	conn := &fakeConnector{fallback: errRefused}

	var transitions []ConnectionState
	m := newTestManager(conn, clock, WithStateObserver(func(s ConnectionState, _ int) {
		transitions = append(transitions, s)
	}))

	m.Start(context.Background())
	clock.fireNext(t)
	require.Len(t, clock.pending(), 1)

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, Disconnected, m.State())
	assert.Empty(t, clock.pending(), "pending retry cancelled")
	assert.Equal(t, 1, conn.closes)

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 1, conn.closes, "second stop is a no-op")

	m.OnDisconnect()
	m.OnReconnect()
	assert.Equal(t, Disconnected, m.State())

	assert.Equal(t, []ConnectionState{Connecting, Disconnected, Disconnecting, Disconnected}, transitions)
}

func TestManager_StopReturnsCloseError(t *testing.T) {
	conn := &fakeConnector{closeErr: errors.New("close failed")}
	m := newTestManager(conn, &fakeClock{})

	err := m.Stop(context.Background())
	assert.EqualError(t, err, "close failed")
	assert.Equal(t, Disconnected, m.State())
}

func TestManager_ObserverSeesTransitions(t *testing.T) {
	clock := &fakeClock{}
	type change struct {
		state    ConnectionState
		attempts int
	}
	var changes []change
	m := newTestManager(&fakeConnector{results: []error{errRefused, nil}}, clock,
		WithStateObserver(func(s ConnectionState, attempts int) {
			changes = append(changes, change{s, attempts})
		}))

	m.Start(context.Background())
	clock.fireNext(t)
	clock.fireNext(t)

	assert.Equal(t, []change{
		{Connecting, 0},
		{Disconnected, 1},
		{Connecting, 1},
		{Connected, 0},
	}, changes)
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	m := NewManager(&fakeConnector{}, Config{})
	assert.Equal(t, DefaultConfig(), m.cfg)
	assert.Equal(t, Disconnected, m.State())
}
