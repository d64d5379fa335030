package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/internal/protocol"
)

var (
	// ErrRetryExhausted is reported once MaxAttempts consecutive connection
	// attempts have failed.
	ErrRetryExhausted = errors.New("failed to establish websocket connection")

	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("not connected")
)

// Handler receives every decoded inbound message of the live connection.
type Handler func(msg protocol.Message)

// Manager owns at most one live transport and reconnects with backoff when
// it closes. Each connection belongs to a generation; events from an older
// generation are discarded, so a superseded transport can never reach the
// handler or trigger another retry.
type Manager struct {
	url     string
	dialer  Dialer
	sched   Scheduler
	backoff Backoff
	logger  *zap.Logger
	handler Handler

	mu         sync.Mutex
	state      State
	attempt    int
	gen        uint64
	transport  Transport
	timer      Timer
	cancelDial context.CancelFunc
	err        error
	done       chan struct{}

	wg sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithScheduler replaces the wall-clock retry timer.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.sched = s }
}

// WithBackoff sets the retry policy.
func WithBackoff(b Backoff) Option {
	return func(m *Manager) { m.backoff = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithHandler sets the inbound message handler.
func WithHandler(h Handler) Option {
	return func(m *Manager) { m.handler = h }
}

// NewManager creates an idle manager for url.
func NewManager(url string, opts ...Option) *Manager {
	m := &Manager{
		url:     url,
		dialer:  NewWebsocketDialer(),
		sched:   realScheduler{},
		backoff: DefaultBackoff(),
		logger:  zap.NewNop(),
		state:   StateIdle,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the first connection attempt.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return fmt.Errorf("cannot start from state %s", m.state)
	}
	m.connectLocked()
	return nil
}

// Stop detaches the live transport, cancels any pending retry and waits for
// the manager's goroutines to exit. It is idempotent. It must not be called
// from the Handler.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state.Terminal() {
		m.mu.Unlock()
		m.wg.Wait()
		return
	}

	t := m.transport
	m.detachLocked()
	m.cancelTimerLocked()
	m.state = StateStopped
	m.finishLocked(nil)
	m.mu.Unlock()

	closeTransport(t)
	m.wg.Wait()
	m.logger.Debug("Socket client stopped")
}

// Send encodes msg onto the live connection.
func (m *Manager) Send(msg protocol.Message) error {
	m.mu.Lock()
	t := m.transport
	open := m.state == StateOpen
	m.mu.Unlock()

	if !open || t == nil {
		return ErrNotConnected
	}
	if err := t.WriteMessage(protocol.Encode(msg)); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the number of consecutive failed attempts.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Done is closed when the manager reaches Exhausted or Stopped.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err returns ErrRetryExhausted after exhaustion and nil otherwise.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) connectLocked() {
	m.state = StateConnecting
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel

	m.wg.Add(1)
	go m.run(ctx, gen)

	m.logger.Debug("Connecting",
		zap.String("url", m.url),
		zap.Uint64("generation", gen),
		zap.Int("attempt", m.attempt))
}

// run drives one generation: dial, then read until the transport fails.
func (m *Manager) run(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	t, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		m.onError(gen, err)
		m.onClose(gen)
		return
	}
	if !m.onOpen(gen, t) {
		closeTransport(t)
		return
	}

	for {
		data, err := t.ReadMessage()
		if err != nil {
			m.onError(gen, err)
			m.onClose(gen)
			return
		}
		m.onMessage(gen, data)
	}
}

func (m *Manager) live(gen uint64) bool {
	return gen == m.gen && (m.state == StateConnecting || m.state == StateOpen)
}

func (m *Manager) onOpen(gen uint64, t Transport) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateConnecting {
		return false
	}
	m.transport = t
	m.state = StateOpen
	m.attempt = 0
	m.cancelTimerLocked()

	m.logger.Info("Socket connection opened", zap.String("url", m.url))
	return true
}

func (m *Manager) onMessage(gen uint64, data []byte) {
	m.mu.Lock()
	ok := gen == m.gen && m.state == StateOpen
	handler := m.handler
	m.mu.Unlock()

	if !ok {
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		m.logger.Warn("Dropping malformed frame", zap.Error(err), zap.Int("size", len(data)))
		return
	}

	m.logger.Info("Received message from server", zap.String("type", string(msg.Type)))
	if handler != nil {
		handler(msg)
	}
}

func (m *Manager) onError(gen uint64, err error) {
	m.mu.Lock()
	ok := m.live(gen)
	m.mu.Unlock()

	if ok {
		m.logger.Warn("Socket error", zap.Error(err))
	}
}

func (m *Manager) onClose(gen uint64) {
	m.mu.Lock()
	if !m.live(gen) {
		m.mu.Unlock()
		return
	}

	t := m.transport
	m.detachLocked()
	m.state = StateClosed
	m.attempt++
	attempt := m.attempt

	if m.backoff.Exhausted(attempt) {
		m.state = StateExhausted
		m.finishLocked(ErrRetryExhausted)
		m.mu.Unlock()

		closeTransport(t)
		m.logger.Error("Failed to establish WebSocket connection",
			zap.Int("attempts", attempt),
			zap.Int("max_attempts", m.backoff.MaxAttempts))
		return
	}

	delay := m.backoff.Delay(attempt)
	m.scheduleLocked(delay)
	m.mu.Unlock()

	closeTransport(t)
	m.logger.Info("WebSocket connection failed. Trying to reconnect.",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", m.backoff.MaxAttempts),
		zap.Duration("next_attempt_in", delay))
}

func (m *Manager) scheduleLocked(delay time.Duration) {
	m.cancelTimerLocked()
	m.wg.Add(1)
	m.timer = m.sched.AfterFunc(delay, m.retry)
}

func (m *Manager) retry() {
	defer m.wg.Done()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateClosed {
		return
	}
	m.timer = nil
	m.connectLocked()
}

// detachLocked retires the current generation.
func (m *Manager) detachLocked() {
	m.gen++
	m.transport = nil
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
}

func (m *Manager) cancelTimerLocked() {
	if m.timer == nil {
		return
	}
	// A timer that already fired runs retry, which balances the WaitGroup.
	if m.timer.Stop() {
		m.wg.Done()
	}
	m.timer = nil
}

func (m *Manager) finishLocked(err error) {
	select {
	case <-m.done:
		return
	default:
	}
	m.err = err
	close(m.done)
}

func closeTransport(t Transport) {
	if t != nil {
		_ = t.Close()
	}
}
