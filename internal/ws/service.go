package ws

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yeet-socket/yeet/internal/driver"
	"github.com/yeet-socket/yeet/internal/logging"
	"github.com/yeet-socket/yeet/internal/protocol"
	"github.com/yeet-socket/yeet/internal/router"
	"github.com/yeet-socket/yeet/internal/session"
)

// Greeting is the payload of the OPEN message sent to every new session.
const Greeting = "Connected"

// Options tunes per-session behavior.
type Options struct {
	// PromptRate is the sustained prompts per second per session; zero
	// disables limiting.
	PromptRate  float64
	PromptBurst int

	GenerateTimeout time.Duration
}

// Service accepts WebSocket connections and owns their sessions.
type Service struct {
	driver   driver.Driver
	registry *session.Manager
	router   *router.Router
	hub      *Hub
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// mu orders wg.Add in HandleConnection before wg.Wait in Close.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service generating replies with d.
func NewService(d driver.Driver, registry *session.Manager, opts Options, logger *zap.Logger) *Service {
	if d == nil {
		d = driver.NewGenericDriver()
	}
	if registry == nil {
		registry = session.NewManager(nil, logger)
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 30 * time.Second
	}
	if opts.PromptBurst < 1 {
		opts.PromptBurst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		driver:   d,
		registry: registry,
		router:   router.NewServer(),
		hub:      NewHub(),
		opts:     opts,
		logger:   logging.Module(logger, "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are terminals, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// HandleConnection upgrades the request, greets the peer and serves the
// session in the background.
func (s *Service) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	if !s.acquire() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return nil
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Done()
		return err
	}

	record := s.registry.Open(r.Context(), r.RemoteAddr)
	sess := newSession(s.ctx, record.ID, conn, s)
	s.hub.Register(sess)

	// Queued before the pumps start, so it is the first frame on the wire.
	sess.Send(protocol.New(protocol.TypeOpen, Greeting))

	go s.serve(sess)
	return nil
}

// acquire reserves a slot in wg unless the service is closed.
func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Service) serve(sess *Session) {
	defer s.wg.Done()

	if err := sess.run(); err != nil {
		sess.logger.Debug("Session ended with error", zap.Error(err))
	}
	s.hub.Unregister(sess)
	s.registry.Close(context.Background(), sess.ID())
}

// Hub returns the live session tracker.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Registry returns the session registry.
func (s *Service) Registry() *session.Manager {
	return s.registry
}

// Driver returns the text generation driver.
func (s *Service) Driver() driver.Driver {
	return s.driver
}

// Close stops accepting sessions, closes the live ones and waits for them
// to finish or ctx to expire.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.hub.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) newLimiter() *rate.Limiter {
	limit := rate.Limit(s.opts.PromptRate)
	if s.opts.PromptRate <= 0 || math.IsInf(s.opts.PromptRate, 1) {
		limit = rate.Inf
	}
	return rate.NewLimiter(limit, s.opts.PromptBurst)
}
