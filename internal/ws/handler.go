package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yeet-socket/yeet/internal/protocol"
	"github.com/yeet-socket/yeet/internal/router"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Frames buffered between the pumps and the dispatch loop.
	queueSize = 64
)

// Reasons sent in ERROR replies.
const (
	ReasonRateLimited      = "rate limit exceeded, slow down"
	ReasonGenerationFailed = "generation failed"
)

// ErrSessionClosed is returned by Send after the session has shut down.
var ErrSessionClosed = errors.New("session closed")

// Session is one accepted connection.
type Session struct {
	id      string
	conn    *websocket.Conn
	service *Service
	limiter *rate.Limiter
	logger  *zap.Logger

	send    chan []byte
	inbound chan protocol.Message

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(ctx context.Context, id string, conn *websocket.Conn, service *Service) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		id:      id,
		conn:    conn,
		service: service,
		limiter: service.newLimiter(),
		logger:  service.logger.With(zap.String("session", id)),
		send:    make(chan []byte, queueSize),
		inbound: make(chan protocol.Message, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the registry id of the session.
func (s *Session) ID() string {
	return s.id
}

// Send queues msg for the write pump.
func (s *Session) Send(msg protocol.Message) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	select {
	case s.send <- protocol.Encode(msg):
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Close shuts the session down. It does not wait for the pumps.
func (s *Session) Close() {
	s.cancel()
}

// run serves the connection until the peer leaves or the session is closed.
func (s *Session) run() error {
	defer s.cancel()

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return s.readPump(ctx) })
	g.Go(func() error { return s.writePump(ctx) })
	g.Go(func() error { return s.dispatch(ctx) })
	return g.Wait()
}

// readPump decodes frames from the connection and queues them in order.
func (s *Session) readPump(ctx context.Context) error {
	defer s.cancel()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				s.logger.Warn("WebSocket error", zap.Error(err))
				return err
			}
			return nil
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn("Dropping malformed frame", zap.Error(err), zap.Int("size", len(data)))
			continue
		}
		s.logger.Info("Received message from client", zap.Stringer("message", msg))

		select {
		case s.inbound <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// writePump writes queued replies and keepalive pings. It owns closing the
// connection, which also unblocks readPump.
func (s *Session) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	defer s.cancel()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

// dispatch handles queued messages one at a time.
func (s *Session) dispatch(ctx context.Context) error {
	for {
		select {
		case msg := <-s.inbound:
			s.handle(ctx, msg)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) handle(ctx context.Context, msg protocol.Message) {
	action := s.service.router.Route(msg)
	switch action.Kind {
	case router.ActionAcknowledge:
		s.logger.Info("YEETED", zap.String("identity", action.Payload))
		s.service.registry.Identify(ctx, s.id, action.Payload)
	case router.ActionGenerate:
		s.generate(ctx, action.Payload)
	default:
		s.logger.Debug("Ignoring message", zap.String("type", string(msg.Type)))
	}
}

func (s *Session) generate(ctx context.Context, prompt string) {
	if !s.limiter.Allow() {
		s.logger.Warn("Prompt rate limited")
		s.service.registry.RecordPrompt(ctx, s.id, true)
		s.reply(protocol.New(protocol.TypeError, ReasonRateLimited))
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, s.service.opts.GenerateTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.callDriver(genCtx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Generation failed",
			zap.String("driver", s.service.driver.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		s.service.registry.RecordPrompt(ctx, s.id, true)
		s.reply(protocol.New(protocol.TypeError, ReasonGenerationFailed+": "+err.Error()))
		return
	}

	s.logger.Debug("Generated reply",
		zap.String("driver", s.service.driver.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("length", len(text)))
	s.service.registry.RecordPrompt(ctx, s.id, false)
	s.reply(protocol.New(protocol.TypeAI, text))
}

// callDriver runs the driver and turns a panic into an error, so a faulty
// driver only fails the one prompt.
func (s *Session) callDriver(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Driver panicked",
				zap.String("driver", s.service.driver.Name()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			text, err = "", fmt.Errorf("driver panic: %v", r)
		}
	}()
	return s.service.driver.Generate(ctx, prompt)
}

func (s *Session) reply(msg protocol.Message) {
	if err := s.Send(msg); err != nil {
		s.logger.Debug("Reply dropped", zap.Stringer("message", msg), zap.Error(err))
	}
}
