package client

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/internal/logging"
	"github.com/yeet-socket/yeet/internal/protocol"
	"github.com/yeet-socket/yeet/internal/router"
)

// Config describes a chat client.
type Config struct {
	URL      string
	Identity string
	Backoff  Backoff
}

// Client connects a line-oriented prompt source to the chat server. It
// announces its identity on every OPEN and prints each reply.
type Client struct {
	manager *Manager
	router  *router.Router
	input   *LineSource
	output  *Terminal
	logger  *zap.Logger
}

// New creates a client reading prompts from in. opts are applied to the
// underlying Manager after the defaults derived from cfg.
func New(cfg Config, in io.Reader, out *Terminal, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		router: router.NewClient(cfg.Identity),
		input:  NewLineSource(in),
		output: out,
		logger: logging.Module(logger, "client"),
	}

	base := []Option{WithBackoff(cfg.Backoff), WithLogger(c.logger)}
	opts = append(base, opts...)
	opts = append(opts, WithHandler(c.handle))
	c.manager = NewManager(cfg.URL, opts...)
	return c
}

// Manager exposes the connection lifecycle.
func (c *Client) Manager() *Manager {
	return c.manager
}

// Run connects and forwards input lines as prompts. It returns nil when the
// input ends or ctx is cancelled, and ErrRetryExhausted when the server
// could not be reached.
func (c *Client) Run(ctx context.Context) error {
	if err := c.manager.Start(); err != nil {
		return err
	}
	defer c.manager.Stop()

	// The reader goroutine may stay blocked on input after Run returns.
	inputDone := make(chan error, 1)
	go func() {
		inputDone <- c.readInput(ctx)
	}()

	select {
	case err := <-inputDone:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-c.manager.Done():
		return c.manager.Err()
	case <-ctx.Done():
		return nil
	}
}

func (c *Client) readInput(ctx context.Context) error {
	c.output.Prompt()
	for line := range c.input.Lines() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.output.Input(line)

		if err := c.manager.Send(protocol.New(protocol.TypePrompt, line)); err != nil {
			c.logger.Warn("Prompt not sent", zap.Error(err))
			c.output.Prompt()
			continue
		}
		c.logger.Info("Sent, waiting for response...")
	}
	return c.input.Err()
}

func (c *Client) handle(msg protocol.Message) {
	action := c.router.Route(msg)
	switch action.Kind {
	case router.ActionReply:
		if err := c.manager.Send(action.Reply); err != nil {
			c.logger.Warn("Reply not sent", zap.Stringer("reply", action.Reply), zap.Error(err))
		}
	case router.ActionEmit:
		c.output.Reply(action.Payload)
		c.output.Prompt()
	case router.ActionEmitError:
		c.output.Error(action.Payload)
		c.output.Prompt()
	default:
		c.logger.Debug("Ignoring message", zap.String("type", string(msg.Type)))
	}
}
