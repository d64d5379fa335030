package client

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/yeet-socket/yeet/internal/transcript"
)

// PromptText is shown whenever the client is ready for a new prompt.
const PromptText = "Enter a prompt: "

// Terminal renders replies for the user and mirrors them into an optional
// transcript.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	reply    *color.Color
	failure  *color.Color
	prompt   *color.Color
	recorder *transcript.Recorder
}

// NewTerminal writes to out. rec may be nil.
func NewTerminal(out io.Writer, rec *transcript.Recorder) *Terminal {
	return &Terminal{
		out:      out,
		reply:    color.New(color.FgCyan),
		failure:  color.New(color.FgRed, color.Bold),
		prompt:   color.New(color.FgGreen),
		recorder: rec,
	}
}

// Reply shows a generated response.
func (t *Terminal) Reply(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reply.Fprintln(t.out, text)
	t.recorder.Output(text + "\r\n")
}

// Error shows a failure reported by the server.
func (t *Terminal) Error(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := fmt.Sprintf("error: %s", reason)
	t.failure.Fprintln(t.out, line)
	t.recorder.Output(line + "\r\n")
}

// Prompt asks for the next line.
func (t *Terminal) Prompt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prompt.Fprint(t.out, PromptText)
	t.recorder.Output(PromptText)
}

// Input records a line the user typed. The terminal already echoed it.
func (t *Terminal) Input(line string) {
	t.recorder.Input(line)
}
