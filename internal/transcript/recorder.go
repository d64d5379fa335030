// Package transcript records a client conversation as an asciinema v2 cast,
// so a chat session can be replayed with any asciicast player.
package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds understood by asciicast v2 players.
const (
	KindOutput = "o"
	KindInput  = "i"
)

// Default terminal geometry written to the header.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Header is the first line of a cast.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is one [offset, kind, data] line of a cast.
type Event struct {
	Offset float64
	Kind   string
	Data   string
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Offset, e.Kind, e.Data})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("invalid event: expected 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Offset); err != nil {
		return fmt.Errorf("invalid event offset: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Kind); err != nil {
		return fmt.Errorf("invalid event kind: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.Data); err != nil {
		return fmt.Errorf("invalid event data: %w", err)
	}
	return nil
}

// Recorder appends events to a cast. A nil *Recorder discards everything, so
// callers need not check whether recording is enabled.
type Recorder struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	started time.Time
	now     func() time.Time
	err     error
}

// Create opens path (creating parent directories) and writes the header.
func Create(path, title string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}

	r, err := NewRecorder(f, title)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewRecorder writes the header to w and returns a recorder appending to it.
func NewRecorder(w io.Writer, title string) (*Recorder, error) {
	r := &Recorder{w: w, now: time.Now}
	r.started = r.now()

	header := Header{
		Version:   2,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Timestamp: r.started.Unix(),
		Title:     title,
		Env:       map[string]string{"TERM": os.Getenv("TERM"), "SHELL": os.Getenv("SHELL")},
	}
	if err := r.writeLine(header); err != nil {
		return nil, fmt.Errorf("write transcript header: %w", err)
	}
	return r, nil
}

// Output records text shown to the user.
func (r *Recorder) Output(text string) {
	r.record(KindOutput, text)
}

// Input records a line the user typed.
func (r *Recorder) Input(line string) {
	r.record(KindInput, line+"\r\n")
}

// Err returns the first write error. Recording stops after it.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the underlying file when the recorder owns one.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return r.err
	}
	err := r.closer.Close()
	r.closer = nil
	if r.err != nil {
		return r.err
	}
	return err
}

func (r *Recorder) record(kind, data string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	ev := Event{Offset: r.now().Sub(r.started).Seconds(), Kind: kind, Data: data}
	r.err = r.writeLine(ev)
}

func (r *Recorder) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.w.Write(append(data, '\n'))
	return err
}
