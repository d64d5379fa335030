package model

import (
	"time"
)

// SessionStatus represents the status of a chat session.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

// Session is the audit record of one accepted connection. It never holds
// message content.
type Session struct {
	ID         string        `json:"id"`
	RemoteAddr string        `json:"remoteAddr"`
	Identity   string        `json:"identity,omitempty"`
	Status     SessionStatus `json:"status"`
	Prompts    int           `json:"prompts"`
	Failures   int           `json:"failures"`
	OpenedAt   time.Time     `json:"openedAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	ClosedAt   *time.Time    `json:"closedAt,omitempty"`
}

// Duration returns how long the session was, or has been, connected.
func (s *Session) Duration() time.Duration {
	if s.ClosedAt != nil {
		return s.ClosedAt.Sub(s.OpenedAt)
	}
	return time.Since(s.OpenedAt)
}

// IsOpen reports whether the connection is still live.
func (s *Session) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

// Clone returns a copy that shares no pointers with s.
func (s *Session) Clone() *Session {
	c := *s
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
