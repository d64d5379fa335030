// Package protocol defines the wire message exchanged between the chat client
// and server, and the codec that turns it into WebSocket text frames.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MessageType is the tag that selects how a message is dispatched.
type MessageType string

const (
	// Server -> Client
	TypeOpen  MessageType = "OPEN"  // greeting sent right after accept
	TypeAI    MessageType = "AI"    // generated reply to a prompt
	TypeError MessageType = "ERROR" // a prompt could not be answered

	// Client -> Server
	TypeYeet   MessageType = "YEET"   // identity reply to OPEN
	TypePrompt MessageType = "PROMPT" // user entered line
)

// Known reports whether t is one of the tags this package defines.
// Unknown tags are still valid on the wire.
func (t MessageType) Known() bool {
	switch t {
	case TypeOpen, TypeAI, TypeError, TypeYeet, TypePrompt:
		return true
	}
	return false
}

// Message is the only entity that crosses the wire.
type Message struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// New creates a message with the given tag and payload.
func New(t MessageType, payload string) Message {
	return Message{Type: t, Message: payload}
}

// String renders the message the way the server logs it.
func (m Message) String() string {
	return fmt.Sprintf("[%s](%s)", m.Type, m.Message)
}

// Validate reports whether m can be encoded and decoded back unchanged.
func (m Message) Validate() error {
	if m.Type == "" {
		return errors.New("message type is required")
	}
	if !utf8.ValidString(string(m.Type)) || !utf8.ValidString(m.Message) {
		return errors.New("message fields must be valid UTF-8")
	}
	return nil
}

// ErrDecode is matched by every error returned from Decode.
var ErrDecode = errors.New("malformed frame")

// DecodeError describes why a frame was rejected.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDecode) hold for every DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Encode serializes m into a single JSON object. Field order is fixed,
// so equal messages always produce equal bytes.
func Encode(m Message) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// A struct of two strings cannot fail to encode.
	_ = enc.Encode(m)
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
}

// Wire keys. Decode matches them exactly.
const (
	keyType    = "type"
	keyMessage = "message"
)

// Decode parses a frame produced by Encode. It fails with a *DecodeError when
// the frame is not valid UTF-8 or not a JSON object, a required key is
// missing, repeated under another case or has the wrong type, or the type tag
// is empty. Unknown type tags and unrelated keys are accepted.
func Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Message{}, &DecodeError{Reason: "empty frame"}
	}
	if !utf8.Valid(trimmed) {
		return Message{}, &DecodeError{Reason: "frame is not valid UTF-8"}
	}
	if trimmed[0] != '{' {
		return Message{}, &DecodeError{Reason: "frame is not a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Message{}, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	for key := range fields {
		if key == keyType || key == keyMessage {
			continue
		}
		if strings.EqualFold(key, keyType) || strings.EqualFold(key, keyMessage) {
			return Message{}, &DecodeError{Reason: fmt.Sprintf("ambiguous key %q", key)}
		}
	}

	msgType, err := stringField(fields, keyType)
	if err != nil {
		return Message{}, err
	}
	if msgType == "" {
		return Message{}, &DecodeError{Reason: `empty "type"`}
	}
	payload, err := stringField(fields, keyMessage)
	if err != nil {
		return Message{}, err
	}

	return Message{Type: MessageType(msgType), Message: payload}, nil
}

// stringField extracts the JSON string stored under key. A null value counts
// as missing.
func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return "", &DecodeError{Reason: fmt.Sprintf("missing %q", key)}
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", &DecodeError{Reason: fmt.Sprintf("%q is not a string", key), Err: err}
	}
	return value, nil
}
