// Package router maps an incoming message to the action each side of the
// connection takes for it. Routing is pure: executing the action is left to
// the client and the server.
package router

import (
	"github.com/yeet-socket/yeet/internal/protocol"
)

// Role selects which half of the protocol table applies.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// ActionKind tells the caller what to do with a routed message.
type ActionKind int

const (
	// ActionNone ignores the message.
	ActionNone ActionKind = iota
	// ActionReply sends Action.Reply back over the same connection.
	ActionReply
	// ActionEmit shows Action.Payload to the user, then asks for the next input.
	ActionEmit
	// ActionEmitError shows Action.Payload as an error, then asks for the next input.
	ActionEmitError
	// ActionAcknowledge only logs receipt. Action.Payload carries the peer identity.
	ActionAcknowledge
	// ActionGenerate runs text generation on Action.Payload and replies with
	// an AI message.
	ActionGenerate
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionReply:
		return "reply"
	case ActionEmit:
		return "emit"
	case ActionEmitError:
		return "emit_error"
	case ActionAcknowledge:
		return "acknowledge"
	case ActionGenerate:
		return "generate"
	default:
		return "unknown"
	}
}

// Action is the result of routing one message.
type Action struct {
	Kind    ActionKind
	Reply   protocol.Message
	Payload string
}

// Router holds the static inputs of the table: the role and, for clients,
// the identity announced in reply to OPEN.
type Router struct {
	role     Role
	identity string
}

// NewClient returns the client side of the table.
func NewClient(identity string) *Router {
	return &Router{role: RoleClient, identity: identity}
}

// NewServer returns the server side of the table.
func NewServer() *Router {
	return &Router{role: RoleServer}
}

// Role returns the router's role.
func (r *Router) Role() Role {
	return r.role
}

// Route returns the action for msg. Unrecognized tags route to ActionNone.
func (r *Router) Route(msg protocol.Message) Action {
	switch r.role {
	case RoleClient:
		return r.routeClient(msg)
	case RoleServer:
		return r.routeServer(msg)
	}
	return Action{Kind: ActionNone}
}

func (r *Router) routeClient(msg protocol.Message) Action {
	switch msg.Type {
	case protocol.TypeOpen:
		return Action{Kind: ActionReply, Reply: protocol.New(protocol.TypeYeet, r.identity)}
	case protocol.TypeAI:
		return Action{Kind: ActionEmit, Payload: msg.Message}
	case protocol.TypeError:
		return Action{Kind: ActionEmitError, Payload: msg.Message}
	default:
		return Action{Kind: ActionNone}
	}
}

func (r *Router) routeServer(msg protocol.Message) Action {
	switch msg.Type {
	case protocol.TypeYeet:
		return Action{Kind: ActionAcknowledge, Payload: msg.Message}
	case protocol.TypePrompt:
		return Action{Kind: ActionGenerate, Payload: msg.Message}
	default:
		return Action{Kind: ActionNone}
	}
}
