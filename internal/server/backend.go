package server

import (
	"context"

	"wordclash/internal/protocol"
)

// Backend implements the request handling for a Frontend. The Frontend
// owns the socket and the framing; the Backend owns the semantics.
type Backend interface {
	// Identifier returns the name of the backend for logging.
	Identifier() string

	// Init is called before the Frontend starts accepting connections.
	Init(ctx context.Context) error

	// Handle processes one decoded request and returns the response to
	// write back on the same stream. A nil response with a nil error
	// means nothing needs to be written.
	Handle(ctx context.Context, c *Client, msg *protocol.Message) (*protocol.Message, error)

	// Disconnected is called once after the client's connection goes
	// away, whatever the reason.
	Disconnected(c *Client)
}
