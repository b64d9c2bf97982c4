package h1x

import "context"

// Message pairs a head with its body. Body may be nil, which is
// equivalent to an empty buffered body.
type Message struct {
	Head Head
	Body *Body
}

// Service is the single extension point for application logic: given
// the peer's incoming message, produce the outgoing one. The engine
// never interprets message semantics; routing, status codes and error
// translation all live behind this interface.
//
// For a server-role connection, in is the request and the returned
// message is the response.
//
// For a client-role connection, in is the response to the previously
// written request (nil on the first call, when no request has been
// written yet) and the returned message is the next request to send.
// Returning (nil, nil) means no more requests and ends the exchange
// loop.
//
// Serve runs on its own goroutine and may block on application I/O;
// the connection keeps feeding the inbound body while it runs.
type Service interface {
	Serve(ctx context.Context, in *Message) (*Message, error)
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, in *Message) (*Message, error)

func (f ServiceFunc) Serve(ctx context.Context, in *Message) (*Message, error) {
	return f(ctx, in)
}

// Role selects which side of the exchange a connection plays, and with
// it which message direction goes first.
type Role int

const (
	// RoleServer reads a request, runs the Service, writes a response.
	RoleServer Role = iota
	// RoleClient runs the Service for a request, writes it, reads the
	// response.
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}
