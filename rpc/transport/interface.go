package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/dTS/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ConnHandler serves one accepted connection. The transport closes the connection
// once the handler returns. ctx is cancelled when the server shuts down.
type ConnHandler func(ctx context.Context, conn net.Conn)

// IRPCServerTransport is the interface for the listening side of a transport
type IRPCServerTransport interface {
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
	// RegisterHandler registers the handler that is called for every accepted connection
	RegisterHandler(handler ConnHandler)
	// Listen binds the endpoint and returns the address actually bound
	Listen(endpoint string, config common.TransportConfig) (net.Addr, error)
	// Serve accepts connections until ctx is done or Close is called.
	// It waits for all connection handlers before returning.
	Serve(ctx context.Context) error
	// Close stops accepting and closes all open connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the dialing side of a transport
type IRPCClientTransport interface {
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
	// Dial opens a connection to endpoint and applies the socket settings of config
	Dial(ctx context.Context, endpoint string, config common.TransportConfig) (net.Conn, error)
}
