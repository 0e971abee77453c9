package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// acceptBackoff is the pause after a failed Accept that did not stem from Close
const acceptBackoff = 50 * time.Millisecond

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ConnHandler
	config    common.TransportConfig
	listener  net.Listener
	conns     *xsync.MapOf[uint64, net.Conn]
	nextID    atomic.Uint64
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport using the connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		conns:     xsync.NewMapOf[uint64, net.Conn](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) GetName() string {
	return t.connector.GetName()
}

func (t *serverTransport) RegisterHandler(handler transport.ConnHandler) {
	t.handler = handler
}

func (t *serverTransport) Listen(endpoint string, config common.TransportConfig) (net.Addr, error) {
	t.config = config

	listener, err := t.connector.Listen(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener

	Logger.Infof("Listening on %s (%s)", listener.Addr(), t.connector.GetName())
	return listener.Addr(), nil
}

func (t *serverTransport) Serve(ctx context.Context) error {
	if t.listener == nil {
		return fmt.Errorf("serve called before listen")
	}
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// close the listener when the context ends so Accept returns
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		id := t.nextID.Add(1)
		t.conns.Store(id, conn)
		t.wg.Add(1)

		go t.handleConnection(ctx, id, conn)
	}

	// wait for all handlers before returning
	cancel()
	t.wg.Wait()
	return nil
}

func (t *serverTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}

	// unblock handlers waiting on I/O
	t.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection runs the handler for one connection and cleans up afterwards
func (t *serverTransport) handleConnection(ctx context.Context, id uint64, conn net.Conn) {
	defer t.wg.Done()
	defer t.conns.Delete(id)
	defer conn.Close()

	// a cancelled server context closes the connection and ends blocking reads
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	Logger.Debugf("Accepted connection %d from %s", id, conn.RemoteAddr())
	start := time.Now()

	t.handler(ctx, conn)

	Logger.Debugf("Connection %d closed after %s", id, time.Since(start))
}
