package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/ValentinKolb/dTS/rpc/transport"
	"golang.org/x/time/rate"
)

var (
	// ErrConnectFailed is returned when a connection to the endpoint cannot be opened.
	ErrConnectFailed = errors.New("transport: connect failed")
	// ErrReconnectFailed is returned once the retry budget of a connection is used up.
	// The connection stays disabled until Enable is called.
	ErrReconnectFailed = errors.New("transport: reconnect failed, retry budget exhausted")
)

// DefaultRetryInterval is the pause between two reconnect attempts.
const DefaultRetryInterval = 5 * time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// clientTransport dials and upgrades connections using a connector
type clientTransport struct {
	connector IClientConnector
}

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

func (t *clientTransport) GetName() string {
	return t.connector.GetName()
}

func (t *clientTransport) Dial(ctx context.Context, endpoint string, config common.TransportConfig) (net.Conn, error) {
	conn, err := t.connector.Connect(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", endpoint, err)
	}
	return conn, nil
}

// -----------------------------------------------------------
// Managed Connection
// -----------------------------------------------------------

// ConnOptions controls the reconnect behaviour of a Conn
type ConnOptions struct {
	// RetryBudget is the number of reconnect attempts allowed between two successful
	// round trips
	RetryBudget int
	// RetryInterval is the minimum pause between two connection attempts
	RetryInterval time.Duration
}

// Conn is a framed request/response connection to one endpoint that reconnects on
// failure. The retry budget belongs to the Conn: ResetRetryBudget after a successful
// round trip refills it, an exhausted budget disables the Conn until Enable is called.
//
// Round trips are serialized, a Conn can be shared by several goroutines.
type Conn struct {
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	endpoint   string
	config     common.TransportConfig
	opts       ConnOptions
	limiter    *rate.Limiter

	mu       sync.Mutex // guards all fields below and the use of conn
	conn     net.Conn
	retries  int
	disabled bool
}

// NewConn creates a managed connection. No connection is opened until Connect or the
// first round trip.
func NewConn(t transport.IRPCClientTransport, s serializer.IRPCSerializer, endpoint string, config common.TransportConfig, opts ConnOptions) *Conn {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.RetryBudget < 0 {
		opts.RetryBudget = 0
	}
	return &Conn{
		transport:  t,
		serializer: s,
		endpoint:   endpoint,
		config:     config,
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Every(opts.RetryInterval), 1),
	}
}

// Endpoint returns the address this connection talks to
func (c *Conn) Endpoint() string {
	return c.endpoint
}

// Connect opens the connection if it is not open yet.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

// Reconnect drops the current connection and dials the same endpoint again, at most
// as often as the remaining retry budget allows and never faster than RetryInterval.
// When the budget runs out the connection is disabled and ErrReconnectFailed returned.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectLocked(ctx)
}

// ShouldRetransmit decides after a failed round trip whether the request should be
// sent again. Only connection failures are retried, and only if a reconnect within the
// retry budget succeeds. Malformed data, cancelled or expired contexts and a disabled
// connection are never retried.
func (c *Conn) ShouldRetransmit(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return false
	}
	if !errors.Is(err, transport.ErrConnectionBroken) && !errors.Is(err, ErrConnectFailed) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return false
	}
	if rerr := c.reconnectLocked(ctx); rerr != nil {
		Logger.Warningf("No retransmission to %s: %v", c.endpoint, rerr)
		return false
	}
	return true
}

// ResetRetryBudget refills the retry budget. Called after every successful round trip
// so that sporadic failures do not add up.
func (c *Conn) ResetRetryBudget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries = 0
}

// Enable re-enables a connection that exhausted its retry budget.
func (c *Conn) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = false
	c.retries = 0
}

// Disabled reports whether the retry budget was exhausted.
func (c *Conn) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// RoundTrip sends msg and waits for the reply on the current connection. If no
// connection is open a single connection attempt is made. Any transport failure closes
// the connection, so the next call starts with a fresh one.
func (c *Conn) RoundTrip(ctx context.Context, msg *common.Message) (*common.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	conn := c.conn

	deadline, hasDeadline := ctx.Deadline()
	if timeout := c.config.IOTimeout(); timeout > 0 {
		if d := time.Now().Add(timeout); !hasDeadline || d.Before(deadline) {
			deadline, hasDeadline = d, true
		}
	}
	if hasDeadline {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}

	// cancellation interrupts blocking I/O
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := transport.SendMessage(conn, c.serializer, msg); err != nil {
		if errors.Is(err, transport.ErrConnectionBroken) {
			c.dropLocked()
		}
		return nil, err
	}

	resp, err := transport.ReceiveMessage(conn, c.serializer, c.config.MaxFrame())
	if err != nil {
		if !transport.StreamIntact(err) {
			c.dropLocked()
		}
		return nil, err
	}
	return resp, nil
}

// Do performs a round trip and retransmits the request as long as ShouldRetransmit
// allows it. The retry budget is reset after success.
func (c *Conn) Do(ctx context.Context, msg *common.Message) (*common.Message, error) {
	for {
		resp, err := c.RoundTrip(ctx, msg)
		if err == nil {
			c.ResetRetryBudget()
			return resp, nil
		}
		if !c.ShouldRetransmit(ctx, err) {
			return nil, err
		}
		Logger.Infof("Retransmitting %s to %s after: %v", msg.OpCode, c.endpoint, err)
	}
}

// Close closes the underlying connection. The Conn may be used again afterwards.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods (callers hold c.mu)
// --------------------------------------------------------------------------

func (c *Conn) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if c.disabled {
		return fmt.Errorf("%w: %s", ErrReconnectFailed, c.endpoint)
	}

	conn, err := c.transport.Dial(ctx, c.endpoint, c.config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	c.conn = conn
	return nil
}

func (c *Conn) reconnectLocked(ctx context.Context) error {
	c.dropLocked()

	for !c.disabled && c.retries < c.opts.RetryBudget {
		c.retries++

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectFailed, err)
		}

		err := c.connectLocked(ctx)
		if err == nil {
			Logger.Infof("Reconnected to %s (attempt %d/%d)", c.endpoint, c.retries, c.opts.RetryBudget)
			return nil
		}
		Logger.Warningf("Reconnect to %s failed (attempt %d/%d): %v", c.endpoint, c.retries, c.opts.RetryBudget, err)
	}

	if !c.disabled {
		Logger.Errorf("Retry budget for %s exhausted, disabling connection", c.endpoint)
	}
	c.disabled = true
	return fmt.Errorf("%w: %s", ErrReconnectFailed, c.endpoint)
}

func (c *Conn) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
