package router

import (
	"context"
	"errors"
	"strconv"

	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/metrics"
	"github.com/ValentinKolb/dTS/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("router")

var (
	// ErrConnectFailed is reported when a replica cannot be reached
	ErrConnectFailed = base.ErrConnectFailed
	// ErrReconnectFailed is reported once the retry budget of a replica is exhausted.
	// The replica stays disabled until Switch.EnableReplica is called.
	ErrReconnectFailed = base.ErrReconnectFailed
	// ErrRequestTimeout is reported when the replicas did not answer within the
	// configured request timeout
	ErrRequestTimeout = errors.New("router: request timed out")
	// ErrInboxFull is the failure recorded when a replica's inbox stayed full until the
	// request timed out
	ErrInboxFull = errors.New("router: replica inbox full")
	// ErrShutdown is the failure recorded for requests still queued when the switch stops
	ErrShutdown = errors.New("router: switch is shutting down")
	// ErrUnexpectedReply is the failure recorded when a replica answers with the
	// response of a different operation
	ErrUnexpectedReply = errors.New("router: unexpected reply")
)

// Replica is the connection of the switch to one backend replica
type Replica struct {
	id      int
	label   string
	conn    *base.Conn
	metrics *metrics.Registry
}

// NewReplica wraps the managed connection conn to the replica with the given id
func NewReplica(id int, conn *base.Conn, reg *metrics.Registry) *Replica {
	return &Replica{
		id:      id,
		label:   strconv.Itoa(id),
		conn:    conn,
		metrics: reg,
	}
}

// ID returns the index of the replica in the switch configuration
func (r *Replica) ID() int {
	return r.id
}

// Endpoint returns the address of the replica
func (r *Replica) Endpoint() string {
	return r.conn.Endpoint()
}

// Connect opens the connection to the replica if it is not open yet
func (r *Replica) Connect(ctx context.Context) error {
	return r.conn.Connect(ctx)
}

// Forward sends msg to the replica and returns its reply. Connection failures are
// retried while the connection sanctions a retransmission (a reconnect within the retry
// budget succeeded). A reply is returned as is, even an ERROR reply.
func (r *Replica) Forward(ctx context.Context, msg *common.Message) (*common.Message, error) {
	for {
		resp, err := r.conn.RoundTrip(ctx, msg)
		if err == nil {
			r.conn.ResetRetryBudget()
			return resp, nil
		}

		if !r.conn.ShouldRetransmit(ctx, err) {
			r.metrics.Inc(metrics.ReplicaFailsTotal, "replica", r.label)
			return nil, err
		}

		r.metrics.Inc(metrics.RetransmitsTotal, "replica", r.label)
		Logger.Infof("Retransmitting %s to replica %d (%s) after: %v", msg.OpCode, r.id, r.Endpoint(), err)
	}
}

// Disabled reports whether the retry budget of the replica is exhausted
func (r *Replica) Disabled() bool {
	return r.conn.Disabled()
}

// Enable re-enables a replica whose retry budget was exhausted
func (r *Replica) Enable() {
	r.conn.Enable()
}

// Close closes the connection to the replica
func (r *Replica) Close() error {
	return r.conn.Close()
}
