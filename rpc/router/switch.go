package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/metrics"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/ValentinKolb/dTS/rpc/transport"
	"github.com/ValentinKolb/dTS/rpc/transport/base"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// Switch accepts client connections and fans every request out to the replicas.
// It runs one coordinator goroutine per client connection and one proxy worker per
// replica.
type Switch struct {
	config     common.SwitchConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	metrics    *metrics.Registry

	replicas []*Replica
	proxies  []*proxy
	sessions *xsync.MapOf[uuid.UUID, net.Addr]

	// dispatchMu makes handing a request to all proxies atomic, so every replica sees
	// the write requests in the same order
	dispatchMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSwitch creates a switch for the replicas in config. Replica connections are
// dialed with client, clients are accepted with server.
func NewSwitch(config common.SwitchConfig, server transport.IRPCServerTransport, client transport.IRPCClientTransport, s serializer.IRPCSerializer) (*Switch, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid switch configuration: %w", err)
	}

	sw := &Switch{
		config:     config,
		transport:  server,
		serializer: s,
		metrics:    metrics.NewRegistry("switch"),
		sessions:   xsync.NewMapOf[uuid.UUID, net.Addr](),
	}

	for id, endpoint := range config.Replicas {
		conn := base.NewConn(client, s, endpoint, config.Transport, base.ConnOptions{
			RetryBudget:   config.RetryBudget,
			RetryInterval: config.RetryInterval,
		})
		replica := NewReplica(id, conn, sw.metrics)
		sw.replicas = append(sw.replicas, replica)
		sw.proxies = append(sw.proxies, newProxy(replica, sw.metrics, config.Inbox()))
	}

	sw.metrics.Gauge(metrics.SessionsActive, func() float64 {
		return float64(sw.sessions.Size())
	})

	server.RegisterHandler(sw.handleSession)
	return sw, nil
}

// Listen opens the client endpoint and returns its address
func (s *Switch) Listen() (net.Addr, error) {
	return s.transport.Listen(s.config.Endpoint, s.config.Transport)
}

// Serve runs the proxy workers, the accept loop and (if configured) the metrics
// endpoint until ctx is done, Close is called or one of them fails. Listen must have
// been called before.
func (s *Switch) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	for _, p := range s.proxies {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}

	g.Go(func() error {
		// the workers have nothing to do once no client can reach the switch
		defer cancel()
		return s.transport.Serve(gctx)
	})

	if s.config.MetricsEndpoint != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, s.config.MetricsEndpoint, s.config.LogLevel == "debug", nil, s.metrics)
		})
	}

	Logger.Infof("Switch serving %d replicas", len(s.replicas))
	err := g.Wait()
	Logger.Infof("Switch stopped")
	return err
}

// Close stops the switch: the listener, all client sessions and the proxy workers.
func (s *Switch) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return s.transport.Close()
}

// EnableReplica re-enables a replica whose retry budget was exhausted
func (s *Switch) EnableReplica(id int) error {
	if id < 0 || id >= len(s.replicas) {
		return fmt.Errorf("no replica with id %d", id)
	}
	s.replicas[id].Enable()
	Logger.Infof("Replica %d (%s) enabled", id, s.replicas[id].Endpoint())
	return nil
}

// EnableDisabledReplicas re-enables every replica whose retry budget was exhausted and
// returns their ids
func (s *Switch) EnableDisabledReplicas() []int {
	var ids []int
	for _, r := range s.replicas {
		if r.Disabled() {
			r.Enable()
			ids = append(ids, r.ID())
		}
	}
	if len(ids) > 0 {
		Logger.Infof("Replicas %v enabled", ids)
	}
	return ids
}

// Replicas returns the replicas in id order
func (s *Switch) Replicas() []*Replica {
	return s.replicas
}

// Sessions returns the number of connected clients
func (s *Switch) Sessions() int {
	return s.sessions.Size()
}

// Metrics returns the metric registry of the switch
func (s *Switch) Metrics() *metrics.Registry {
	return s.metrics
}

// --------------------------------------------------------------------------
// Coordinator
// --------------------------------------------------------------------------

// handleSession is the request/response loop for one client connection
func (s *Switch) handleSession(ctx context.Context, conn net.Conn) {
	id := uuid.New()
	s.sessions.Store(id, conn.RemoteAddr())
	defer s.sessions.Delete(id)

	Logger.Debugf("Session %s opened by %s", id, conn.RemoteAddr())
	defer Logger.Debugf("Session %s closed", id)

	maxFrame := s.config.Transport.MaxFrame()
	for {
		msg, err := transport.ReceiveMessage(conn, s.serializer, maxFrame)
		if err != nil {
			if !transport.StreamIntact(err) {
				if !errors.Is(err, io.EOF) {
					Logger.Warningf("Session %s: dropping connection: %v", id, err)
				}
				return
			}
			s.metrics.Inc(metrics.MalformedTotal)
			Logger.Warningf("Session %s: malformed message: %v", id, err)
			if err := transport.SendMessage(conn, s.serializer, common.NewErrorResponse()); err != nil {
				return
			}
			continue
		}

		if msg.OpCode == common.OpQuit {
			s.metrics.Inc(metrics.RequestsTotal, "op", msg.OpCode.Label())
			_ = transport.SendMessage(conn, s.serializer, common.NewResultResponse(common.OpQuit, 0))
			return
		}

		resp := s.Dispatch(ctx, msg)
		if err := transport.SendMessage(conn, s.serializer, resp); err != nil {
			Logger.Warningf("Session %s: failed to send response: %v", id, err)
			return
		}
	}
}

// Dispatch routes one client request to the replicas and returns the response for the
// client. Every failure is answered with an ERROR response.
func (s *Switch) Dispatch(ctx context.Context, msg *common.Message) *common.Message {
	start := time.Now()
	op := msg.OpCode.Label()
	s.metrics.Inc(metrics.RequestsTotal, "op", op)
	defer s.metrics.ObserveSince(metrics.RequestDuration, start, "op", op)

	if err := msg.CheckRequest(); err != nil || msg.OpCode == common.OpQuit {
		s.metrics.Inc(metrics.ErrorsTotal, "op", op)
		Logger.Warningf("Rejecting %s: %v", msg, err)
		return common.NewErrorResponse()
	}

	targets, fanIn := s.route(msg.OpCode)
	req := NewRequest(msg, fanIn, len(targets))

	if timeout := s.config.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		req.Deadline, _ = ctx.Deadline()
	}

	s.dispatchMu.Lock()
	for _, p := range targets {
		p.Enqueue(ctx, req)
	}
	s.dispatchMu.Unlock()

	resp, err := req.Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrRequestTimeout) {
			s.metrics.Inc(metrics.TimeoutsTotal, "op", op)
		}
		s.metrics.Inc(metrics.ErrorsTotal, "op", op)
		Logger.Warningf("Request %s (%s) failed: %v", req.ID, msg.OpCode, err)
		return resp
	}

	Logger.Debugf("Request %s (%s) answered with %s", req.ID, msg.OpCode, resp)
	return resp
}

// route returns the proxies an operation is sent to and the fan-in policy
func (s *Switch) route(op common.OpCode) ([]*proxy, FanIn) {
	if !op.IsRead() {
		return s.proxies, WaitAll
	}
	if s.config.ReadAffinity != common.NoReadAffinity {
		return s.proxies[s.config.ReadAffinity : s.config.ReadAffinity+1], FirstWins
	}
	return s.proxies, FirstWins
}
