package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dTS/lib/table"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/metrics"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/ValentinKolb/dTS/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("rpc")

// RPCServer is a replica: it owns one tuple store and executes the requests of every
// connected peer (usually the switch) against it.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	store      table.TupleStore
	metrics    *metrics.Registry

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewRPCServer creates a new replica server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s, err := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//		return err
//	}
//	if _, err := s.Listen(); err != nil {
//		return err
//	}
//	return s.Serve(ctx)
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) (*RPCServer, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	tb, err := table.New(config.Slots)
	if err != nil {
		return nil, fmt.Errorf("failed to create tuple store: %w", err)
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewTableServerAdapter(config.Dimension),
		store:      table.NewSynchronized(tb),
		metrics:    metrics.NewRegistry("replica"),
	}

	s.metrics.Gauge(metrics.TuplesStored, func() float64 {
		return float64(s.store.Size())
	})
	s.transport.RegisterHandler(s.handleConnection)

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())
	return s, nil
}

// Listen opens the endpoint of the server and returns its address
func (s *RPCServer) Listen() (net.Addr, error) {
	return s.transport.Listen(s.config.Endpoint, s.config.Transport)
}

// Serve accepts connections until ctx is done or Close is called. Listen must have
// been called before.
func (s *RPCServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.transport.Serve(gctx)
	})

	if s.config.MetricsEndpoint != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, s.config.MetricsEndpoint, s.config.LogLevel == "debug", nil, s.metrics)
		})
	}

	return g.Wait()
}

// Close stops the server and closes all connections
func (s *RPCServer) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return s.transport.Close()
}

// Store returns the tuple store of the replica
func (s *RPCServer) Store() table.TupleStore {
	return s.store
}

// Metrics returns the metric registry of the replica
func (s *RPCServer) Metrics() *metrics.Registry {
	return s.metrics
}

// handleConnection serves the requests of one peer until it quits or disconnects
func (s *RPCServer) handleConnection(_ context.Context, conn net.Conn) {
	maxFrame := s.config.Transport.MaxFrame()

	for {
		req, err := transport.ReceiveMessage(conn, s.serializer, maxFrame)
		if err != nil {
			if !transport.StreamIntact(err) {
				if !errors.Is(err, io.EOF) {
					Logger.Warningf("Dropping connection from %s: %v", conn.RemoteAddr(), err)
				}
				return
			}
			s.metrics.Inc(metrics.MalformedTotal)
			Logger.Warningf("Malformed message from %s: %v", conn.RemoteAddr(), err)
			if err := transport.SendMessage(conn, s.serializer, common.NewErrorResponse()); err != nil {
				return
			}
			continue
		}

		op := req.OpCode.Label()
		s.metrics.Inc(metrics.RequestsTotal, "op", op)

		if req.OpCode == common.OpQuit {
			_ = transport.SendMessage(conn, s.serializer, common.NewResultResponse(common.OpQuit, 0))
			return
		}

		start := time.Now()
		resp := s.adapter.Handle(req, s.store)
		s.metrics.ObserveSince(metrics.RequestDuration, start, "op", op)
		if !resp.Succeeded() {
			s.metrics.Inc(metrics.ErrorsTotal, "op", op)
		}

		if err := transport.SendMessage(conn, s.serializer, resp); err != nil {
			Logger.Warningf("Failed to answer %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}
