package base_test

import (
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/ValentinKolb/dTS/rpc/transport"
	"github.com/ValentinKolb/dTS/rpc/transport/base"
	"github.com/ValentinKolb/dTS/rpc/transport/tcp"
	"github.com/ValentinKolb/dTS/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = common.TransportConfig{
	MaxMessageSize: common.DefaultMaxMessageSize,
}

// sizeServer answers every request with a SIZE response carrying the number of
// requests it has seen on all connections
func sizeServer(t *testing.T, srv transport.IRPCServerTransport, endpoint string) (string, *atomic.Int32, context.CancelFunc) {
	t.Helper()
	s := serializer.NewBinarySerializer()
	var seen atomic.Int32

	srv.RegisterHandler(func(ctx context.Context, conn net.Conn) {
		for {
			req, err := transport.ReceiveMessage(conn, s, testConfig.MaxFrame())
			if err != nil {
				return
			}
			n := seen.Add(1)
			if err := transport.SendMessage(conn, s, common.NewResultResponse(req.OpCode, n)); err != nil {
				return
			}
		}
	})

	addr, err := srv.Listen(endpoint, testConfig)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx)
		close(done)
	}()

	stop := func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	}
	t.Cleanup(stop)
	return addr.String(), &seen, stop
}

func newConn(tr transport.IRPCClientTransport, endpoint string, budget int) *base.Conn {
	return base.NewConn(tr, serializer.NewBinarySerializer(), endpoint, testConfig, base.ConnOptions{
		RetryBudget:   budget,
		RetryInterval: 10 * time.Millisecond,
	})
}

func TestRoundTripTCP(t *testing.T) {
	addr, seen, _ := sizeServer(t, tcp.NewTCPServerTransport(), "127.0.0.1:0")
	c := newConn(tcp.NewTCPClientTransport(), addr, 3)
	defer c.Close()

	for i := int32(1); i <= 3; i++ {
		resp, err := c.Do(context.Background(), common.NewSizeRequest())
		require.NoError(t, err)
		assert.Equal(t, common.OpSize.Response(), resp.OpCode)
		assert.Equal(t, i, resp.Result)
	}
	assert.Equal(t, int32(3), seen.Load())
}

func TestRoundTripUnix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dts.sock")
	addr, _, _ := sizeServer(t, unix.NewUnixServerTransport(), path)
	c := newConn(unix.NewUnixClientTransport(), addr, 1)
	defer c.Close()

	resp, err := c.Do(context.Background(), common.NewSizeRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), resp.Result)
}

// TestRoundTripLatency runs request/response ping-pong over TCP with a zero transport
// configuration. Delayed ACKs interacting with Nagle's algorithm would cost about 40ms
// per round trip.
func TestRoundTripLatency(t *testing.T) {
	srv := tcp.NewTCPServerTransport()
	s := serializer.NewBinarySerializer()
	srv.RegisterHandler(func(ctx context.Context, conn net.Conn) {
		for {
			req, err := transport.ReceiveMessage(conn, s, common.DefaultMaxMessageSize)
			if err != nil {
				return
			}
			if err := transport.SendMessage(conn, s, common.NewResultResponse(req.OpCode, 0)); err != nil {
				return
			}
		}
	})
	addr, err := srv.Listen("127.0.0.1:0", common.TransportConfig{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	c := base.NewConn(tcp.NewTCPClientTransport(), s, addr.String(), common.TransportConfig{}, base.ConnOptions{})
	defer c.Close()

	const rounds = 50
	start := time.Now()
	for i := 0; i < rounds; i++ {
		_, err := c.Do(context.Background(), common.NewSizeRequest())
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), rounds*20*time.Millisecond, "round trips are stalled")
}

func TestConnectFailedAndBudget(t *testing.T) {
	// reserve a port and close it again, nobody listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := newConn(tcp.NewTCPClientTransport(), addr, 2)

	_, err = c.RoundTrip(context.Background(), common.NewSizeRequest())
	assert.ErrorIs(t, err, base.ErrConnectFailed)

	// the retry budget is spent by ShouldRetransmit, then the connection is disabled
	assert.False(t, c.ShouldRetransmit(context.Background(), err))
	assert.True(t, c.Disabled())

	_, err = c.Do(context.Background(), common.NewSizeRequest())
	assert.ErrorIs(t, err, base.ErrReconnectFailed)

	err = c.Reconnect(context.Background())
	assert.ErrorIs(t, err, base.ErrReconnectFailed)

	c.Enable()
	assert.False(t, c.Disabled())
}

func TestReconnectAfterServerRestart(t *testing.T) {
	srv := tcp.NewTCPServerTransport()
	addr, _, stop := sizeServer(t, srv, "127.0.0.1:0")

	c := newConn(tcp.NewTCPClientTransport(), addr, 50)
	defer c.Close()
	_, err := c.Do(context.Background(), common.NewSizeRequest())
	require.NoError(t, err)

	// restart on the same address
	stop()
	sizeServer(t, tcp.NewTCPServerTransport(), addr)

	resp, err := c.Do(context.Background(), common.NewSizeRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), resp.Result, "request must reach the new server")
	assert.False(t, c.Disabled())
}

func TestShouldRetransmitIgnoresMalformed(t *testing.T) {
	c := newConn(tcp.NewTCPClientTransport(), "127.0.0.1:1", 3)
	assert.False(t, c.ShouldRetransmit(context.Background(), serializer.ErrMalformedMessage))
	assert.False(t, c.ShouldRetransmit(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, c.ShouldRetransmit(ctx, transport.ErrConnectionBroken))

	// a request past its deadline is not retried and spends no budget
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancelExpired()
	assert.False(t, c.ShouldRetransmit(expired, transport.ErrConnectionBroken))
	assert.False(t, c.Disabled())
}

func TestServerCloseEndsHandlers(t *testing.T) {
	srv := tcp.NewTCPServerTransport()
	addr, _, _ := sizeServer(t, srv, "127.0.0.1:0")

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, srv.Close())

	// the server closed our connection
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = transport.ReceiveMessage(conn, serializer.NewBinarySerializer(), 64)
	assert.ErrorIs(t, err, transport.ErrConnectionBroken)
}
