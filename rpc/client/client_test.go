package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/client"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/ValentinKolb/dTS/rpc/server"
	"github.com/ValentinKolb/dTS/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startReplica(t *testing.T, s serializer.IRPCSerializer) string {
	t.Helper()
	srv, err := server.NewRPCServer(common.ServerConfig{
		Endpoint:  "127.0.0.1:0",
		Slots:     16,
		Dimension: 3,
	}, tcp.NewTCPServerTransport(), s)
	require.NoError(t, err)

	addr, err := srv.Listen()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = srv.Serve(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
		<-done
	})
	return addr.String()
}

func newClient(t *testing.T, endpoint string, s serializer.IRPCSerializer) client.ITupleSpace {
	t.Helper()
	ts, err := client.NewRPCTupleSpace(context.Background(), common.ClientConfig{
		Endpoint:      endpoint,
		Dimension:     3,
		RetryCount:    2,
		RetryInterval: 10 * time.Millisecond,
	}, tcp.NewTCPClientTransport(), s)
	require.NoError(t, err)
	return ts
}

func TestTupleSpaceClient(t *testing.T) {
	for name, s := range map[string]serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer(),
		"json":   serializer.NewJSONSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ts := newClient(t, startReplica(t, s), s)
			defer ts.Close()

			x := func(v string) *tuple.Tuple { return tuple.MustOf(tuple.Val("x"), tuple.Val(v), nil) }
			tmpl := tuple.MustOf(tuple.Val("x"), nil, nil)

			require.NoError(t, ts.Out(ctx, x("1")))
			require.NoError(t, ts.Out(ctx, x("2")))
			require.NoError(t, ts.Out(ctx, tuple.MustOf(tuple.Val("y"), nil, tuple.Val("3"))))

			n, err := ts.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			got, err := ts.Copy(ctx, tmpl)
			require.NoError(t, err)
			assert.True(t, got.Equal(x("1")), "got %s", got)

			all, err := ts.CopyAll(ctx, tmpl)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			got, err = ts.In(ctx, tmpl)
			require.NoError(t, err)
			assert.True(t, got.Equal(x("1")))

			rest, err := ts.InAll(ctx, tuple.MustOf(nil, nil, nil))
			require.NoError(t, err)
			assert.Len(t, rest, 2)

			got, err = ts.Copy(ctx, tmpl)
			require.NoError(t, err)
			assert.Nil(t, got)

			n, err = ts.Size(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	s := serializer.NewBinarySerializer()
	ts := newClient(t, startReplica(t, s), s)
	defer ts.Close()

	// wrong dimension is rejected before sending
	err := ts.Out(ctx, tuple.MustOf(tuple.Val("a")))
	assert.ErrorIs(t, err, tuple.ErrInvalidArity)

	_, err = ts.CopyAll(ctx, nil)
	assert.ErrorIs(t, err, tuple.ErrNullInput)

	// the replica refuses a tuple without key
	err = ts.Out(ctx, tuple.MustOf(nil, tuple.Val("b"), tuple.Val("c")))
	assert.ErrorIs(t, err, client.ErrRequestFailed)

	// the connection is still usable
	n, err := ts.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClientConnectFails(t *testing.T) {
	_, err := client.NewRPCTupleSpace(context.Background(), common.ClientConfig{
		Endpoint: "127.0.0.1:1",
	}, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
	assert.Error(t, err)
}
