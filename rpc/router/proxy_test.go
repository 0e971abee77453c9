package router

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/metrics"
	"github.com/ValentinKolb/dTS/rpc/transport/base"
	"github.com/ValentinKolb/dTS/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProxy(t *testing.T, endpoint string, size int) *proxy {
	t.Helper()
	conn := base.NewConn(tcp.NewTCPClientTransport(), testSerializer, endpoint, common.TransportConfig{}, base.ConnOptions{
		RetryBudget:   1,
		RetryInterval: 10 * time.Millisecond,
	})
	reg := metrics.NewRegistry("proxy-test")
	return newProxy(NewReplica(0, conn, reg), reg, size)
}

// TestProxyInboxBound fills the inbox of a proxy whose worker is not running
func TestProxyInboxBound(t *testing.T) {
	p := newTestProxy(t, silentReplica(t), 2)

	for i := 0; i < 2; i++ {
		p.Enqueue(context.Background(), NewRequest(outMsg, WaitAll, 1))
	}
	assert.Equal(t, 2, p.Len())

	// a full inbox holds the request back until its deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := NewRequest(outMsg, WaitAll, 1)
	start := time.Now()
	p.Enqueue(ctx, req)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 2, p.Len())

	resp, err := req.Wait(context.Background())
	assert.ErrorIs(t, err, ErrInboxFull)
	assert.Equal(t, common.OpError, resp.OpCode)

	// a waiting producer is released by shutdown
	blocked := NewRequest(outMsg, WaitAll, 1)
	done := make(chan struct{})
	go func() {
		p.Enqueue(context.Background(), blocked)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("enqueue into a full inbox returned early")
	case <-time.After(20 * time.Millisecond):
	}

	p.shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue still blocked after shutdown")
	}
	_, err = blocked.Wait(context.Background())
	assert.ErrorIs(t, err, ErrShutdown)
	assert.Zero(t, p.Len())
}

func TestProxySkipsExpiredRequests(t *testing.T) {
	p := newTestProxy(t, silentReplica(t), 4)

	expired := NewRequest(outMsg, WaitAll, 1)
	expired.Deadline = time.Now().Add(-time.Millisecond)
	p.Enqueue(context.Background(), expired)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// the silent replica would never answer, so only a skipped request completes
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	_, err := expired.Wait(waitCtx)
	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.Zero(t, expired.Pending())
}

// TestStalledReplicaInboxStaysBounded sends writes through a switch with one healthy
// and one silent replica. The silent replica's inbox never grows past its size and
// drains once the requests expired. Writes the coordinator gave up on may be skipped
// by the healthy replica too, so only progress is checked there.
func TestStalledReplicaInboxStaysBounded(t *testing.T) {
	const (
		inbox   = 4
		workers = 8
		perLoop = 5
	)
	healthy, healthyAddr := startReplica(t)

	config := switchConfig(healthyAddr, silentReplica(t))
	config.RequestTimeout = 30 * time.Millisecond
	config.InboxSize = inbox
	sw, _ := startSwitch(t, config)
	stalled := sw.proxies[1]

	var maxLen atomic.Int32
	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			if n := int32(stalled.Len()); n > maxLen.Load() {
				maxLen.Store(n)
			}
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()

	var failed atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perLoop; i++ {
				tp := tuple.MustOf(tuple.Val("k"), tuple.Val(strconv.Itoa(w*perLoop+i)), nil)
				if resp := sw.Dispatch(context.Background(), common.NewOutRequest(tp)); resp.OpCode == common.OpError {
					failed.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	<-sampled

	assert.Equal(t, int32(workers*perLoop), failed.Load(), "writes cannot succeed without the silent replica")
	assert.LessOrEqual(t, maxLen.Load(), int32(inbox))
	assert.Positive(t, healthy.Store().Size())

	require.Eventually(t, func() bool { return stalled.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	// reads are still answered by the healthy replica
	resp := sw.Dispatch(context.Background(), common.NewSizeRequest())
	assert.Equal(t, common.OpSize.Response(), resp.OpCode)
}
