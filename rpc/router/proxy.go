package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dTS/lib/monitor"
	"github.com/ValentinKolb/dTS/rpc/metrics"
)

var errAnswered = errors.New("read already answered by another replica")

// proxy forwards the requests queued for one replica, one at a time and in queue order.
// The inbox is shared by all coordinators (producers) and the proxy's worker
// (consumer) and only accessed through mon. It holds at most size requests.
type proxy struct {
	replica *Replica
	metrics *metrics.Registry
	size    int

	mon    *monitor.Monitor
	inbox  []*Request
	closed bool
}

func newProxy(replica *Replica, reg *metrics.Registry, size int) *proxy {
	return &proxy{
		replica: replica,
		metrics: reg,
		size:    size,
		mon:     monitor.New(),
		inbox:   make([]*Request, 0, size),
	}
}

// Enqueue appends req to the inbox and wakes the worker. While the inbox is full it
// blocks until the worker makes room or ctx is done; in the latter case and for a
// stopped proxy the request is acknowledged as failed right away.
func (p *proxy) Enqueue(ctx context.Context, req *Request) {
	var rejected error
	err := p.mon.WaitContext(ctx, func() bool { return p.closed || len(p.inbox) < p.size }, func() {
		if p.closed {
			rejected = ErrShutdown
			return
		}
		p.inbox = append(p.inbox, req)
	})
	if err != nil {
		rejected = fmt.Errorf("%w: %w", ErrInboxFull, err)
		p.metrics.Inc(metrics.ReplicaFailsTotal, "replica", p.replica.label)
	}

	if rejected != nil {
		req.Ack(p.replica.ID(), nil, rejected)
		return
	}
	p.mon.Signal(nil)
}

// Len returns the number of queued requests
func (p *proxy) Len() int {
	var n int
	p.mon.Do(func() { n = len(p.inbox) })
	return n
}

// Run is the worker loop. It returns when ctx is done; requests still queued at that
// point are acknowledged as failed so no coordinator waits for them.
func (p *proxy) Run(ctx context.Context) error {
	id := p.replica.ID()
	Logger.Infof("Proxy for replica %d (%s) started", id, p.replica.Endpoint())

	defer p.shutdown()

	// a replica that is down now is retried with the first request
	if err := p.replica.Connect(ctx); err != nil {
		Logger.Warningf("Replica %d (%s) not reachable yet: %v", id, p.replica.Endpoint(), err)
	}

	for {
		var req *Request
		err := p.mon.WaitContext(ctx, func() bool { return len(p.inbox) > 0 }, func() {
			req = p.inbox[0]
			copy(p.inbox, p.inbox[1:])
			p.inbox[len(p.inbox)-1] = nil
			p.inbox = p.inbox[:len(p.inbox)-1]
		})
		if err != nil {
			Logger.Infof("Proxy for replica %d stopped", id)
			return nil
		}
		// wake coordinators waiting for room
		p.mon.Signal(nil)

		start := time.Now()
		if skip := p.skip(req, start); skip != nil {
			Logger.Debugf("Request %s not forwarded to replica %d: %v", req.ID, id, skip)
			req.Ack(id, nil, skip)
			continue
		}

		fctx, cancel := req.Context(ctx)
		resp, ferr := p.replica.Forward(fctx, req.Message)
		cancel()
		p.metrics.ObserveSince(metrics.RequestDuration, start, "replica", p.replica.label, "op", req.Message.OpCode.String())

		if ferr != nil {
			Logger.Warningf("Request %s (%s) failed on replica %d: %v", req.ID, req.Message.OpCode, id, ferr)
		} else {
			p.metrics.Inc(metrics.ReplicaAcksTotal, "replica", p.replica.label)
			Logger.Debugf("Request %s answered by replica %d: %s", req.ID, id, resp)
		}

		req.Ack(id, resp, ferr)
	}
}

// skip returns why req is no longer worth forwarding, nil if it is: the coordinator
// gave up on it, or it is a read another replica already answered.
func (p *proxy) skip(req *Request, now time.Time) error {
	if req.Expired(now) {
		p.metrics.Inc(metrics.TimeoutsTotal, "replica", p.replica.label)
		return ErrRequestTimeout
	}
	if !req.Message.OpCode.IsWrite() && req.Answered() {
		return errAnswered
	}
	return nil
}

// shutdown closes the inbox and fails everything still queued
func (p *proxy) shutdown() {
	var rest []*Request
	p.mon.Signal(func() {
		p.closed = true
		rest = p.inbox
		p.inbox = nil
	})

	for _, req := range rest {
		req.Ack(p.replica.ID(), nil, ErrShutdown)
	}
	_ = p.replica.Close()
}
