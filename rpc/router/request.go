package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dTS/lib/monitor"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/google/uuid"
)

var errNoReplica = errors.New("no replica contacted")

// FanIn decides how the replies of the contacted replicas form the client response
type FanIn int

const (
	// WaitAll answers after every replica replied. The response is the first
	// successful reply if all replicas succeeded, an ERROR response otherwise.
	WaitAll FanIn = iota
	// FirstWins answers with the first successful reply. If every replica fails the
	// response is an ERROR response.
	FirstWins
)

func (f FanIn) String() string {
	if f == WaitAll {
		return "wait-all"
	}
	return "first-wins"
}

// Request is the routing record shared by the coordinator that received a client
// message and the proxies it was handed to. All fields below mon are only accessed
// through mon.
type Request struct {
	ID      uuid.UUID
	Message *common.Message
	FanIn   FanIn
	// Deadline is the point the coordinator stops waiting, zero for no limit. It is set
	// before the request is handed to the proxies and not changed afterwards.
	Deadline time.Time

	mon      *monitor.Monitor
	pending  int
	failed   int
	answered bool
	response *common.Message
	errs     []error
}

// NewRequest creates a routing record for msg sent to fanOut replicas
func NewRequest(msg *common.Message, fanIn FanIn, fanOut int) *Request {
	return &Request{
		ID:       uuid.New(),
		Message:  msg,
		FanIn:    fanIn,
		mon:      monitor.New(),
		pending:  fanOut,
		answered: fanOut <= 0,
	}
}

// Ack records the outcome of one replica. A reply counts as successful if it is the
// response to the request's operation. The coordinator is woken exactly once, when the
// fan-in policy allows an answer.
func (r *Request) Ack(replicaID int, resp *common.Message, err error) {
	if err == nil {
		if !resp.Succeeded() {
			err = fmt.Errorf("replica %d replied %s", replicaID, resp)
		} else if resp.OpCode != r.Message.OpCode.Response() {
			err = fmt.Errorf("%w: replica %d replied %s to %s", ErrUnexpectedReply, replicaID, resp.OpCode, r.Message.OpCode)
		}
	}

	var wake bool
	r.mon.Do(func() {
		if r.pending == 0 {
			Logger.Errorf("Request %s acknowledged more often than it was sent", r.ID)
			return
		}
		r.pending--

		if err != nil {
			r.failed++
			r.errs = append(r.errs, fmt.Errorf("replica %d: %w", replicaID, err))
		} else if r.response == nil {
			r.response = resp
		}

		if r.answered {
			return
		}

		switch r.FanIn {
		case WaitAll:
			r.answered = r.pending == 0
		case FirstWins:
			r.answered = r.pending == 0 || (err == nil && r.response == resp)
		}
		wake = r.answered
	})

	if wake {
		r.mon.Signal(nil)
	}
}

// Wait blocks until the request is answered or ctx is done and returns the response
// for the client. On failure the returned error describes the failed replicas; the
// response is an ERROR response in every failure case.
func (r *Request) Wait(ctx context.Context) (*common.Message, error) {
	var (
		resp *common.Message
		err  error
	)

	werr := r.mon.WaitContext(ctx, func() bool { return r.answered }, func() {
		switch {
		case r.FanIn == WaitAll && r.failed > 0:
			err = errors.Join(r.errs...)
		case r.response == nil:
			err = errors.Join(r.errs...)
			if err == nil {
				err = errNoReplica
			}
		default:
			resp = r.response
		}
	})
	if werr != nil {
		return common.NewErrorResponse(), fmt.Errorf("%w: %w", ErrRequestTimeout, werr)
	}
	if err != nil {
		return common.NewErrorResponse(), err
	}
	return resp, nil
}

// Context derives the context a proxy forwards the request with. It ends at the
// request deadline.
func (r *Request) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if r.Deadline.IsZero() {
		return context.WithCancel(parent)
	}
	return context.WithDeadline(parent, r.Deadline)
}

// Expired reports whether the coordinator has already given up on the request
func (r *Request) Expired(now time.Time) bool {
	return !r.Deadline.IsZero() && !now.Before(r.Deadline)
}

// Answered reports whether the coordinator has been woken
func (r *Request) Answered() bool {
	var answered bool
	r.mon.Do(func() { answered = r.answered })
	return answered
}

// Pending returns the number of replicas that have not acknowledged yet
func (r *Request) Pending() int {
	var n int
	r.mon.Do(func() { n = r.pending })
	return n
}
