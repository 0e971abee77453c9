package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

var (
	// ErrRequestFailed is returned when the server answered with an ERROR response
	ErrRequestFailed = errors.New("client: request failed")
	// ErrUnexpectedResponse is returned when the response does not answer the request
	ErrUnexpectedResponse = errors.New("client: unexpected response")
)

// rpcClientAdapter stores all data needed by an RPC client implementation
type rpcClientAdapter struct {
	config common.ClientConfig
	conn   *base.Conn
}

// invokeRPCRequest sends a request over the managed connection and returns the
// response. Connection failures are retried within the retry budget of the connection.
// It also checks that the response is not an error response and answers the request.
func (a *rpcClientAdapter) invokeRPCRequest(ctx context.Context, req *common.Message) (*common.Message, error) {
	resp, err := a.conn.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	// Check if the response is an error response
	if !resp.Succeeded() {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, req.OpCode)
	}

	// Check if the type of the response is the expected type
	if resp.OpCode != req.OpCode.Response() {
		return nil, fmt.Errorf("%w: %s, expected %s", ErrUnexpectedResponse, resp.OpCode, req.OpCode.Response())
	}
	return resp, nil
}

// checkDimension rejects tuples the server would refuse anyway
func (a *rpcClientAdapter) checkDimension(t *tuple.Tuple) error {
	if t == nil {
		return tuple.ErrNullInput
	}
	if a.config.Dimension > 0 && t.Dim() != a.config.Dimension {
		return fmt.Errorf("%w: got %d elements, want %d", tuple.ErrInvalidArity, t.Dim(), a.config.Dimension)
	}
	return nil
}
