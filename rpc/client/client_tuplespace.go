package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/ValentinKolb/dTS/rpc/common"
	"github.com/ValentinKolb/dTS/rpc/serializer"
	"github.com/ValentinKolb/dTS/rpc/transport"
	"github.com/ValentinKolb/dTS/rpc/transport/base"
)

// ITupleSpace is the client view of a tuple space
type ITupleSpace interface {
	// Out inserts t
	Out(ctx context.Context, t *tuple.Tuple) error
	// In removes and returns one tuple matching template, nil if there is none
	In(ctx context.Context, template *tuple.Tuple) (*tuple.Tuple, error)
	// InAll removes and returns every tuple matching template
	InAll(ctx context.Context, template *tuple.Tuple) ([]*tuple.Tuple, error)
	// Copy returns one tuple matching template without removing it, nil if there is none
	Copy(ctx context.Context, template *tuple.Tuple) (*tuple.Tuple, error)
	// CopyAll returns every tuple matching template without removing them
	CopyAll(ctx context.Context, template *tuple.Tuple) ([]*tuple.Tuple, error)
	// Size returns the number of stored tuples
	Size(ctx context.Context) (int, error)
	// Close sends QUIT and closes the connection
	Close() error
}

// NewRPCTupleSpace connects to a switch (or a single replica) and returns a client for
// the tuple space behind it.
func NewRPCTupleSpace(
	ctx context.Context,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (ITupleSpace, error) {
	conn := base.NewConn(transport, serializer, config.Endpoint, config.Transport, base.ConnOptions{
		RetryBudget:   config.RetryCount,
		RetryInterval: config.RetryInterval,
	})

	// Connect the transport
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	return &rpcTupleSpace{
		rpcClientAdapter{
			config: config,
			conn:   conn,
		},
	}, nil
}

type rpcTupleSpace struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ITupleSpace)
// --------------------------------------------------------------------------

func (c *rpcTupleSpace) Out(ctx context.Context, t *tuple.Tuple) error {
	if err := c.checkDimension(t); err != nil {
		return err
	}
	_, err := c.invokeRPCRequest(ctx, common.NewOutRequest(t))
	return err
}

func (c *rpcTupleSpace) In(ctx context.Context, template *tuple.Tuple) (*tuple.Tuple, error) {
	return c.one(ctx, common.NewInRequest(template))
}

func (c *rpcTupleSpace) InAll(ctx context.Context, template *tuple.Tuple) ([]*tuple.Tuple, error) {
	return c.all(ctx, common.NewInAllRequest(template))
}

func (c *rpcTupleSpace) Copy(ctx context.Context, template *tuple.Tuple) (*tuple.Tuple, error) {
	return c.one(ctx, common.NewCopyRequest(template))
}

func (c *rpcTupleSpace) CopyAll(ctx context.Context, template *tuple.Tuple) ([]*tuple.Tuple, error) {
	return c.all(ctx, common.NewCopyAllRequest(template))
}

func (c *rpcTupleSpace) Size(ctx context.Context) (int, error) {
	resp, err := c.invokeRPCRequest(ctx, common.NewSizeRequest())
	if err != nil {
		return 0, err
	}
	if resp.CType != common.CTResult {
		return 0, fmt.Errorf("%w: size answered with %s", ErrUnexpectedResponse, resp.CType)
	}
	return int(resp.Result), nil
}

func (c *rpcTupleSpace) Close() error {
	// the server closes the connection after QUIT, the reply does not matter
	if _, err := c.conn.RoundTrip(context.Background(), common.NewQuitRequest()); err != nil {
		Logger.Debugf("QUIT to %s failed: %v", c.conn.Endpoint(), err)
	}
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *rpcTupleSpace) one(ctx context.Context, req *common.Message) (*tuple.Tuple, error) {
	tuples, err := c.all(ctx, req)
	if err != nil || len(tuples) == 0 {
		return nil, err
	}
	if len(tuples) > 1 {
		return nil, fmt.Errorf("%w: %s answered with %d tuples", ErrUnexpectedResponse, req.OpCode, len(tuples))
	}
	return tuples[0], nil
}

func (c *rpcTupleSpace) all(ctx context.Context, req *common.Message) ([]*tuple.Tuple, error) {
	if err := c.checkDimension(req.Tuple); err != nil {
		return nil, err
	}

	resp, err := c.invokeRPCRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.CType != common.CTTuples {
		return nil, fmt.Errorf("%w: %s answered with %s", ErrUnexpectedResponse, req.OpCode, resp.CType)
	}
	return resp.Tuples, nil
}
