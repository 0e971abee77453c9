package server

import (
	"fmt"

	"github.com/ValentinKolb/dTS/lib/table"
	"github.com/ValentinKolb/dTS/rpc/common"
)

// NewTableServerAdapter creates the adapter executing tuple space requests. If
// dimension is positive, tuples and templates of any other dimension are rejected.
func NewTableServerAdapter(dimension int) IRPCServerAdapter {
	return &tableServerAdapterImpl{dimension: dimension}
}

type tableServerAdapterImpl struct {
	dimension int
}

func (adapter *tableServerAdapterImpl) Handle(req *common.Message, store table.TupleStore) *common.Message {
	// Check for nil store
	if store == nil {
		Logger.Errorf("handler: store is nil")
		return common.NewErrorResponse()
	}

	if err := adapter.check(req); err != nil {
		Logger.Warningf("Rejecting request %s: %v", req, err)
		return common.NewErrorResponse()
	}

	// Handle different operations
	switch req.OpCode {
	case common.OpSize:
		return common.NewResultResponse(req.OpCode, int32(store.Size()))
	case common.OpOut:
		if err := store.Put(req.Tuple); err != nil {
			Logger.Warningf("Failed to store %s: %v", req.Tuple, err)
			return common.NewErrorResponse()
		}
		return common.NewResultResponse(req.OpCode, 0)
	case common.OpIn:
		return adapter.get(req, store, table.Remove, table.One)
	case common.OpInAll:
		return adapter.get(req, store, table.Remove, table.All)
	case common.OpCopy:
		return adapter.get(req, store, table.Keep, table.One)
	case common.OpCopyAll:
		return adapter.get(req, store, table.Keep, table.All)
	default:
		Logger.Warningf("Unsupported operation: %s", req.OpCode)
		return common.NewErrorResponse()
	}
}

func (adapter *tableServerAdapterImpl) get(req *common.Message, store table.TupleStore, mode table.Mode, scope table.Scope) *common.Message {
	tuples, err := store.Get(req.Tuple, mode, scope)
	if err != nil {
		Logger.Warningf("Failed to query %s (%s, %s): %v", req.Tuple, mode, scope, err)
		return common.NewErrorResponse()
	}
	return common.NewTuplesResponse(req.OpCode, tuples)
}

func (adapter *tableServerAdapterImpl) check(req *common.Message) error {
	if err := req.CheckRequest(); err != nil {
		return err
	}
	if adapter.dimension > 0 && req.CType == common.CTTuple && req.Tuple.Dim() != adapter.dimension {
		return fmt.Errorf("tuple has dimension %d, store expects %d", req.Tuple.Dim(), adapter.dimension)
	}
	return nil
}
