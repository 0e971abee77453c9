package server

import (
	"github.com/ValentinKolb/dTS/lib/table"
	"github.com/ValentinKolb/dTS/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle executes a request against the store and returns the response.
	// Failures are reported as an ERROR response, never as a nil response.
	Handle(req *common.Message, store table.TupleStore) (resp *common.Message)
}
