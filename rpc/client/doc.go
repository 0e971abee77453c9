// Package client implements the RPC client of the tuple space. It talks to a switch
// (or directly to a single replica) over the framed transport.
//
// Key Components:
//
//   - ITupleSpace: The client interface (Out, In, InAll, Copy, CopyAll, Size, Close).
//
//   - NewRPCTupleSpace: Factory function that connects to the configured endpoint and
//     returns an ITupleSpace. Requests use a managed connection (transport/base.Conn)
//     that reconnects and retransmits after connection failures, within the configured
//     retry count.
//
// Errors:
//
//   - ErrRequestFailed: the server answered with ERROR/-1 (for a switch: at least one
//     replica failed a write, or all contacted replicas failed a read).
//   - ErrUnexpectedResponse: the response does not answer the request.
//   - tuple.ErrInvalidArity: the tuple does not have the configured dimension.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		Endpoint:      "localhost:9000",
//		Dimension:     3,
//		RetryCount:    3,
//		RetryInterval: time.Second,
//	}
//
//	ts, err := client.NewRPCTupleSpace(ctx, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//		return err
//	}
//	defer ts.Close()
//
//	_ = ts.Out(ctx, tuple.MustOf(tuple.Val("a"), tuple.Val("b"), tuple.Val("c")))
//	t, _ := ts.Copy(ctx, tuple.MustOf(tuple.Val("a"), nil, nil))
//
// Note that a retransmitted write may be applied twice if the connection broke after
// the server received the request but before the reply arrived.
//
// Thread Safety:
//
//	All client implementations are thread-safe. Requests on one client are serialized.
package client
