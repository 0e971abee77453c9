// Package base provides the protocol independent part of the transports. It is extended
// with protocol-specific connectors (see the tcp and unix packages).
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dial, listen, socket tuning).
//
//   - serverTransport: Accepts connections and runs the registered handler in one
//     goroutine per connection. Open connections are tracked so that Close can end
//     them, and Serve waits for every handler before it returns.
//
//   - Conn: A request/response connection to a single endpoint that reconnects on
//     failure. Reconnect attempts are paced by a rate limiter and bounded by a retry
//     budget owned by the Conn. After the budget is exhausted the Conn is disabled
//     until Enable is called; ResetRetryBudget refills it after each successful round
//     trip. The router uses one Conn per replica, the client stub one per switch.
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use. Round trips on a Conn are
//	serialized by its mutex.
package base
