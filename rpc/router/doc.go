// Package router implements the switch: the routing tier between the clients and the
// replicas of the tuple space.
//
// Data flow:
//
//	client --frame--> coordinator (one goroutine per client connection)
//	                      |  NewRequest + Enqueue into the proxies of the target replicas
//	                      v
//	                  proxy worker (one goroutine per replica) --frame--> replica
//	                      |  Request.Ack
//	                      v
//	                  coordinator wakes up and answers the client
//
// Fan-out and fan-in:
//
//   - Write operations (OUT, IN, IN_ALL) go to every replica. The client gets the
//     first reply if every replica succeeded, ERROR/-1 otherwise. Replicas that
//     already applied the write are not rolled back.
//   - Read operations (SIZE, COPY, COPY_ALL) go to the replica selected by
//     ReadAffinity, or to every replica when it is NoReadAffinity. The first
//     successful reply is returned, ERROR/-1 if all contacted replicas fail.
//   - QUIT is answered with QUIT+1/RESULT 0 and ends the session. Unknown op codes
//     and malformed frames are answered with ERROR/-1, the session continues as long
//     as the byte stream is intact.
//
// Every request is handed to all its proxies under one lock, so all replicas receive
// the writes in the same order. A Request is acknowledged exactly once per contacted
// replica and wakes its coordinator exactly once. The coordinator waits at most
// RequestTimeout (if set) and answers ERROR/-1 on expiry; later replies are dropped.
//
// Replica connections reconnect with a per replica retry budget (see transport/base).
// A replica whose budget is exhausted fails every request immediately until
// Switch.EnableReplica is called.
package router
