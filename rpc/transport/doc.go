// Package transport implements the framed byte stream shared by clients, the switch
// and the replicas, together with the interfaces of the listening and dialing sides.
//
// Wire framing:
//
//	[frameLength:int32 big endian][message bytes]
//
// The frame length must satisfy 0 < frameLength <= MaxMessageSize. ReceiveMessage checks
// the length before allocating anything, so a hostile or corrupted peer cannot make the
// receiver allocate large buffers.
//
// Errors:
//
//   - ErrConnectionBroken: any read or write failure (interrupted system calls are
//     retried). Returned as *IOError carrying the number of transferred bytes.
//   - ErrFrameSize: the length prefix is out of range. The stream is out of sync.
//   - serializer.ErrMalformedMessage: the frame was read completely but could not be
//     decoded. The connection can be used for the next frame (see StreamIntact).
//
// Key Components:
//
//   - IRPCServerTransport: Listens on an endpoint and runs a ConnHandler per connection.
//   - IRPCClientTransport: Dials an endpoint and tunes the new connection.
//
// Implementations live in the base package (protocol independent part) and the tcp and
// unix packages (connectors).
package transport
