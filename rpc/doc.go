// Package rpc provides the communication layer of the tuple space: the message
// protocol spoken between clients, the switch and the replicas, and the processes
// built on top of it.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - serializer: Message serialization (binary wire format, JSON for debugging)
//     for converting between Message objects and byte arrays.
//
//   - transport: Length prefixed framing over byte streams with pluggable
//     connectors (TCP, Unix sockets) and a reconnecting client connection.
//
//   - router: The switch. It fans client requests out to the replicas and fans
//     their replies back in.
//
//   - server: The replica server executing requests against a tuple store.
//
//   - client: The tuple space client used by the CLI and by applications.
//
//   - metrics: Counters and latency histograms of the switch and the replicas,
//     exposed in the Prometheus text format.
package rpc
