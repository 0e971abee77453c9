// Package tcp provides the TCP connectors for the base transport. Accepted and dialed
// connections are tuned with the socket options of common.TransportConfig
// (TCP_NODELAY, keep-alive, linger and socket buffer sizes).
package tcp
