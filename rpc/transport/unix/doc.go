// Package unix provides the Unix domain socket connectors for the base transport.
// The endpoint is the socket path; an existing file at that path is removed before
// listening.
package unix
