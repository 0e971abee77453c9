package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxMessageSize bounds the length prefix accepted by ReceiveMessage.
const DefaultMaxMessageSize = 64 * 1024

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds settings applied to every socket.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds settings only applied to TCP connections.
// The zero value keeps the system defaults (Nagle's algorithm off, OS linger).
type TCPConf struct {
	// TCPDelay enables Nagle's algorithm
	TCPDelay        bool
	TCPKeepAliveSec int
	// TCPLingerSec sets SO_LINGER when positive
	TCPLingerSec int
}

// TransportConfig holds the settings of one framed connection or listener.
type TransportConfig struct {
	SocketConf
	TCPConf

	// MaxMessageSize is the largest frame accepted from a peer
	MaxMessageSize int
	// TimeoutSecond bounds a single read or write, zero disables the deadline
	TimeoutSecond int
}

// MaxFrame returns the configured maximum frame size or the default.
func (c TransportConfig) MaxFrame() int {
	if c.MaxMessageSize <= 0 {
		return DefaultMaxMessageSize
	}
	return c.MaxMessageSize
}

// IOTimeout returns the per operation deadline, zero if disabled.
func (c TransportConfig) IOTimeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

func (c TransportConfig) addFields(addField func(name, value string)) {
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxFrame()))
	addField("IO Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("TCP Delay (Nagle)", strconv.FormatBool(c.TCPDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))
}

// --------------------------------------------------------------------------
// Replica server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of a replica server.
type ServerConfig struct {
	// Endpoint the server listens on (host:port or socket path)
	Endpoint  string
	Transport TransportConfig

	// Tuple store parameters
	Slots     int
	Dimension int

	// MetricsEndpoint serves /metrics when not empty
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	sb, addSection, addField := newRenderer()

	addSection("Replica Server")
	addField("Endpoint", c.Endpoint)
	addField("Metrics Endpoint", orNone(c.MetricsEndpoint))

	addSection("Tuple Store")
	addField("Slots", strconv.Itoa(c.Slots))
	addField("Dimension", strconv.Itoa(c.Dimension))

	addSection("Transport")
	c.Transport.addFields(addField)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Switch configuration struct
// --------------------------------------------------------------------------

// NoReadAffinity makes read operations go to every replica, first reply wins.
const NoReadAffinity = -1

// DefaultInboxSize is the number of requests queued per replica when
// SwitchConfig.InboxSize is not set.
const DefaultInboxSize = 10

// SwitchConfig holds the configuration of the request switch.
type SwitchConfig struct {
	// Endpoint the switch listens on for clients
	Endpoint string
	// Replicas are the endpoints of the backend replicas, in replica id order
	Replicas  []string
	Transport TransportConfig

	// ReadAffinity is the index of the replica serving reads, NoReadAffinity for all
	ReadAffinity int
	// RetryBudget is the number of reconnect attempts per outage of one replica
	RetryBudget int
	// RetryInterval is the pause between reconnect attempts
	RetryInterval time.Duration
	// RequestTimeout bounds the wait for replica acknowledgements, zero waits forever
	RequestTimeout time.Duration
	// InboxSize bounds the requests queued for one replica, zero uses DefaultInboxSize
	InboxSize int

	// MetricsEndpoint serves /metrics when not empty
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *SwitchConfig) String() string {
	sb, addSection, addField := newRenderer()

	addSection("Switch")
	addField("Endpoint", c.Endpoint)
	addField("Metrics Endpoint", orNone(c.MetricsEndpoint))
	addField("Request Timeout", durationOrNone(c.RequestTimeout))

	addSection("Replicas")
	for i, endpoint := range c.Replicas {
		addField(strconv.Itoa(i), endpoint)
	}
	if c.ReadAffinity == NoReadAffinity {
		addField("Read Affinity", "all (first reply wins)")
	} else {
		addField("Read Affinity", strconv.Itoa(c.ReadAffinity))
	}
	addField("Retry Budget", strconv.Itoa(c.RetryBudget))
	addField("Retry Interval", c.RetryInterval.String())
	addField("Inbox Size", strconv.Itoa(c.Inbox()))

	addSection("Transport")
	c.Transport.addFields(addField)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// Validate checks the parts of the configuration the switch cannot run without.
func (c *SwitchConfig) Validate() error {
	if len(c.Replicas) == 0 {
		return fmt.Errorf("at least one replica is required")
	}
	if c.ReadAffinity < NoReadAffinity || c.ReadAffinity >= len(c.Replicas) {
		return fmt.Errorf("read affinity %d out of range [-1, %d)", c.ReadAffinity, len(c.Replicas))
	}
	if c.RetryBudget < 0 {
		return fmt.Errorf("retry budget must not be negative")
	}
	if c.InboxSize < 0 {
		return fmt.Errorf("inbox size must not be negative")
	}
	return nil
}

// Inbox returns the configured inbox size or the default.
func (c *SwitchConfig) Inbox() int {
	if c.InboxSize <= 0 {
		return DefaultInboxSize
	}
	return c.InboxSize
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a client talking to a switch (or directly
// to a replica).
type ClientConfig struct {
	Endpoint  string
	Transport TransportConfig

	Dimension     int
	RetryCount    int
	RetryInterval time.Duration
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	sb, addSection, addField := newRenderer()

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Dimension", strconv.Itoa(c.Dimension))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Retry Interval", c.RetryInterval.String())

	addSection("Transport")
	c.Transport.addFields(addField)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func newRenderer() (*strings.Builder, func(string), func(string, string)) {
	sb := &strings.Builder{}

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	return sb, addSection, addField
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func durationOrNone(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
