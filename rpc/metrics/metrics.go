package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("metrics")

// Metric names shared by the switch and the replica server
const (
	RequestsTotal     = "dts_requests_total"
	ErrorsTotal       = "dts_errors_total"
	RequestDuration   = "dts_request_duration_seconds"
	ReplicaAcksTotal  = "dts_replica_acks_total"
	ReplicaFailsTotal = "dts_replica_failures_total"
	RetransmitsTotal  = "dts_retransmits_total"
	TimeoutsTotal     = "dts_request_timeouts_total"
	SessionsActive    = "dts_sessions_active"
	TuplesStored      = "dts_tuples_stored"
	MalformedTotal    = "dts_malformed_messages_total"
)

// Registry is the metric set of one component (switch, replica, ...). Every series
// carries a component label.
type Registry struct {
	component string
	set       *vm.Set
}

// NewRegistry creates an empty registry for the named component
func NewRegistry(component string) *Registry {
	return &Registry{
		component: component,
		set:       vm.NewSet(),
	}
}

// Component returns the component label of the registry
func (r *Registry) Component() string {
	return r.component
}

// Inc increments a counter. labels are key/value pairs.
func (r *Registry) Inc(metric string, labels ...string) {
	r.set.GetOrCreateCounter(r.name(metric, labels)).Inc()
}

// Add adds n to a counter
func (r *Registry) Add(metric string, n int, labels ...string) {
	r.set.GetOrCreateCounter(r.name(metric, labels)).Add(n)
}

// Count returns the current value of a counter
func (r *Registry) Count(metric string, labels ...string) uint64 {
	return r.set.GetOrCreateCounter(r.name(metric, labels)).Get()
}

// ObserveSince records the time elapsed since start in a histogram
func (r *Registry) ObserveSince(metric string, start time.Time, labels ...string) {
	r.set.GetOrCreateHistogram(r.name(metric, labels)).Update(time.Since(start).Seconds())
}

// Gauge registers a gauge whose value is read from f at scrape time. Registering the
// same series twice keeps the first function.
func (r *Registry) Gauge(metric string, f func() float64, labels ...string) {
	r.set.GetOrCreateGauge(r.name(metric, labels), f)
}

// WritePrometheus writes all series of the registry in the Prometheus text format
func (r *Registry) WritePrometheus(w io.Writer) {
	r.set.WritePrometheus(w)
}

// name builds `metric{component="c",k1="v1",...}`
func (r *Registry) name(metric string, labels []string) string {
	if len(labels)%2 != 0 {
		Logger.Panicf("odd number of label parts for %s: %v", metric, labels)
	}

	var sb strings.Builder
	sb.WriteString(metric)
	sb.WriteString(`{component="`)
	sb.WriteString(escape(r.component))
	sb.WriteByte('"')
	for i := 0; i < len(labels); i += 2 {
		sb.WriteString(fmt.Sprintf(`,%s="%s"`, labels[i], escape(labels[i+1])))
	}
	sb.WriteByte('}')
	return sb.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escape(v string) string {
	return labelEscaper.Replace(v)
}
