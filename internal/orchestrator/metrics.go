package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mcphub/internal/api"
)

// Operation label values.
const (
	opStartConfigured = "start_configured"
	opStart           = "start"
	opStop            = "stop"
	opConnect         = "connect"
	opDisconnect      = "disconnect"
	opReadResource    = "read_resource"
)

const metricsNamespace = "mcphub"

// Metrics holds the orchestrator's Prometheus collectors. Nothing is exported
// until Register is called.
type Metrics struct {
	operations  *prometheus.CounterVec
	toolCalls   *prometheus.CounterVec
	connections *connectionCollector
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orchestrator_operations_total",
			Help:      "Orchestrator operations by operation and result.",
		}, []string{"operation", "result"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls routed to managed servers by server and result.",
		}, []string{"server", "result"}),
		connections: &connectionCollector{
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(metricsNamespace, "", "server_connections"),
				"Managed server connections by status.",
				[]string{"status"}, nil,
			),
		},
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.operations, m.toolCalls, m.connections} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) track(o *Orchestrator) {
	m.connections.mu.Lock()
	defer m.connections.mu.Unlock()
	m.connections.source = o
}

func (m *Metrics) observe(operation string, err error) {
	m.operations.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) observeToolCall(server string, err error) {
	m.toolCalls.WithLabelValues(server, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case api.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

// connectionCollector reports the number of connections per status at scrape time.
type connectionCollector struct {
	desc *prometheus.Desc

	mu     sync.Mutex
	source *Orchestrator
}

var connectionStatuses = []api.ServerStatus{
	api.StatusConnecting,
	api.StatusConnected,
	api.StatusDisconnected,
	api.StatusDisabled,
	api.StatusError,
}

func (c *connectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *connectionCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()

	counts := make(map[api.ServerStatus]int, len(connectionStatuses))
	if source != nil {
		for _, info := range source.GetAllServerStatuses() {
			counts[info.Status]++
		}
	}
	for _, status := range connectionStatuses {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
