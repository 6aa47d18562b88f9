package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "securechat"

// Relay holds the relay's collectors.
type Relay struct {
	connectedIdentities prometheus.Gauge
	connections         prometheus.Gauge
	messages            *prometheus.CounterVec
	readReceipts        *prometheus.CounterVec
	typingSignals       *prometheus.CounterVec
	protocolErrors      *prometheus.CounterVec
	droppedFrames       prometheus.Counter
	auditEvents         *prometheus.CounterVec
}

// NewRelay creates the relay collectors and registers them on reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		connectedIdentities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_identities",
			Help:      "Identities currently bound in the presence table.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections, identified or not.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Routed messages by delivery status.",
		}, []string{"status"}),
		readReceipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_receipts_total",
			Help:      "Read confirmations by result.",
		}, []string{"result"}),
		typingSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_signals_total",
			Help:      "Typing signals by result.",
		}, []string{"result"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Error events sent back to clients, by reason.",
		}, []string{"reason"}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Outbound frames dropped because a connection outbox was full or closed.",
		}),
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Presence audit events by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.connectedIdentities,
			m.connections,
			m.messages,
			m.readReceipts,
			m.typingSignals,
			m.protocolErrors,
			m.droppedFrames,
			m.auditEvents,
		)
	}
	return m
}

// NewRegistry returns a registry preloaded with Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the contents of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Relay) SetConnectedIdentities(n int) {
	if m == nil {
		return
	}
	m.connectedIdentities.Set(float64(n))
}

func (m *Relay) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Relay) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// MessageRouted records one routed message with status delivered or failed.
func (m *Relay) MessageRouted(status string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(status).Inc()
}

// ReadReceipt records a read confirmation as relayed or discarded.
func (m *Relay) ReadReceipt(result string) {
	if m == nil {
		return
	}
	m.readReceipts.WithLabelValues(result).Inc()
}

// TypingSignal records a typing signal as relayed or discarded.
func (m *Relay) TypingSignal(result string) {
	if m == nil {
		return
	}
	m.typingSignals.WithLabelValues(result).Inc()
}

func (m *Relay) ProtocolError(reason string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(reason).Inc()
}

func (m *Relay) FrameDropped() {
	if m == nil {
		return
	}
	m.droppedFrames.Inc()
}

// AuditEvents adds n audit events under result (written, failed, dropped).
func (m *Relay) AuditEvents(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.auditEvents.WithLabelValues(result).Add(float64(n))
}
