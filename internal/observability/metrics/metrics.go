package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
// All methods are nil-safe so callers can run without a registry.
type BookingMetrics struct {
	flowEvents    *prometheus.CounterVec
	confirmed     prometheus.Counter
	slotConflicts prometheus.Counter
	createSeconds prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		flowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "flow_events_total",
			Help:      "Booking session events by type and outcome",
		}, []string{"event", "outcome"}),
		confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "confirmed_total",
			Help:      "Appointments successfully booked through the widget",
		}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Creates rejected because the slot was taken first",
		}),
		createSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "create_seconds",
			Help:      "Latency of the appointment create transaction",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.flowEvents, m.confirmed, m.slotConflicts, m.createSeconds)
	return m
}

func (m *BookingMetrics) ObserveEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.flowEvents.WithLabelValues(event, outcome).Inc()
}

func (m *BookingMetrics) ObserveConfirmed() {
	if m == nil {
		return
	}
	m.confirmed.Inc()
}

func (m *BookingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *BookingMetrics) ObserveCreateLatency(seconds float64) {
	if m == nil {
		return
	}
	m.createSeconds.Observe(seconds)
}

// ChatMetrics tracks the conversational transport.
type ChatMetrics struct {
	requests       *prometheus.CounterVec
	streamErrors   prometheus.Counter
	intentMatches  prometheus.Counter
	gatewaySeconds prometheus.Histogram
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat stream requests by outcome",
		}, []string{"outcome"}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "stream_errors_total",
			Help:      "Gateway streams abandoned due to transport errors",
		}),
		intentMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "scheduling_intent_total",
			Help:      "Messages routed to the booking flow instead of the LLM",
		}),
		gatewaySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "gateway_seconds",
			Help:      "Wall time of a full gateway stream",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requests, m.streamErrors, m.intentMatches, m.gatewaySeconds)
	return m
}

func (m *ChatMetrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *ChatMetrics) ObserveStreamError() {
	if m == nil {
		return
	}
	m.streamErrors.Inc()
}

func (m *ChatMetrics) ObserveIntentMatch() {
	if m == nil {
		return
	}
	m.intentMatches.Inc()
}

func (m *ChatMetrics) ObserveGatewayLatency(seconds float64) {
	if m == nil {
		return
	}
	m.gatewaySeconds.Observe(seconds)
}
