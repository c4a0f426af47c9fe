package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveEvent("slot_picked", "ok")
	m.ObserveEvent("slot_picked", "ok")
	m.ObserveConfirmed()
	m.ObserveSlotConflict()
	m.ObserveCreateLatency(0.05)

	if got := testutil.ToFloat64(m.flowEvents.WithLabelValues("slot_picked", "ok")); got != 2 {
		t.Errorf("flow_events_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.confirmed); got != 1 {
		t.Errorf("confirmed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.slotConflicts); got != 1 {
		t.Errorf("slot_conflicts_total = %v, want 1", got)
	}
}

func TestChatMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)

	m.ObserveRequest("ok")
	m.ObserveStreamError()
	m.ObserveIntentMatch()
	m.ObserveGatewayLatency(1.2)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("ok")); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.intentMatches); got != 1 {
		t.Errorf("scheduling_intent_total = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var b *BookingMetrics
	var c *ChatMetrics
	b.ObserveEvent("x", "y")
	b.ObserveConfirmed()
	b.ObserveSlotConflict()
	b.ObserveCreateLatency(1)
	c.ObserveRequest("ok")
	c.ObserveStreamError()
	c.ObserveIntentMatch()
	c.ObserveGatewayLatency(1)
}
