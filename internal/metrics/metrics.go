// Package metrics exposes matchmaking counters and gauges to Prometheus.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	QueueDepth    prometheus.Gauge
	ActiveRooms   prometheus.Gauge
	Connected     prometheus.Gauge
	Matches       prometheus.Counter
	QueueTimeouts prometheus.Counter
	PartnerLeft   *prometheus.CounterVec
	ChatMessages  prometheus.Counter
	DroppedSends  prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairup_queue_depth",
			Help: "Participants currently waiting for a partner",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairup_active_rooms",
			Help: "Rooms currently held by the room ledger",
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairup_connected_participants",
			Help: "Participants in the connection registry",
		}),
		Matches: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairup_matches_total",
			Help: "Pairs committed by the matcher",
		}),
		QueueTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairup_queue_timeouts_total",
			Help: "Participants dropped from the queue after waiting too long",
		}),
		PartnerLeft: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairup_partner_left_total",
			Help: "Pairings ended, by reason",
		}, []string{"reason"}),
		ChatMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairup_chat_messages_total",
			Help: "Chat messages accepted and broadcast",
		}),
		DroppedSends: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairup_dropped_sends_total",
			Help: "Outbound events dropped because a connection buffer was full or closed",
		}),
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) SetActiveRooms(n int) {
	if m != nil {
		m.ActiveRooms.Set(float64(n))
	}
}

func (m *Metrics) SetConnected(n int) {
	if m != nil {
		m.Connected.Set(float64(n))
	}
}

func (m *Metrics) IncMatches() {
	if m != nil {
		m.Matches.Inc()
	}
}

func (m *Metrics) IncQueueTimeouts() {
	if m != nil {
		m.QueueTimeouts.Inc()
	}
}

func (m *Metrics) IncPartnerLeft(reason string) {
	if m != nil {
		m.PartnerLeft.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncChatMessages() {
	if m != nil {
		m.ChatMessages.Inc()
	}
}

func (m *Metrics) IncDroppedSends() {
	if m != nil {
		m.DroppedSends.Inc()
	}
}
