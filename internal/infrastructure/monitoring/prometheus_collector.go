package monitoring

import (
	"context"
	"time"

	"liveclass/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector satisfies both the hub's Metrics interface and
// ports.SessionEvents, so one registration covers socket traffic and
// session lifecycle.
type PrometheusCollector struct {
	socketsConnected    prometheus.Gauge
	sessionsActiveTotal prometheus.Gauge
	sessionsTotal       prometheus.Counter
	roomsTotal          prometheus.Gauge

	signalsRelayedTotal *prometheus.CounterVec
	relayDroppedTotal   prometheus.Counter

	sessionDuration prometheus.Histogram

	rosterSize *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		socketsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "liveclass_sockets_connected",
			Help: "Number of open signaling sockets",
		}),

		sessionsActiveTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "liveclass_sessions_active_total",
			Help: "Number of currently active live sessions",
		}),

		sessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "liveclass_sessions_started_total",
			Help: "Total number of live sessions started",
		}),

		roomsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "liveclass_rooms_total",
			Help: "Number of session rooms with at least one socket",
		}),

		signalsRelayedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "liveclass_signals_relayed_total",
			Help: "Total negotiation messages relayed, by kind",
		}, []string{"kind"}),

		relayDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "liveclass_relay_dropped_total",
			Help: "Relayed messages dropped because the receiver buffer was full",
		}),

		sessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "liveclass_session_duration_seconds",
			Help:    "Duration of live sessions from start to end",
			Buckets: prometheus.ExponentialBuckets(60, 2, 10),
		}),

		rosterSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liveclass_session_roster_size",
			Help: "Number of participants currently in each session",
		}, []string{"session_id"}),
	}
}

// Metrics interface used by the signaling hub.

func (p *PrometheusCollector) SocketConnected()    { p.socketsConnected.Inc() }
func (p *PrometheusCollector) SocketDisconnected() { p.socketsConnected.Dec() }
func (p *PrometheusCollector) RoomCount(n int)     { p.roomsTotal.Set(float64(n)) }

func (p *PrometheusCollector) SignalRelayed(kind string) {
	p.signalsRelayedTotal.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) RelayDropped() { p.relayDroppedTotal.Inc() }

// ports.SessionEvents: lifecycle metrics ride the same fan-out as the
// hub broadcasts.

func (p *PrometheusCollector) SessionStarted(_ context.Context, session *domain.LiveSession) {
	p.sessionsActiveTotal.Inc()
	p.sessionsTotal.Inc()
	p.rosterSize.WithLabelValues(string(session.ID)).Set(float64(len(session.Roster)))
}

func (p *PrometheusCollector) SessionEnded(_ context.Context, session *domain.LiveSession) {
	p.sessionsActiveTotal.Dec()
	p.sessionDuration.Observe(time.Since(session.StartedAt).Seconds())
	p.rosterSize.DeleteLabelValues(string(session.ID))
}
