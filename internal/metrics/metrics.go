// Package metrics exposes the server's Prometheus instrumentation. Every
// metric is registered once, at package init, via promauto — there is no
// separate registration step to forget.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of live charge point sessions.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocpp_active_connections",
		Help: "The number of currently open charge point WebSocket sessions.",
	})

	// MessagesReceived counts inbound WebSocket frames, labeled by OCPP
	// subprotocol version and wire frame type (text, ping, pong).
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_messages_received_total",
		Help: "Total number of WebSocket frames received from charge points.",
	}, []string{"ocpp_version", "frame_type"})

	// ActionsDispatched counts decoded Call frames of known actions, labeled
	// by action and by outcome (reply, no_reply, closed). A NotSupported
	// CallError for an unimplemented action counts as reply.
	ActionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_actions_dispatched_total",
		Help: "Total number of decoded Call actions dispatched, by action and outcome.",
	}, []string{"action", "outcome"})

	// DecodeErrors counts frames that failed envelope or payload decoding,
	// labeled by error kind (FramingError, ProtocolError, NotSupported,
	// FormationViolation).
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_decode_errors_total",
		Help: "Total number of frames that failed to decode, by error kind.",
	}, []string{"kind"})

	// BootNotificationsRejected counts BootNotification admissions refused by
	// the allow-list, the one event that terminates a session outright.
	BootNotificationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocpp_boot_notifications_rejected_total",
		Help: "Total number of BootNotification requests rejected by the allow-list.",
	})

	// DispatchDuration observes how long the dispatcher takes to build the
	// outcome for a Call of a known action, labeled by action. Enqueuing the
	// reply is not included.
	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocpp_dispatch_duration_seconds",
		Help:    "Histogram of per-action dispatch latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// EventsPublished counts lifecycle and admission events that the Kafka
	// producer reports as delivered, labeled by event kind.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_events_published_total",
		Help: "Total number of lifecycle events published for downstream analytics.",
	}, []string{"kind"})

	// EventsDropped counts events that could not be published because the
	// publisher's outbound buffer was full — this path is best-effort and
	// must never block the session it describes.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_events_dropped_total",
		Help: "Total number of lifecycle events dropped because the publisher was backed up.",
	}, []string{"kind"})
)
