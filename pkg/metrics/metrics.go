package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Actor metrics
	ActorTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grace_actor_turns_total",
			Help: "Total number of actor turns by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ActorTurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grace_actor_turn_duration_seconds",
			Help:    "Duration of actor turns by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ActorsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grace_actors_active",
			Help: "Number of materialized actor instances by kind",
		},
		[]string{"kind"},
	)

	ActorActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grace_actor_activations_total",
			Help: "Total number of actor activations by kind",
		},
		[]string{"kind"},
	)

	// Event metrics
	EventsPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grace_events_persisted_total",
			Help: "Total number of domain events persisted by entity class",
		},
		[]string{"class"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grace_events_published_total",
			Help: "Total number of domain events published by topic",
		},
		[]string{"topic"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grace_events_dropped_total",
			Help: "Total number of envelopes dropped on stalled subscribers by topic",
		},
		[]string{"topic"},
	)

	// Reminder metrics
	RemindersScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grace_reminders_scheduled_total",
			Help: "Total number of reminders registered",
		},
	)

	RemindersFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grace_reminders_fired_total",
			Help: "Total number of reminders delivered by outcome",
		},
		[]string{"outcome"},
	)

	// Cache metrics
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grace_cache_hits_total",
			Help: "Total number of existence cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grace_cache_misses_total",
			Help: "Total number of existence cache misses",
		},
	)

	// Command pipeline metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grace_commands_total",
			Help: "Total number of pipeline commands by entity class and status",
		},
		[]string{"class", "status"},
	)

	CommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grace_command_duration_seconds",
			Help:    "End-to-end duration of pipeline commands",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		ActorTurnsTotal,
		ActorTurnDuration,
		ActorsActive,
		ActorActivationsTotal,
		EventsPersistedTotal,
		EventsPublishedTotal,
		EventsDroppedTotal,
		RemindersScheduledTotal,
		RemindersFiredTotal,
		CacheHits,
		CacheMisses,
		CommandsTotal,
		CommandDuration,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
