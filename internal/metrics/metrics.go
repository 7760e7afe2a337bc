package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/escalation"
	"github.com/maintenancehub/escalation-engine/internal/notify"
	"github.com/maintenancehub/escalation-engine/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsCompleted *prometheus.CounterVec
	JobsRetried   *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobLatency    *prometheus.HistogramVec
	QueueDepth    prometheus.Gauge

	Escalations          *prometheus.CounterVec
	EscalationsUnmatched prometheus.Counter

	Deliveries               *prometheus.CounterVec
	SubscriptionsDeactivated prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs whose handler succeeded.",
		}, []string{"job_type"}),

		JobsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_retried_total",
			Help: "Total number of failed job attempts rescheduled with backoff.",
		}, []string{"job_type"}),

		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs that exhausted their attempts.",
		}, []string{"job_type"}),

		JobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_processing_seconds",
			Help:    "Handler latency from claim to completion.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_type"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "job_queue_pending",
			Help: "Current number of pending jobs.",
		}),

		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Total number of work order escalations.",
		}, []string{"action"}),

		EscalationsUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_unmatched_work_orders_total",
			Help: "Open work orders seen by a sweep with no matching escalation rule.",
		}),

		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Notification delivery outcomes per channel.",
		}, []string{"channel", "result"}),

		SubscriptionsDeactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_subscriptions_deactivated_total",
			Help: "Push subscriptions deactivated after a permanent delivery error.",
		}),
	}

	reg.MustRegister(
		m.JobsCompleted,
		m.JobsRetried,
		m.JobsFailed,
		m.JobLatency,
		m.QueueDepth,
		m.Escalations,
		m.EscalationsUnmatched,
		m.Deliveries,
		m.SubscriptionsDeactivated,
	)

	return m
}

// WorkerHooks returns the callbacks the worker pool reports job outcomes to.
func (m *Metrics) WorkerHooks() worker.MetricHooks {
	return worker.MetricHooks{
		OnCompleted: func(t domain.JobType, latency time.Duration) {
			m.JobsCompleted.WithLabelValues(string(t)).Inc()
			m.JobLatency.WithLabelValues(string(t)).Observe(latency.Seconds())
		},
		OnRetried: func(t domain.JobType) {
			m.JobsRetried.WithLabelValues(string(t)).Inc()
		},
		OnFailed: func(t domain.JobType) {
			m.JobsFailed.WithLabelValues(string(t)).Inc()
		},
	}
}

func (m *Metrics) EscalationHooks() escalation.Hooks {
	return escalation.Hooks{
		OnEscalated: func(a domain.EscalationAction) {
			m.Escalations.WithLabelValues(string(a)).Inc()
		},
		OnUnmatched: m.EscalationsUnmatched.Inc,
	}
}

func (m *Metrics) DeliveryHooks() notify.Hooks {
	return notify.Hooks{
		OnDelivery: func(ch domain.Channel, result notify.Result) {
			m.Deliveries.WithLabelValues(string(ch), string(result)).Inc()
		},
		OnDeactivated: m.SubscriptionsDeactivated.Inc,
	}
}

// ObserveQueueDepth is the DepthWorker callback.
func (m *Metrics) ObserveQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}
