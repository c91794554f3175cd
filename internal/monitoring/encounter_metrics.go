package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Origines d'une rencontre
const (
	OriginFresh    = "fresh"
	OriginRestored = "restored"
)

// EncounterMetrics suit le cycle de vie des rencontres.
// Toutes les méthodes acceptent un receveur nil.
type EncounterMetrics struct {
	Started        *prometheus.CounterVec
	Actions        *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec
	Active         prometheus.Gauge
	StoreErrors    *prometheus.CounterVec
	StoreDuration  *prometheus.HistogramVec
	RewardFailures prometheus.Counter
}

var storeBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// NewEncounterMetrics enregistre les métriques de rencontre dans reg
func NewEncounterMetrics(reg prometheus.Registerer) *EncounterMetrics {
	factory := promauto.With(reg)

	return &EncounterMetrics{
		Started: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "encounters_started_total",
				Help:      "Encounters started, fresh or restored from the session slot",
			},
			[]string{"origin"},
		),
		Actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Actions applied grouped by side and action",
			},
			[]string{"side", "action"},
		),
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outcomes_total",
				Help:      "Finished encounters grouped by terminal status",
			},
			[]string{"status"},
		),
		Active: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_encounters",
				Help:      "Encounter orchestrators currently held in memory",
			},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Session slot failures grouped by operation",
			},
			[]string{"operation"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_duration_seconds",
				Help:      "Session slot latency grouped by operation",
				Buckets:   storeBuckets,
			},
			[]string{"operation"},
		),
		RewardFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reward_failures_total",
				Help:      "Reward hand-offs that failed against the roster service",
			},
		),
	}
}

// IncStarted compte une rencontre démarrée
func (m *EncounterMetrics) IncStarted(origin string) {
	if m == nil {
		return
	}
	m.Started.WithLabelValues(origin).Inc()
}

// IncAction compte une action appliquée
func (m *EncounterMetrics) IncAction(side, action string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(side, action).Inc()
}

// IncOutcome compte une rencontre terminée
func (m *EncounterMetrics) IncOutcome(status string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(status).Inc()
}

// SetActive met à jour le nombre d'orchestrateurs en mémoire
func (m *EncounterMetrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.Active.Set(float64(n))
}

// ObserveStore enregistre la latence d'une opération sur le slot
func (m *EncounterMetrics) ObserveStore(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(operation).Inc()
	}
}

// IncRewardFailure compte un échec de remise des récompenses
func (m *EncounterMetrics) IncRewardFailure() {
	if m == nil {
		return
	}
	m.RewardFailures.Inc()
}
