package triage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/trainer"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	ClassifiedTotal    *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram
	ClassifyErrors     *prometheus.CounterVec
	SubmitsTotal       *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	TrainsTotal        *prometheus.CounterVec
	TrainDuration      prometheus.Histogram
	VocabularySize     prometheus.Gauge
	AdvisorCalls       *prometheus.CounterVec
	AdvisorTokens      *prometheus.CounterVec
	AdvisorDuration    prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClassifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_tickets_classified_total",
			Help: "Total tickets classified by predicted priority and routed team.",
		}, []string{"priority", "team"}),
		ClassifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_classify_duration_seconds",
			Help:    "Duration of ticket classification in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us .. ~0.8s
		}),
		ClassifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_classify_errors_total",
			Help: "Total classification failures by reason.",
		}, []string{"reason"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_submits_total",
			Help: "Total ticket submissions by result.",
		}, []string{"result"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_notifications_total",
			Help: "Total ticket notifications by outcome.",
		}, []string{"outcome"}),
		TrainsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_model_trains_total",
			Help: "Total priority model training runs by outcome.",
		}, []string{"outcome"}),
		TrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_model_train_duration_seconds",
			Help:    "Duration of priority model training runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}),
		VocabularySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sift_model_vocabulary_size",
			Help: "Number of terms in the loaded priority model vocabulary.",
		}),
		AdvisorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_advisor_calls_total",
			Help: "Total suggested-reply LLM calls by outcome.",
		}, []string{"outcome"}),
		AdvisorTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_advisor_tokens_total",
			Help: "Total LLM tokens consumed by the advisor, by direction.",
		}, []string{"direction"}),
		AdvisorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_advisor_call_duration_seconds",
			Help:    "Duration of suggested-reply LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
	}

	reg.MustRegister(
		m.ClassifiedTotal,
		m.ClassifyDuration,
		m.ClassifyErrors,
		m.SubmitsTotal,
		m.NotificationsTotal,
		m.TrainsTotal,
		m.TrainDuration,
		m.VocabularySize,
		m.AdvisorCalls,
		m.AdvisorTokens,
		m.AdvisorDuration,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnClassify: func(p label.Priority, team label.Team, duration float64) {
			m.ClassifiedTotal.WithLabelValues(p.String(), string(team)).Inc()
			m.ClassifyDuration.Observe(duration)
		},
		OnError: func(reason string) {
			m.ClassifyErrors.WithLabelValues(reason).Inc()
		},
	}
}

// TrainerHooks returns trainer hooks that record training outcomes.
func (m *Metrics) TrainerHooks() trainer.Hooks {
	return trainer.Hooks{
		OnTrain: func(outcome string, duration float64, vocabularySize int) {
			m.TrainsTotal.WithLabelValues(outcome).Inc()
			m.TrainDuration.Observe(duration)
			if outcome != "error" {
				m.VocabularySize.Set(float64(vocabularySize))
			}
		},
	}
}

// SetVocabularySize records the size of a model restored from disk.
func (m *Metrics) SetVocabularySize(n int) {
	m.VocabularySize.Set(float64(n))
}

// ObserveAdvisorCall records one advisor LLM call.
func (m *Metrics) ObserveAdvisorCall(outcome string, inputTokens, outputTokens int64, duration float64) {
	m.AdvisorCalls.WithLabelValues(outcome).Inc()
	m.AdvisorTokens.WithLabelValues("input").Add(float64(inputTokens))
	m.AdvisorTokens.WithLabelValues("output").Add(float64(outputTokens))
	m.AdvisorDuration.Observe(duration)
}
