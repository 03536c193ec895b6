package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classifier Prometheus metrics.
var (
	TrainDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedtag",
			Name:      "train_documents_total",
			Help:      "Training documents added per tag and class",
		},
		[]string{"tag", "class"}, // "positive" / "negative"
	)

	ScoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "feedtag",
			Name:      "score_duration_seconds",
			Help:      "Time to score one document against one tag",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		},
		[]string{"tag"},
	)

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedtag",
			Name:      "verdicts_total",
			Help:      "Score verdicts by outcome",
		},
		[]string{"verdict"},
	)

	ReduceRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedtag",
			Name:      "reduce_removed_words_total",
			Help:      "Words pruned by reduce passes",
		},
		[]string{"tag"},
	)

	VocabularyWords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "feedtag",
			Name:      "vocabulary_words",
			Help:      "Distinct words held per tag",
		},
		[]string{"tag"},
	)

	FlushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedtag",
			Name:      "flush_total",
			Help:      "Evidence flushes to the durable backend",
		},
		[]string{"status"}, // "ok" / "error"
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedtag",
			Name:      "flush_duration_seconds",
			Help:      "Duration of a full evidence flush",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	PendingWords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "feedtag",
			Name:      "pending_words",
			Help:      "Words changed in memory but not yet flushed",
		},
		[]string{"tag"},
	)
)

var classifierMetricsRegistered bool

// RegisterClassifierMetrics registers Prometheus classifier metrics. Must be called once from main.
func RegisterClassifierMetrics() {
	if classifierMetricsRegistered {
		return
	}
	prometheus.MustRegister(TrainDocumentsTotal)
	prometheus.MustRegister(ScoreDuration)
	prometheus.MustRegister(VerdictsTotal)
	prometheus.MustRegister(ReduceRemovedTotal)
	prometheus.MustRegister(VocabularyWords)
	prometheus.MustRegister(FlushTotal)
	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(PendingWords)
	classifierMetricsRegistered = true
}

// ForgetTag drops every per-tag series of a deleted tag.
func ForgetTag(tag string) {
	TrainDocumentsTotal.DeletePartialMatch(prometheus.Labels{"tag": tag})
	ScoreDuration.DeletePartialMatch(prometheus.Labels{"tag": tag})
	ReduceRemovedTotal.DeletePartialMatch(prometheus.Labels{"tag": tag})
	VocabularyWords.DeleteLabelValues(tag)
	PendingWords.DeleteLabelValues(tag)
}
