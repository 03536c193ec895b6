package feedtag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics tracks SDK calls and the verdicts they hand back.
type sdkMetrics struct {
	calls       *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	verdicts    *prometheus.CounterVec
	probability *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedtag",
			Subsystem: "sdk",
			Name:      "calls_total",
			Help:      "SDK calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "feedtag",
			Subsystem: "sdk",
			Name:      "call_duration_seconds",
			Help:      "SDK call latency.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"operation"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedtag",
			Subsystem: "sdk",
			Name:      "verdicts_total",
			Help:      "Verdicts returned by score, score_all and recommend.",
		}, []string{"operation", "verdict"}),
		probability: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "feedtag",
			Subsystem: "sdk",
			Name:      "score_probability",
			Help:      "Tag probabilities returned to callers.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.latency); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.verdicts); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.probability); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector, or adopts the one a previous Client
// registered on the same registerer.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("feedtag: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("feedtag: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records SDK calls through slog and prometheus. Both are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// call is one in-flight SDK operation. tag is empty for operations spanning all tags.
type call struct {
	op    string
	tag   string
	start time.Time
}

func (o *observer) begin(op, tag string) call {
	return call{op: op, tag: tag, start: time.Now()}
}

// end records the outcome of c. Tag errors a caller can fix (unknown tag,
// bad name, empty document) are logged at debug, everything else at warn.
func (o *observer) end(c call, err error) {
	if o == nil {
		return
	}
	dur := time.Since(c.start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(c.op, outcome).Inc()
		o.metrics.latency.WithLabelValues(c.op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	attrs := []any{"op", c.op, "duration", dur}
	if c.tag != "" {
		attrs = append(attrs, "tag", c.tag)
	}
	switch outcome {
	case "ok":
		o.logger.Debug("feedtag call completed", attrs...)
	case "error":
		o.logger.Warn("feedtag call failed", append(attrs, "error", err)...)
	default:
		o.logger.Debug("feedtag call rejected", append(attrs, "reason", outcome, "error", err)...)
	}
}

// scored records the verdict and probability of every score handed back by op.
func (o *observer) scored(op string, scores []Score) {
	if o == nil || len(scores) == 0 {
		return
	}
	if o.metrics != nil {
		for _, s := range scores {
			o.metrics.verdicts.WithLabelValues(op, string(s.Verdict)).Inc()
			o.metrics.probability.WithLabelValues(op).Observe(s.Probability)
		}
	}
	if o.logger != nil && o.logger.Enabled(context.Background(), slog.LevelDebug) {
		best := scores[0]
		for _, s := range scores[1:] {
			if s.Probability > best.Probability {
				best = s
			}
		}
		o.logger.Debug("feedtag scores",
			"op", op, "tags", len(scores),
			"best_tag", best.Tag, "best_probability", best.Probability, "best_verdict", string(best.Verdict))
	}
}

// outcomeOf classifies err for the calls_total outcome label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTagNotFound):
		return "tag_not_found"
	case errors.Is(err, ErrInvalidTag), errors.Is(err, ErrInvalidReduceConfig):
		return "invalid"
	case errors.Is(err, ErrTagExists):
		return "tag_exists"
	case errors.Is(err, ErrEmptyDocument):
		return "empty_document"
	default:
		return "error"
	}
}
