package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "genflow"

// Outcome labels shared by the generation counters.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeAppended  = "appended"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
)

// GenerationMetrics tracks submissions, callbacks and bus publishes.
// A nil receiver is a no-op so services can run without a registry.
type GenerationMetrics struct {
	submissions *prometheus.CounterVec
	callbacks   *prometheus.CounterVec
	publishes   *prometheus.CounterVec
}

// NewGenerationMetrics registers the generation counters on reg.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_submissions_total",
		Help:      "Generation submissions by resource kind and outcome.",
	}, []string{"resource_kind", "outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_callbacks_total",
		Help:      "Provider callbacks by outcome.",
	}, []string{"outcome"})
	publishes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eventbus_publish_total",
		Help:      "Event bus publishes by topic and outcome.",
	}, []string{"topic", "outcome"})
	reg.MustRegister(submissions, callbacks, publishes)
	return &GenerationMetrics{
		submissions: submissions,
		callbacks:   callbacks,
		publishes:   publishes,
	}
}

func (m *GenerationMetrics) IncSubmission(resourceKind, outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(resourceKind), outcome).Inc()
}

func (m *GenerationMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *GenerationMetrics) IncPublish(topic, outcome string) {
	if m == nil || m.publishes == nil {
		return
	}
	m.publishes.WithLabelValues(normalizeLabel(topic), outcome).Inc()
}
