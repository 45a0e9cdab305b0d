package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGenerationMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGenerationMetrics(reg)

	m.IncSubmission("image", OutcomeAccepted)
	m.IncSubmission("image", OutcomeAccepted)
	m.IncSubmission("video", OutcomeRejected)
	m.IncCallback(OutcomeDuplicate)
	m.IncPublish("PRODUCTION.GENERATION.EVENT.SUBMITTED", OutcomeFailed)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "genflow_generation_submissions_total", "resource_kind", "image"); err != nil {
		t.Fatalf("fetch submissions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected image submissions=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "genflow_generation_callbacks_total", "outcome", OutcomeDuplicate); err != nil {
		t.Fatalf("fetch callbacks: %v", err)
	} else if got != 1 {
		t.Fatalf("expected duplicate callbacks=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "genflow_eventbus_publish_total", "outcome", OutcomeFailed); err != nil {
		t.Fatalf("fetch publishes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed publishes=1, got %f", got)
	}
}

func TestGenerationMetricsNilSafe(t *testing.T) {
	var m *GenerationMetrics
	m.IncSubmission("image", OutcomeAccepted)
	m.IncCallback(OutcomeAppended)
	m.IncPublish("topic", OutcomePublished)
}
