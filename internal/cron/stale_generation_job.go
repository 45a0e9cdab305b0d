package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/tellowai/admin-api-sub001/internal/ledger"
	"github.com/tellowai/admin-api-sub001/internal/providers"
	generationwebhook "github.com/tellowai/admin-api-sub001/internal/webhooks/generation"
	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
	"github.com/tellowai/admin-api-sub001/pkg/metrics"
)

const (
	staleGenerationJobName = "stale_generations"
	defaultStaleAfter      = 15 * time.Minute
	defaultBatchSize       = 50
	defaultMaxAge          = 24 * time.Hour
)

type openGenerationReader interface {
	ListOpen(ctx context.Context, query ledger.OpenQuery) ([]models.Generation, error)
	SubmittedContext(ctx context.Context, generationID string) (*ledger.SubmittedPayload, error)
}

type providerLookup interface {
	ByName(name enums.ProviderName, kind enums.ResourceKind) (providers.Adapter, error)
}

type callbackIngester interface {
	Ingest(ctx context.Context, generationID string, body json.RawMessage) (*generationwebhook.Result, error)
}

// StaleGenerationJobParams configure the provider polling fallback.
// Generations older than MaxAge are no longer polled.
type StaleGenerationJobParams struct {
	Logger     *logger.Logger
	Ledger     openGenerationReader
	Providers  providerLookup
	Gateway    callbackIngester
	Metrics    *metrics.CronJobMetrics
	StaleAfter time.Duration
	MaxAge     time.Duration
	BatchSize  int
}

// NewStaleGenerationJob builds the job that polls providers for generations
// whose webhook never arrived.
func NewStaleGenerationJob(params StaleGenerationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Providers == nil {
		return nil, fmt.Errorf("provider registry required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	if maxAge <= staleAfter {
		return nil, fmt.Errorf("max age %s must exceed stale after %s", maxAge, staleAfter)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &staleGenerationJob{
		logg:       params.Logger,
		ledger:     params.Ledger,
		providers:  params.Providers,
		gateway:    params.Gateway,
		metrics:    params.Metrics,
		staleAfter: staleAfter,
		maxAge:     maxAge,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type staleGenerationJob struct {
	logg       *logger.Logger
	ledger     openGenerationReader
	providers  providerLookup
	gateway    callbackIngester
	metrics    *metrics.CronJobMetrics
	staleAfter time.Duration
	maxAge     time.Duration
	batch      int
	now        func() time.Time

	// cursor is where the next sweep resumes; nil starts from the oldest row.
	cursor *ledger.OpenCursor
}

func (j *staleGenerationJob) Name() string { return staleGenerationJobName }

func (j *staleGenerationJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	open, err := j.ledger.ListOpen(ctx, ledger.OpenQuery{
		CreatedBefore: now.Add(-j.staleAfter),
		CreatedAfter:  now.Add(-j.maxAge),
		After:         j.cursor,
		Limit:         j.batch,
	})
	if err != nil {
		return fmt.Errorf("list open generations: %w", err)
	}
	// a full page means more rows may follow; a short one wraps to the oldest
	if len(open) == j.batch {
		last := open[len(open)-1]
		j.cursor = &ledger.OpenCursor{CreatedAt: last.CreatedAt, GenerationID: last.GenerationID}
	} else {
		j.cursor = nil
	}

	var errs error
	repaired := 0
	for _, generation := range open {
		advanced, err := j.reconcile(ctx, generation.GenerationID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("generation %s: %w", generation.GenerationID, err))
			continue
		}
		if advanced {
			repaired++
		}
	}
	j.metrics.AddRepaired(j.Name(), repaired)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"open":     len(open),
		"repaired": repaired,
		"errors":   len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "stale generation sweep complete")
	return errs
}

// reconcile polls the provider once and feeds a finished job through the same
// ingestion path a webhook would take.
func (j *staleGenerationJob) reconcile(ctx context.Context, generationID string) (bool, error) {
	ctx = j.logg.WithGenerationID(ctx, generationID)
	submitted, err := j.ledger.SubmittedContext(ctx, generationID)
	if err != nil {
		return false, err
	}
	if submitted.ProviderRequestID == "" {
		return false, nil
	}
	adapter, err := j.providers.ByName(submitted.Context.Provider, submitted.Context.ResourceKind)
	if err != nil {
		return false, err
	}

	status, err := adapter.CheckStatus(ctx, submitted.ProviderRequestID)
	if err != nil {
		return false, err
	}

	var body json.RawMessage
	switch status {
	case providers.StatusCompleted:
		body, err = adapter.GetResult(ctx, submitted.ProviderRequestID)
		if err != nil {
			return false, err
		}
	case providers.StatusFailed:
		body, err = failureBody(ctx, adapter, submitted.ProviderRequestID)
		if err != nil {
			return false, err
		}
	default:
		return false, nil
	}

	result, err := j.gateway.Ingest(ctx, generationID, body)
	if err != nil {
		return false, err
	}
	if result.Appended {
		j.logg.Info(j.logg.WithField(ctx, "event_type", string(result.EventType)), "generation advanced by reconciler")
	}
	return result.Appended, nil
}

// failureBody wraps whatever the provider still returns for a failed job so the
// gateway classifies it as FAILED.
func failureBody(ctx context.Context, adapter providers.Adapter, requestID string) (json.RawMessage, error) {
	detail, err := adapter.GetResult(ctx, requestID)
	if err != nil {
		detail = nil
	}
	return json.Marshal(map[string]any{
		"status":  "failed",
		"error":   fmt.Sprintf("%s reported the job as failed", adapter.Name()),
		"payload": detail,
	})
}
