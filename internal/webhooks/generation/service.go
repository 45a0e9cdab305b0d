package generationwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tellowai/admin-api-sub001/internal/ledger"
	"github.com/tellowai/admin-api-sub001/pkg/callbacktoken"
	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/eventbus"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
	"github.com/tellowai/admin-api-sub001/pkg/metrics"
	"github.com/tellowai/admin-api-sub001/pkg/redis"
)

const defaultLockTTL = 10 * time.Second

type ledgerStore interface {
	Generation(ctx context.Context, generationID string) (*models.Generation, error)
	Latest(ctx context.Context, generationID string) (*models.GenerationEvent, error)
	SubmittedContext(ctx context.Context, generationID string) (*ledger.SubmittedPayload, error)
	Append(ctx context.Context, input ledger.AppendInput) (*models.GenerationEvent, error)
}

// Locker serializes callbacks for one generation. Optional.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (redis.Lease, error)
}

type ServiceParams struct {
	Ledger    ledgerStore
	Publisher eventbus.Publisher
	Tokens    callbacktoken.Codec
	Logger    *logger.Logger
	Metrics   *metrics.GenerationMetrics
	Locker    Locker
	LockKey   func(generationID string) string
	LockTTL   time.Duration
}

// Service is the webhook ingestion gateway.
type Service struct {
	ledger    ledgerStore
	publisher eventbus.Publisher
	tokens    callbacktoken.Codec
	logg      *logger.Logger
	metrics   *metrics.GenerationMetrics
	locker    Locker
	lockKey   func(string) string
	lockTTL   time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Tokens == nil {
		return nil, errors.New("callback token codec is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	lockKey := params.LockKey
	if lockKey == nil {
		lockKey = func(id string) string { return "genflow:lock:generation:" + id }
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Service{
		ledger:    params.Ledger,
		publisher: params.Publisher,
		tokens:    params.Tokens,
		logg:      params.Logger,
		metrics:   params.Metrics,
		locker:    params.Locker,
		lockKey:   lockKey,
		lockTTL:   ttl,
	}, nil
}

// Result describes what a callback did to the ledger.
type Result struct {
	GenerationID string
	EventType    enums.GenerationEventType
	// Appended is false for duplicates and repeated progress reports.
	Appended   bool
	PublishErr error
}

// HandleCallback ingests a provider delivery addressed by its callback token.
// domain is the resource kind segment of the webhook URL.
func (s *Service) HandleCallback(ctx context.Context, domain, token string, body json.RawMessage) (*Result, error) {
	generationID, err := s.tokens.Decode(token)
	if err != nil {
		s.metrics.IncCallback(metrics.OutcomeInvalid)
		if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken) {
			err = pkgerrors.Wrap(pkgerrors.CodeInvalidToken, err, "invalid callback token")
		}
		return nil, err
	}
	kind, err := enums.ParseResourceKind(domain)
	if err != nil {
		s.metrics.IncCallback(metrics.OutcomeNotFound)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
	}
	return s.ingest(ctx, generationID, &kind, body)
}

// Ingest applies a provider result for a known generation. It is the path
// used by trusted in-process writers such as the reconciler.
func (s *Service) Ingest(ctx context.Context, generationID string, body json.RawMessage) (*Result, error) {
	return s.ingest(ctx, generationID, nil, body)
}

func (s *Service) ingest(ctx context.Context, generationID string, domain *enums.ResourceKind, body json.RawMessage) (*Result, error) {
	ctx = s.logg.WithGenerationID(ctx, generationID)
	if len(body) == 0 || !json.Valid(body) {
		s.metrics.IncCallback(metrics.OutcomeInvalid)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback body must be JSON")
	}

	// a wrong domain is not found even once the generation has settled
	if domain != nil {
		generation, err := s.ledger.Generation(ctx, generationID)
		if err != nil {
			s.countFailure(err)
			return nil, err
		}
		if generation.ResourceKind != *domain {
			s.metrics.IncCallback(metrics.OutcomeNotFound)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
		}
	}

	release := s.lock(ctx, generationID)
	defer release()

	latest, err := s.ledger.Latest(ctx, generationID)
	if err != nil {
		s.countFailure(err)
		return nil, err
	}
	result := &Result{GenerationID: generationID, EventType: latest.EventType}

	if latest.EventType.IsSettled() {
		s.metrics.IncCallback(metrics.OutcomeDuplicate)
		s.logg.Info(s.logg.WithField(ctx, "latest_event", string(latest.EventType)), "callback ignored, generation already settled")
		return result, nil
	}

	submitted, err := s.ledger.SubmittedContext(ctx, generationID)
	if err != nil {
		s.countFailure(err)
		return nil, err
	}
	genCtx := submitted.Context

	cb := parseCallback(body)
	eventType := cb.classify()
	if eventType == enums.GenerationEventInProgress && latest.EventType == enums.GenerationEventInProgress {
		s.metrics.IncCallback(metrics.OutcomeDuplicate)
		return result, nil
	}

	var payload any
	var failure *ledger.FailureDetail
	switch eventType {
	case enums.GenerationEventFailed:
		failed := ledger.NewFailedPayload(genCtx, cb.failureMessage(), cb.status, cb.payload)
		failure = &failed.Error
		payload = failed
	default:
		payload = ledger.NewProviderPayload(genCtx, cb.payload)
	}

	event, err := s.ledger.Append(ctx, ledger.AppendInput{
		GenerationID: generationID,
		EventType:    eventType,
		Payload:      payload,
	})
	if err != nil {
		s.countFailure(err)
		return nil, err
	}
	s.metrics.IncCallback(metrics.OutcomeAppended)
	result.EventType = eventType
	result.Appended = true

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_type":      string(eventType),
		"ledger_event_id": event.EventID.String(),
	})
	s.logg.Info(ctx, "callback recorded")

	msg := messageFor(eventType).With(generationID, callbackEventData{
		GenerationID:    generationID,
		LedgerEventID:   event.EventID.String(),
		Context:         genCtx,
		ProviderPayload: cb.payload,
		Error:           failure,
	})
	if err := s.publisher.Publish(ctx, msg); err != nil {
		result.PublishErr = err
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "callback recorded but downstream publish failed")
	}
	return result, nil
}

type callbackEventData struct {
	GenerationID    string                `json:"generation_id"`
	LedgerEventID   string                `json:"ledger_event_id"`
	Context         ledger.Context        `json:"context"`
	ProviderPayload json.RawMessage       `json:"provider_payload,omitempty"`
	Error           *ledger.FailureDetail `json:"error,omitempty"`
}

func messageFor(eventType enums.GenerationEventType) eventbus.Message {
	switch eventType {
	case enums.GenerationEventFailed:
		return eventbus.GenerationFailed
	case enums.GenerationEventInProgress:
		return eventbus.GenerationProgress
	default:
		return eventbus.PostProcessCommand
	}
}

// lock narrows the read-then-write window between concurrent deliveries.
// Without a lock the gateway still proceeds; downstream consumers dedupe.
func (s *Service) lock(ctx context.Context, generationID string) func() {
	if s.locker == nil {
		return func() {}
	}
	lease, err := s.locker.Obtain(ctx, s.lockKey(generationID), s.lockTTL)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "generation lock unavailable, proceeding without it")
		return func() {}
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "generation lock release failed")
		}
	}
}

func (s *Service) countFailure(err error) {
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.metrics.IncCallback(metrics.OutcomeNotFound)
		return
	}
	s.metrics.IncCallback(metrics.OutcomeError)
}
