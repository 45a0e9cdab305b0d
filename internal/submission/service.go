package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/tellowai/admin-api-sub001/internal/ledger"
	"github.com/tellowai/admin-api-sub001/internal/providers"
	"github.com/tellowai/admin-api-sub001/pkg/callbacktoken"
	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/eventbus"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
	"github.com/tellowai/admin-api-sub001/pkg/metrics"
)

type ledgerWriter interface {
	Begin(ctx context.Context, input ledger.BeginInput) (*models.GenerationEvent, error)
	BeginFailed(ctx context.Context, input ledger.BeginInput, failure ledger.FailedPayload) (*models.GenerationEvent, error)
	Latest(ctx context.Context, generationID string) (*models.GenerationEvent, error)
}

type adapterRouter interface {
	ForKind(kind enums.ResourceKind) (providers.Adapter, error)
}

// CorrelationValidator checks that the caller owns every entity referenced by
// correlation refs (templates, characters).
type CorrelationValidator interface {
	ValidateCorrelation(ctx context.Context, ownerRef string, refs json.RawMessage) error
}

// AllowAllCorrelations accepts any refs. Used when no ownership source is wired.
type AllowAllCorrelations struct{}

func (AllowAllCorrelations) ValidateCorrelation(context.Context, string, json.RawMessage) error {
	return nil
}

type ServiceParams struct {
	Ledger         ledgerWriter
	Providers      adapterRouter
	Publisher      eventbus.Publisher
	Tokens         callbacktoken.Codec
	Correlations   CorrelationValidator
	WebhookBaseURL string
	Logger         *logger.Logger
	Metrics        *metrics.GenerationMetrics
	NewID          func() string
}

type Service struct {
	ledger       ledgerWriter
	providers    adapterRouter
	publisher    eventbus.Publisher
	tokens       callbacktoken.Codec
	correlations CorrelationValidator
	webhookBase  string
	logg         *logger.Logger
	metrics      *metrics.GenerationMetrics
	newID        func() string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Providers == nil {
		return nil, errors.New("provider registry is required")
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
	base, err := url.Parse(strings.TrimSpace(params.WebhookBaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New("absolute webhook base url is required")
	}

	correlations := params.Correlations
	if correlations == nil {
		correlations = AllowAllCorrelations{}
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Service{
		ledger:       params.Ledger,
		providers:    params.Providers,
		publisher:    params.Publisher,
		tokens:       params.Tokens,
		correlations: correlations,
		webhookBase:  strings.TrimRight(base.String(), "/"),
		logg:         params.Logger,
		metrics:      params.Metrics,
		newID:        newID,
	}, nil
}

// SubmitInput is one generation request. GenerationID is optional.
type SubmitInput struct {
	OwnerRef        string
	ResourceKind    string
	Input           json.RawMessage
	CorrelationRefs json.RawMessage
	GenerationID    string
}

// SubmitResult reports the accepted generation. PublishErr is set when the
// ledger write succeeded but the submitted event did not reach the bus.
type SubmitResult struct {
	GenerationID      string
	Provider          enums.ProviderName
	ProviderRequestID string
	PublishErr        error
}

// EventPublished reports whether the submitted event reached the bus.
func (r *SubmitResult) EventPublished() bool {
	return r != nil && r.PublishErr == nil
}

// Submit validates the request, hands it to the routed provider, records the
// outcome in the ledger and announces it on the bus.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	kind, err := s.validate(ctx, input)
	if err != nil {
		s.metrics.IncSubmission(kindLabel(input.ResourceKind), metrics.OutcomeRejected)
		return nil, err
	}

	generationID := strings.TrimSpace(input.GenerationID)
	if generationID == "" {
		generationID = s.newID()
	} else if err := s.ensureUnused(ctx, generationID); err != nil {
		s.metrics.IncSubmission(string(kind), metrics.OutcomeDuplicate)
		return nil, err
	}
	ctx = s.logg.WithGenerationID(ctx, generationID)
	ctx = s.logg.WithOwnerRef(ctx, input.OwnerRef)

	adapter, err := s.providers.ForKind(kind)
	if err != nil {
		s.metrics.IncSubmission(string(kind), metrics.OutcomeRejected)
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "provider", string(adapter.Name()))

	webhookURL, err := s.webhookURL(kind, generationID)
	if err != nil {
		s.metrics.IncSubmission(string(kind), metrics.OutcomeError)
		return nil, err
	}

	genCtx := ledger.Context{
		OwnerRef:        input.OwnerRef,
		ResourceKind:    kind,
		Provider:        adapter.Name(),
		CorrelationRefs: normalizeRefs(input.CorrelationRefs),
	}

	submitted, submitErr := adapter.Submit(ctx, input.Input, providers.SubmitOptions{WebhookURL: webhookURL})
	if submitErr != nil {
		return nil, s.recordRejection(ctx, generationID, genCtx, input.Input, submitErr)
	}

	begin := ledger.BeginInput{
		GenerationID: generationID,
		Submitted:    ledger.NewSubmittedPayload(genCtx, submitted.RequestID, string(submitted.Status), input.Input),
	}
	if _, err := s.ledger.Begin(ctx, begin); err != nil {
		s.metrics.IncSubmission(string(kind), metrics.OutcomeError)
		s.logg.Error(s.logg.WithField(ctx, "provider_request_id", submitted.RequestID), "ledger write failed after provider accepted job", err)
		return nil, err
	}
	s.metrics.IncSubmission(string(kind), metrics.OutcomeAccepted)

	result := &SubmitResult{
		GenerationID:      generationID,
		Provider:          adapter.Name(),
		ProviderRequestID: submitted.RequestID,
	}

	msg := eventbus.GenerationSubmitted.With(generationID, submittedEventData{
		GenerationID:      generationID,
		Context:           genCtx,
		ProviderRequestID: submitted.RequestID,
	})
	if err := s.publisher.Publish(ctx, msg); err != nil {
		result.PublishErr = err
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "generation accepted but submitted event not published")
	}

	s.logg.Info(s.logg.WithField(ctx, "provider_request_id", submitted.RequestID), "generation submitted")
	return result, nil
}

type submittedEventData struct {
	GenerationID      string         `json:"generation_id"`
	Context           ledger.Context `json:"context"`
	ProviderRequestID string         `json:"provider_request_id"`
}

func (s *Service) validate(ctx context.Context, input SubmitInput) (enums.ResourceKind, error) {
	if strings.TrimSpace(input.OwnerRef) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "owner is required")
	}
	kind, err := enums.ParseResourceKind(input.ResourceKind)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resource_kind")
	}
	if !isJSONObject(input.Input) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "input_params must be a JSON object")
	}
	if len(input.CorrelationRefs) > 0 && string(input.CorrelationRefs) != "null" && !isJSONObject(input.CorrelationRefs) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "correlation_refs must be a JSON object")
	}
	if err := s.correlations.ValidateCorrelation(ctx, input.OwnerRef, input.CorrelationRefs); err != nil {
		return "", err
	}
	return kind, nil
}

func (s *Service) ensureUnused(ctx context.Context, generationID string) error {
	_, err := s.ledger.Latest(ctx, generationID)
	switch {
	case err == nil:
		return pkgerrors.New(pkgerrors.CodeConflict, "generation already exists")
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) webhookURL(kind enums.ResourceKind, generationID string) (string, error) {
	token, err := s.tokens.Encode(generationID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode callback token")
	}
	return fmt.Sprintf("%s/%s/%s/webhook", s.webhookBase, kind, url.PathEscape(token)), nil
}

// recordRejection writes SUBMITTED and FAILED for a job the provider refused
// and returns the error the caller should see.
func (s *Service) recordRejection(ctx context.Context, generationID string, genCtx ledger.Context, input json.RawMessage, submitErr error) error {
	s.metrics.IncSubmission(string(genCtx.ResourceKind), metrics.OutcomeFailed)

	message := submitErr.Error()
	var subErr *providers.SubmissionError
	if errors.As(submitErr, &subErr) {
		message = subErr.Error()
	}
	code := string(pkgerrors.CodeProviderSubmission)
	if typed := pkgerrors.As(submitErr); typed != nil {
		code = string(typed.Code())
	}

	begin := ledger.BeginInput{
		GenerationID: generationID,
		Submitted:    ledger.NewSubmittedPayload(genCtx, "", "", input),
	}
	failure := ledger.NewFailedPayload(genCtx, message, code, nil)
	if _, err := s.ledger.BeginFailed(ctx, begin, failure); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "submit_error", message), "failed to record provider rejection", err)
		return err
	}

	s.logg.Warn(s.logg.WithField(ctx, "error", message), "provider rejected generation")
	if pkgerrors.IsCode(submitErr, pkgerrors.CodeProviderSubmission) {
		return submitErr
	}
	return pkgerrors.Wrap(pkgerrors.CodeProviderSubmission, submitErr, "provider rejected the submission")
}

func kindLabel(raw string) string {
	if kind, err := enums.ParseResourceKind(raw); err == nil {
		return string(kind)
	}
	return "unknown"
}

func isJSONObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

func normalizeRefs(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	return raw
}
