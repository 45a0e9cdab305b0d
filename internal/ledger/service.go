package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tellowai/admin-api-sub001/pkg/db"
	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

// Service is the only writer of generation events. Events are appended,
// never rewritten.
type Service interface {
	Begin(ctx context.Context, input BeginInput) (*models.GenerationEvent, error)
	BeginFailed(ctx context.Context, input BeginInput, failure FailedPayload) (*models.GenerationEvent, error)
	Append(ctx context.Context, input AppendInput) (*models.GenerationEvent, error)
	Latest(ctx context.Context, generationID string) (*models.GenerationEvent, error)
	AllEvents(ctx context.Context, generationID string) ([]models.GenerationEvent, error)
	OwnershipMatches(ctx context.Context, generationID, ownerRef string) (bool, error)
	Generation(ctx context.Context, generationID string) (*models.Generation, error)
	SubmittedContext(ctx context.Context, generationID string) (*SubmittedPayload, error)
	ListOpen(ctx context.Context, query OpenQuery) ([]models.Generation, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BeginInput carries what is needed to create a generation with its
// SUBMITTED event.
type BeginInput struct {
	GenerationID string
	Submitted    SubmittedPayload
}

// AppendInput describes one non-SUBMITTED event. Payload must be the
// schema type matching EventType.
type AppendInput struct {
	GenerationID string
	EventType    enums.GenerationEventType
	Payload      any
}

type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Clock      func() time.Time
}

type service struct {
	repo Repository
	db   txRunner
	now  func() time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: params.Repository, db: params.DB, now: clock}, nil
}

func (s *service) Begin(ctx context.Context, input BeginInput) (*models.GenerationEvent, error) {
	var submitted *models.GenerationEvent
	err := s.begin(ctx, input, func(repo Repository, base time.Time) error {
		ev, err := s.newEvent(input.GenerationID, enums.GenerationEventSubmitted, input.Submitted, base)
		if err != nil {
			return err
		}
		if err := repo.Append(ctx, ev); err != nil {
			return err
		}
		submitted = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return submitted, nil
}

// BeginFailed records a generation the provider refused: SUBMITTED followed by
// FAILED, in one transaction, so the SUBMITTED-first rule still holds.
func (s *service) BeginFailed(ctx context.Context, input BeginInput, failure FailedPayload) (*models.GenerationEvent, error) {
	if err := ValidatePayload(enums.GenerationEventFailed, failure); err != nil {
		return nil, err
	}
	var failed *models.GenerationEvent
	err := s.begin(ctx, input, func(repo Repository, base time.Time) error {
		submitted, err := s.newEvent(input.GenerationID, enums.GenerationEventSubmitted, input.Submitted, base)
		if err != nil {
			return err
		}
		if err := repo.Append(ctx, submitted); err != nil {
			return err
		}
		ev, err := s.newEvent(input.GenerationID, enums.GenerationEventFailed, failure, base.Add(time.Microsecond))
		if err != nil {
			return err
		}
		if err := repo.Append(ctx, ev); err != nil {
			return err
		}
		failed = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

func (s *service) begin(ctx context.Context, input BeginInput, writeEvents func(repo Repository, base time.Time) error) error {
	if strings.TrimSpace(input.GenerationID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "generation id is required")
	}
	if err := ValidatePayload(enums.GenerationEventSubmitted, input.Submitted); err != nil {
		return err
	}

	correlation := input.Submitted.Context.CorrelationRefs
	if len(correlation) == 0 {
		correlation = json.RawMessage(`{}`)
	}
	now := s.timestamp()

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindGeneration(ctx, input.GenerationID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "generation already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		record := &models.Generation{
			GenerationID:    input.GenerationID,
			OwnerRef:        input.Submitted.Context.OwnerRef,
			ResourceKind:    input.Submitted.Context.ResourceKind,
			Provider:        input.Submitted.Context.Provider,
			CorrelationRefs: correlation,
			CreatedAt:       now,
		}
		if err := repo.CreateGeneration(ctx, record); err != nil {
			return err
		}
		return writeEvents(repo, now)
	})
	if err != nil && db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "generation already exists")
	}
	return err
}

func (s *service) Append(ctx context.Context, input AppendInput) (*models.GenerationEvent, error) {
	if strings.TrimSpace(input.GenerationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "generation id is required")
	}
	if input.EventType == enums.GenerationEventSubmitted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "SUBMITTED is written once when the generation begins")
	}
	if err := ValidatePayload(input.EventType, input.Payload); err != nil {
		return nil, err
	}

	var appended *models.GenerationEvent
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		latest, err := repo.Latest(ctx, input.GenerationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
			}
			return err
		}

		createdAt := s.timestamp()
		// keep per-generation order even when instance clocks disagree
		if !createdAt.After(latest.CreatedAt) {
			createdAt = latest.CreatedAt.UTC().Add(time.Microsecond)
		}

		ev, err := s.newEvent(input.GenerationID, input.EventType, input.Payload, createdAt)
		if err != nil {
			return err
		}
		if err := repo.Append(ctx, ev); err != nil {
			return err
		}
		appended = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appended, nil
}

func (s *service) Latest(ctx context.Context, generationID string) (*models.GenerationEvent, error) {
	if strings.TrimSpace(generationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "generation id is required")
	}
	event, err := s.repo.Latest(ctx, generationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
		}
		return nil, err
	}
	return event, nil
}

func (s *service) AllEvents(ctx context.Context, generationID string) ([]models.GenerationEvent, error) {
	if strings.TrimSpace(generationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "generation id is required")
	}
	return s.repo.ListByGenerationID(ctx, generationID)
}

func (s *service) OwnershipMatches(ctx context.Context, generationID, ownerRef string) (bool, error) {
	if generationID == "" || ownerRef == "" {
		return false, nil
	}
	generation, err := s.repo.FindGeneration(ctx, generationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return generation.OwnerRef == ownerRef, nil
}

func (s *service) Generation(ctx context.Context, generationID string) (*models.Generation, error) {
	generation, err := s.repo.FindGeneration(ctx, generationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
		}
		return nil, err
	}
	return generation, nil
}

func (s *service) SubmittedContext(ctx context.Context, generationID string) (*SubmittedPayload, error) {
	event, err := s.repo.FirstOfType(ctx, generationID, enums.GenerationEventSubmitted)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
		}
		return nil, err
	}
	return DecodeSubmitted(event.Payload)
}

func (s *service) ListOpen(ctx context.Context, query OpenQuery) ([]models.Generation, error) {
	query.CreatedBefore = query.CreatedBefore.UTC()
	if !query.CreatedAfter.IsZero() {
		query.CreatedAfter = query.CreatedAfter.UTC()
	}
	if query.After != nil {
		after := *query.After
		after.CreatedAt = after.CreatedAt.UTC()
		query.After = &after
	}
	return s.repo.ListOpen(ctx, query)
}

func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *service) newEvent(generationID string, eventType enums.GenerationEventType, payload any, createdAt time.Time) (*models.GenerationEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event payload")
	}
	return &models.GenerationEvent{
		EventID:      uuid.New(),
		GenerationID: generationID,
		EventType:    eventType,
		Payload:      raw,
		CreatedAt:    createdAt,
	}, nil
}
