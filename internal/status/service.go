package status

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tellowai/admin-api-sub001/internal/ledger"
	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

const defaultEphemeralMarker = "ephemeral"

type ledgerReader interface {
	Generation(ctx context.Context, generationID string) (*models.Generation, error)
	OwnershipMatches(ctx context.Context, generationID, ownerRef string) (bool, error)
	Latest(ctx context.Context, generationID string) (*models.GenerationEvent, error)
	AllEvents(ctx context.Context, generationID string) ([]models.GenerationEvent, error)
}

// Requester identifies who is asking. Admins may read any generation.
type Requester struct {
	OwnerRef string
	IsAdmin  bool
}

type ServiceParams struct {
	Ledger          ledgerReader
	Signer          Signer
	EphemeralMarker string
	URLExpiry       time.Duration
}

type Service struct {
	ledger ledgerReader
	mat    materializer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Signer == nil {
		return nil, errors.New("signer is required")
	}
	marker := params.EphemeralMarker
	if marker == "" {
		marker = defaultEphemeralMarker
	}
	return &Service{
		ledger: params.Ledger,
		mat:    materializer{signer: params.Signer, marker: marker, expiresIn: params.URLExpiry},
	}, nil
}

// View is the client-facing state of a generation. Payload is only present
// once the provider has delivered output.
type View struct {
	GenerationID string                    `json:"generation_id"`
	EventType    enums.GenerationEventType `json:"event_type"`
	CreatedAt    time.Time                 `json:"created_at"`
	SubmittedAt  time.Time                 `json:"submitted_at"`
	Payload      json.RawMessage           `json:"payload,omitempty"`
}

// EventView is one audit trail entry.
type EventView struct {
	EventID   string                    `json:"event_id"`
	EventType enums.GenerationEventType `json:"event_type"`
	CreatedAt time.Time                 `json:"created_at"`
	Payload   json.RawMessage           `json:"payload"`
}

// GetStatus returns the latest state. Generations the requester does not own
// are reported as not found.
func (s *Service) GetStatus(ctx context.Context, generationID string, requester Requester) (*View, error) {
	if err := s.authorize(ctx, generationID, requester); err != nil {
		return nil, err
	}

	generation, err := s.ledger.Generation(ctx, generationID)
	if err != nil {
		return nil, err
	}
	latest, err := s.ledger.Latest(ctx, generationID)
	if err != nil {
		return nil, err
	}

	view := &View{
		GenerationID: generationID,
		EventType:    latest.EventType,
		CreatedAt:    latest.CreatedAt.UTC(),
		SubmittedAt:  generation.CreatedAt.UTC(),
	}

	var output json.RawMessage
	switch latest.EventType {
	case enums.GenerationEventPostProcessing:
		p, err := ledger.DecodeProviderPayload(latest.EventType, latest.Payload)
		if err != nil {
			return nil, err
		}
		output = p.ProviderPayload
	case enums.GenerationEventCompleted:
		p, err := ledger.DecodeCompleted(latest.Payload)
		if err != nil {
			return nil, err
		}
		output = p.Output
	default:
		return view, nil
	}

	materialized, err := s.mat.materialize(ctx, output)
	if err != nil {
		return nil, err
	}
	view.Payload = materialized
	return view, nil
}

// Events returns the full audit trail in ledger order.
func (s *Service) Events(ctx context.Context, generationID string, requester Requester) ([]EventView, error) {
	if err := s.authorize(ctx, generationID, requester); err != nil {
		return nil, err
	}
	events, err := s.ledger.AllEvents(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
	}
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, EventView{
			EventID:   ev.EventID.String(),
			EventType: ev.EventType,
			CreatedAt: ev.CreatedAt.UTC(),
			Payload:   ev.Payload,
		})
	}
	return out, nil
}

func (s *Service) authorize(ctx context.Context, generationID string, requester Requester) error {
	if generationID == "" {
		return pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
	}
	if requester.IsAdmin {
		return nil
	}
	owns, err := s.ledger.OwnershipMatches(ctx, generationID, requester.OwnerRef)
	if err != nil {
		return err
	}
	if !owns {
		return pkgerrors.New(pkgerrors.CodeNotFound, "generation not found")
	}
	return nil
}
