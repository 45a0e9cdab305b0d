package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tellowai/admin-api-sub001/api/middleware"
	"github.com/tellowai/admin-api-sub001/api/responses"
	"github.com/tellowai/admin-api-sub001/api/validators"
	"github.com/tellowai/admin-api-sub001/internal/status"
	"github.com/tellowai/admin-api-sub001/internal/submission"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
)

type GenerationSubmitter interface {
	Submit(ctx context.Context, input submission.SubmitInput) (*submission.SubmitResult, error)
}

type GenerationStatusReader interface {
	GetStatus(ctx context.Context, generationID string, requester status.Requester) (*status.View, error)
	Events(ctx context.Context, generationID string, requester status.Requester) ([]status.EventView, error)
}

type generationSubmitRequest struct {
	ResourceKind    string          `json:"resource_kind" validate:"required,resource_kind"`
	InputParams     json.RawMessage `json:"input_params" validate:"required,json_object"`
	CorrelationRefs json.RawMessage `json:"correlation_refs" validate:"json_object"`
	GenerationID    string          `json:"generation_id" validate:"omitempty,max=64"`
}

type generationSubmitResponse struct {
	GenerationID   string `json:"generation_id"`
	EventPublished bool   `json:"event_published"`
}

// GenerationSubmit accepts a generation request and answers 202 as soon as
// the provider has the job.
func GenerationSubmit(svc GenerationSubmitter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "submission service unavailable"))
			return
		}

		owner := middleware.OwnerRefFromContext(r.Context())
		if owner == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner context missing"))
			return
		}

		var body generationSubmitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), submission.SubmitInput{
			OwnerRef:        owner,
			ResourceKind:    strings.TrimSpace(body.ResourceKind),
			Input:           body.InputParams,
			CorrelationRefs: body.CorrelationRefs,
			GenerationID:    strings.TrimSpace(body.GenerationID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, generationSubmitResponse{
			GenerationID:   result.GenerationID,
			EventPublished: result.EventPublished(),
		})
	}
}

// GenerationStatus returns the latest state of a generation owned by the caller.
func GenerationStatus(svc GenerationStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status service unavailable"))
			return
		}

		generationID := strings.TrimSpace(chi.URLParam(r, "generationId"))
		if generationID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "generation id is required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithGenerationID(ctx, generationID)
		}
		view, err := svc.GetStatus(ctx, generationID, requesterFrom(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminGenerationEvents returns the full audit trail for a generation.
func AdminGenerationEvents(svc GenerationStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status service unavailable"))
			return
		}

		generationID := strings.TrimSpace(chi.URLParam(r, "generationId"))
		if generationID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "generation id is required"))
			return
		}

		events, err := svc.Events(r.Context(), generationID, requesterFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"generation_id": generationID,
			"events":        events,
		})
	}
}

func requesterFrom(r *http.Request) status.Requester {
	return status.Requester{
		OwnerRef: middleware.OwnerRefFromContext(r.Context()),
		IsAdmin:  middleware.IsAdmin(r.Context()),
	}
}
