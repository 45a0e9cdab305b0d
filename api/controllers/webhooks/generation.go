package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tellowai/admin-api-sub001/api/responses"
	generationwebhook "github.com/tellowai/admin-api-sub001/internal/webhooks/generation"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
)

const maxCallbackBody = 10 << 20

type CallbackHandler interface {
	HandleCallback(ctx context.Context, domain, token string, body json.RawMessage) (*generationwebhook.Result, error)
}

// GenerationWebhook receives provider callbacks. Only a bad token, a non-JSON
// body or an unknown generation are reported back; anything else is logged and
// acknowledged so the provider does not redeliver.
func GenerationWebhook(svc CallbackHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		domain := chi.URLParam(r, "domain")
		if logg != nil {
			ctx = logg.WithField(ctx, "domain", domain)
		}
		result, err := svc.HandleCallback(ctx, domain, chi.URLParam(r, "token"), json.RawMessage(payload))
		if err != nil {
			if reportable(err) {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, "webhook processing failed", err)
			}
			responses.WriteSuccess(w, map[string]any{"received": true})
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"received":      true,
			"generation_id": result.GenerationID,
			"event_type":    result.EventType,
			"duplicate":     !result.Appended,
		})
	}
}

func reportable(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeValidation) ||
		pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken) ||
		pkgerrors.IsCode(err, pkgerrors.CodeNotFound)
}
