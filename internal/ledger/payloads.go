package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

// PayloadVersion is stamped on every payload written by this service.
const PayloadVersion = 1

var payloadValidator = validator.New()

// Context is the generation metadata repeated on every event so consumers
// never need a join.
type Context struct {
	OwnerRef        string             `json:"owner_ref" validate:"required"`
	ResourceKind    enums.ResourceKind `json:"resource_kind" validate:"required,oneof=image video audio tuning"`
	Provider        enums.ProviderName `json:"provider" validate:"required,oneof=fal replicate"`
	CorrelationRefs json.RawMessage    `json:"correlation_refs,omitempty"`
}

// SubmittedPayload is the body of the SUBMITTED event. ProviderRequestID is
// empty when the provider rejected the submission.
type SubmittedPayload struct {
	Version           int             `json:"version" validate:"eq=1"`
	Context           Context         `json:"context"`
	ProviderRequestID string          `json:"provider_request_id,omitempty"`
	ProviderStatus    string          `json:"provider_status,omitempty"`
	Input             json.RawMessage `json:"input" validate:"required"`
}

// ProviderPayload is the body of IN_PROGRESS and POST_PROCESSING events.
type ProviderPayload struct {
	Version         int             `json:"version" validate:"eq=1"`
	Context         Context         `json:"context"`
	ProviderPayload json.RawMessage `json:"provider_payload" validate:"required"`
}

// CompletedPayload is the body of COMPLETED events written by the
// post-processing pipeline.
type CompletedPayload struct {
	Version int             `json:"version" validate:"eq=1"`
	Context Context         `json:"context"`
	Output  json.RawMessage `json:"output" validate:"required"`
}

type FailureDetail struct {
	Message string `json:"message" validate:"required"`
	Code    string `json:"code,omitempty"`
}

// FailedPayload is the body of FAILED events.
type FailedPayload struct {
	Version         int             `json:"version" validate:"eq=1"`
	Context         Context         `json:"context"`
	Error           FailureDetail   `json:"error"`
	ProviderPayload json.RawMessage `json:"provider_payload,omitempty"`
}

// NewSubmittedPayload stamps the current version.
func NewSubmittedPayload(ctx Context, requestID, status string, input json.RawMessage) SubmittedPayload {
	return SubmittedPayload{Version: PayloadVersion, Context: ctx, ProviderRequestID: requestID, ProviderStatus: status, Input: input}
}

func NewProviderPayload(ctx Context, raw json.RawMessage) ProviderPayload {
	return ProviderPayload{Version: PayloadVersion, Context: ctx, ProviderPayload: raw}
}

func NewCompletedPayload(ctx Context, output json.RawMessage) CompletedPayload {
	return CompletedPayload{Version: PayloadVersion, Context: ctx, Output: output}
}

func NewFailedPayload(ctx Context, message, code string, raw json.RawMessage) FailedPayload {
	return FailedPayload{
		Version:         PayloadVersion,
		Context:         ctx,
		Error:           FailureDetail{Message: message, Code: code},
		ProviderPayload: raw,
	}
}

// DecodeSubmitted parses and validates a SUBMITTED payload.
func DecodeSubmitted(raw json.RawMessage) (*SubmittedPayload, error) {
	var p SubmittedPayload
	if err := decodePayload(enums.GenerationEventSubmitted, raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeProviderPayload parses and validates an IN_PROGRESS or POST_PROCESSING payload.
func DecodeProviderPayload(eventType enums.GenerationEventType, raw json.RawMessage) (*ProviderPayload, error) {
	var p ProviderPayload
	if err := decodePayload(eventType, raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeCompleted parses and validates a COMPLETED payload.
func DecodeCompleted(raw json.RawMessage) (*CompletedPayload, error) {
	var p CompletedPayload
	if err := decodePayload(enums.GenerationEventCompleted, raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeFailed parses and validates a FAILED payload.
func DecodeFailed(raw json.RawMessage) (*FailedPayload, error) {
	var p FailedPayload
	if err := decodePayload(enums.GenerationEventFailed, raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ValidatePayload checks an outgoing payload against its event type's schema.
func ValidatePayload(eventType enums.GenerationEventType, payload any) error {
	switch eventType {
	case enums.GenerationEventSubmitted:
		if _, ok := payload.(SubmittedPayload); !ok {
			return payloadTypeError(eventType, payload)
		}
	case enums.GenerationEventInProgress, enums.GenerationEventPostProcessing:
		if _, ok := payload.(ProviderPayload); !ok {
			return payloadTypeError(eventType, payload)
		}
	case enums.GenerationEventCompleted:
		if _, ok := payload.(CompletedPayload); !ok {
			return payloadTypeError(eventType, payload)
		}
	case enums.GenerationEventFailed:
		if _, ok := payload.(FailedPayload); !ok {
			return payloadTypeError(eventType, payload)
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid generation event type %q", eventType))
	}
	if err := payloadValidator.Struct(payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s payload", eventType))
	}
	return nil
}

func payloadTypeError(eventType enums.GenerationEventType, payload any) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s events require a matching payload, got %T", eventType, payload))
}

// decodePayload fails loudly: a stored payload that does not match its schema
// is a data integrity problem, not a client error.
func decodePayload(eventType enums.GenerationEventType, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("empty %s payload", eventType))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("malformed %s payload", eventType))
	}
	if err := payloadValidator.Struct(dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("invalid %s payload", eventType))
	}
	return nil
}
