package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

const defaultFalBaseURL = "https://queue.fal.run"

var errFalKeyRequired = errors.New("fal api key is required")

// FalAdapter talks to the fal.ai queue API.
type FalAdapter struct {
	httpAdapter
	apiKey string
	model  string
}

// NewFalAdapter builds a fal adapter for the given model.
func NewFalAdapter(apiKey, model string, timeout time.Duration, opts ...Option) (*FalAdapter, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errFalKeyRequired
	}
	model = strings.Trim(strings.TrimSpace(model), "/")
	if model == "" {
		return nil, errors.New("fal model is required")
	}
	return &FalAdapter{
		httpAdapter: newHTTPAdapter(defaultFalBaseURL, timeout, opts),
		apiKey:      key,
		model:       model,
	}, nil
}

func (a *FalAdapter) Name() enums.ProviderName { return enums.ProviderFal }

func (a *FalAdapter) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Key "+a.apiKey)
}

func (a *FalAdapter) Submit(ctx context.Context, input json.RawMessage, opts SubmitOptions) (*SubmitResult, error) {
	body, err := mergeDefaults(input, a.defaults)
	if err != nil {
		return nil, submissionFailed(a.Name(), 0, "invalid input", err)
	}

	endpoint := fmt.Sprintf("%s/%s", a.baseURL, a.model)
	if opts.WebhookURL != "" {
		endpoint += "?" + url.Values{"fal_webhook": {opts.WebhookURL}}.Encode()
	}

	raw, err := a.do(ctx, http.MethodPost, endpoint, body, a.authorize)
	if err != nil {
		return nil, submitFailure(a.Name(), err)
	}

	var resp struct {
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, submissionFailed(a.Name(), 0, "decode response", err)
	}
	if resp.RequestID == "" {
		return nil, submissionFailed(a.Name(), 0, "response missing request_id", nil)
	}
	return &SubmitResult{RequestID: resp.RequestID, Status: falStatus(resp.Status), Raw: raw}, nil
}

func (a *FalAdapter) CheckStatus(ctx context.Context, requestID string) (Status, error) {
	if err := requireRequestID(requestID); err != nil {
		return StatusUnknown, err
	}
	endpoint := fmt.Sprintf("%s/%s/requests/%s/status", a.baseURL, a.model, url.PathEscape(requestID))
	raw, err := a.do(ctx, http.MethodGet, endpoint, nil, a.authorize)
	if err != nil {
		return StatusUnknown, dependencyError(a.Name(), "status check", err)
	}
	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StatusUnknown, dependencyError(a.Name(), "status decode", err)
	}
	if resp.Error != "" {
		return StatusFailed, nil
	}
	return falStatus(resp.Status), nil
}

func (a *FalAdapter) GetResult(ctx context.Context, requestID string) (json.RawMessage, error) {
	if err := requireRequestID(requestID); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/%s/requests/%s", a.baseURL, a.model, url.PathEscape(requestID))
	raw, err := a.do(ctx, http.MethodGet, endpoint, nil, a.authorize)
	if err != nil {
		return nil, dependencyError(a.Name(), "result fetch", err)
	}
	return raw, nil
}

func falStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "IN_QUEUE":
		return StatusQueued
	case "IN_PROGRESS":
		return StatusInProgress
	case "COMPLETED", "OK":
		return StatusCompleted
	case "ERROR":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
