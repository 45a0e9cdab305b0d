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

const defaultReplicateBaseURL = "https://api.replicate.com"

var errReplicateTokenRequired = errors.New("replicate api token is required")

// ReplicateAdapter talks to the Replicate predictions API.
type ReplicateAdapter struct {
	httpAdapter
	token   string
	version string
}

// NewReplicateAdapter builds a replicate adapter pinned to a model version.
func NewReplicateAdapter(token, version string, timeout time.Duration, opts ...Option) (*ReplicateAdapter, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errReplicateTokenRequired
	}
	return &ReplicateAdapter{
		httpAdapter: newHTTPAdapter(defaultReplicateBaseURL, timeout, opts),
		token:       t,
		version:     strings.TrimSpace(version),
	}, nil
}

func (a *ReplicateAdapter) Name() enums.ProviderName { return enums.ProviderReplicate }

func (a *ReplicateAdapter) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.token)
}

type predictionRequest struct {
	Version             string         `json:"version,omitempty"`
	Input               map[string]any `json:"input"`
	Webhook             string         `json:"webhook,omitempty"`
	WebhookEventsFilter []string       `json:"webhook_events_filter,omitempty"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Error  json.RawMessage `json:"error"`
}

func (a *ReplicateAdapter) Submit(ctx context.Context, input json.RawMessage, opts SubmitOptions) (*SubmitResult, error) {
	merged, err := mergeDefaults(input, a.defaults)
	if err != nil {
		return nil, submissionFailed(a.Name(), 0, "invalid input", err)
	}

	req := predictionRequest{Version: a.version, Input: merged}
	if opts.WebhookURL != "" {
		req.Webhook = opts.WebhookURL
		req.WebhookEventsFilter = []string{"completed"}
	}

	raw, err := a.do(ctx, http.MethodPost, a.baseURL+"/v1/predictions", req, a.authorize)
	if err != nil {
		return nil, submitFailure(a.Name(), err)
	}

	var resp prediction
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, submissionFailed(a.Name(), 0, "decode response", err)
	}
	if resp.ID == "" {
		return nil, submissionFailed(a.Name(), 0, "response missing id", nil)
	}
	return &SubmitResult{RequestID: resp.ID, Status: replicateStatus(resp.Status), Raw: raw}, nil
}

func (a *ReplicateAdapter) get(ctx context.Context, requestID string) (json.RawMessage, *prediction, error) {
	if err := requireRequestID(requestID); err != nil {
		return nil, nil, err
	}
	endpoint := fmt.Sprintf("%s/v1/predictions/%s", a.baseURL, url.PathEscape(requestID))
	raw, err := a.do(ctx, http.MethodGet, endpoint, nil, a.authorize)
	if err != nil {
		return nil, nil, dependencyError(a.Name(), "prediction fetch", err)
	}
	var p prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, dependencyError(a.Name(), "prediction decode", err)
	}
	return raw, &p, nil
}

func (a *ReplicateAdapter) CheckStatus(ctx context.Context, requestID string) (Status, error) {
	_, p, err := a.get(ctx, requestID)
	if err != nil {
		return StatusUnknown, err
	}
	return replicateStatus(p.Status), nil
}

// GetResult returns the whole prediction, which is also what Replicate posts
// to the webhook.
func (a *ReplicateAdapter) GetResult(ctx context.Context, requestID string) (json.RawMessage, error) {
	raw, _, err := a.get(ctx, requestID)
	return raw, err
}

func replicateStatus(s string) Status {
	switch strings.ToLower(s) {
	case "starting":
		return StatusQueued
	case "processing":
		return StatusInProgress
	case "succeeded":
		return StatusCompleted
	case "failed", "canceled":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
