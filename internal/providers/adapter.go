package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

const (
	defaultHTTPTimeout          = 30 * time.Second
	responseBodyReadLimit int64 = 1024
)

// Status is the provider-neutral job state returned by CheckStatus.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusUnknown    Status = "UNKNOWN"
)

// IsFinished reports whether the provider will not change the job anymore.
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SubmitOptions carries per-job settings. WebhookURL is opaque to the adapter.
type SubmitOptions struct {
	WebhookURL string
}

// SubmitResult is what a provider returns when it accepts a job.
type SubmitResult struct {
	RequestID string
	Status    Status
	Raw       json.RawMessage
}

// Adapter is implemented once per external generation backend.
type Adapter interface {
	Name() enums.ProviderName
	// Submit sends the job. It never retries; failures carry CodeProviderSubmission.
	Submit(ctx context.Context, input json.RawMessage, opts SubmitOptions) (*SubmitResult, error)
	CheckStatus(ctx context.Context, requestID string) (Status, error)
	GetResult(ctx context.Context, requestID string) (json.RawMessage, error)
}

// SubmissionError describes a rejected submission.
type SubmissionError struct {
	Provider   enums.ProviderName
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func submissionFailed(provider enums.ProviderName, statusCode int, message string, err error) error {
	subErr := &SubmissionError{Provider: provider, StatusCode: statusCode, Message: message, Err: err}
	return pkgerrors.Wrap(pkgerrors.CodeProviderSubmission, subErr, fmt.Sprintf("%s rejected the submission", provider))
}

// Option configures optional adapter behavior.
type Option func(*httpAdapter)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *httpAdapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithBaseURL overrides the provider API base URL.
func WithBaseURL(baseURL string) Option {
	return func(a *httpAdapter) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			a.baseURL = trimmed
		}
	}
}

// WithDefaults sets parameters merged under every caller input.
func WithDefaults(defaults map[string]any) Option {
	return func(a *httpAdapter) {
		a.defaults = defaults
	}
}

// httpAdapter holds the configuration shared by the JSON-over-HTTP providers.
type httpAdapter struct {
	httpClient *http.Client
	baseURL    string
	defaults   map[string]any
}

func newHTTPAdapter(baseURL string, timeout time.Duration, opts []Option) httpAdapter {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	a := httpAdapter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&a)
		}
	}
	return a
}

type apiError struct {
	statusCode int
	body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.statusCode, e.body)
}

// do sends the request and returns the response body for 2xx statuses.
func (a *httpAdapter) do(ctx context.Context, method, url string, body any, authorize func(*http.Request)) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	authorize(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, &apiError{statusCode: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return raw, nil
}

// mergeDefaults overlays the caller input on top of the configured defaults.
func mergeDefaults(input json.RawMessage, defaults map[string]any) (map[string]any, error) {
	merged := map[string]any{}
	for k, v := range defaults {
		merged[k] = v
	}
	if len(input) == 0 {
		return merged, nil
	}
	var caller map[string]any
	if err := json.Unmarshal(input, &caller); err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	for k, v := range caller {
		merged[k] = v
	}
	return merged, nil
}

func requireRequestID(requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider request id is required")
	}
	return nil
}

func dependencyError(provider enums.ProviderName, op string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s failed", provider, op))
}

func submitFailure(provider enums.ProviderName, err error) error {
	if apiErr, ok := err.(*apiError); ok {
		return submissionFailed(provider, apiErr.statusCode, apiErr.body, nil)
	}
	return submissionFailed(provider, 0, "request failed", err)
}
