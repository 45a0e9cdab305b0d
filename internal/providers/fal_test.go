package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

func TestFalSubmitSendsWebhookAndMergedInput(t *testing.T) {
	var (
		gotPath    string
		gotWebhook string
		gotAuth    string
		gotBody    map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotWebhook = r.URL.Query().Get("fal_webhook")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"request_id":"req-123","status":"IN_QUEUE"}`))
	}))
	defer srv.Close()

	adapter, err := NewFalAdapter("secret", "fal-ai/flux/dev", 0,
		WithBaseURL(srv.URL),
		WithDefaults(map[string]any{"num_images": float64(1), "prompt": "default"}),
	)
	if err != nil {
		t.Fatalf("NewFalAdapter: %v", err)
	}

	res, err := adapter.Submit(context.Background(), json.RawMessage(`{"prompt":"a red fox"}`), SubmitOptions{WebhookURL: "https://api.test/image/tok/webhook"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.RequestID != "req-123" || res.Status != StatusQueued {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotPath != "/fal-ai/flux/dev" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotWebhook != "https://api.test/image/tok/webhook" {
		t.Fatalf("unexpected webhook %q", gotWebhook)
	}
	if gotAuth != "Key secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["prompt"] != "a red fox" || gotBody["num_images"] != float64(1) {
		t.Fatalf("caller input should override defaults, got %v", gotBody)
	}
}

func TestFalSubmitRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"prompt too long"}`))
	}))
	defer srv.Close()

	adapter, err := NewFalAdapter("secret", "fal-ai/flux/dev", 0, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewFalAdapter: %v", err)
	}

	_, err = adapter.Submit(context.Background(), json.RawMessage(`{"prompt":"x"}`), SubmitOptions{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeProviderSubmission) {
		t.Fatalf("expected PROVIDER_SUBMISSION_ERROR, got %v", err)
	}
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError in chain")
	}
	if subErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", subErr.StatusCode)
	}
}

func TestFalSubmitNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	adapter, err := NewFalAdapter("secret", "fal-ai/flux/dev", 0, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewFalAdapter: %v", err)
	}
	_, err = adapter.Submit(context.Background(), json.RawMessage(`{}`), SubmitOptions{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeProviderSubmission) {
		t.Fatalf("expected PROVIDER_SUBMISSION_ERROR, got %v", err)
	}
}

func TestFalStatusAndResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fal-ai/flux/dev/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
	})
	mux.HandleFunc("/fal-ai/flux/dev/requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"images":[{"url":"https://cdn/x.png"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	adapter, err := NewFalAdapter("secret", "fal-ai/flux/dev", 0, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewFalAdapter: %v", err)
	}

	status, err := adapter.CheckStatus(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", status)
	}

	raw, err := adapter.GetResult(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if string(raw) != `{"images":[{"url":"https://cdn/x.png"}]}` {
		t.Fatalf("unexpected result %s", raw)
	}

	if _, err := adapter.CheckStatus(context.Background(), " "); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for blank request id, got %v", err)
	}
}

func TestNewFalAdapterRequiresKey(t *testing.T) {
	if _, err := NewFalAdapter(" ", "model", 0); err == nil {
		t.Fatal("expected missing key error")
	}
}
