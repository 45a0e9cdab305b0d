package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tellowai/admin-api-sub001/pkg/config"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

func TestRegistryFromConfig(t *testing.T) {
	cfg := config.ProvidersConfig{
		Image:  "fal",
		Video:  "FAL",
		Audio:  "replicate",
		Tuning: "replicate",
		Fal: config.FalConfig{
			APIKey:     "k",
			BaseURL:    "https://queue.fal.run",
			ImageModel: "fal-ai/flux/dev",
			VideoModel: "fal-ai/kling-video/v1.6/standard/text-to-video",
		},
		Replicate: config.ReplicateConfig{
			APIToken:      "t",
			BaseURL:       "https://api.replicate.com",
			AudioVersion:  "audio-v",
			TuningVersion: "tuning-v",
		},
	}
	reg, err := NewRegistryFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}

	a, err := reg.ForKind(enums.ResourceKindVideo)
	if err != nil || a.Name() != enums.ProviderFal {
		t.Fatalf("expected fal for video, got %v %v", a, err)
	}
	if a.(*FalAdapter).model != "fal-ai/kling-video/v1.6/standard/text-to-video" {
		t.Fatalf("video routed to model %q", a.(*FalAdapter).model)
	}
	a, err = reg.ForKind(enums.ResourceKindAudio)
	if err != nil || a.Name() != enums.ProviderReplicate {
		t.Fatalf("expected replicate for audio, got %v %v", a, err)
	}
	if a.(*ReplicateAdapter).version != "audio-v" {
		t.Fatalf("audio routed to version %q", a.(*ReplicateAdapter).version)
	}
	if _, err := reg.ByName(enums.ProviderReplicate, enums.ResourceKindTuning); err != nil {
		t.Fatalf("ByName: %v", err)
	}
	if _, err := reg.ByName(enums.ProviderReplicate, enums.ResourceKindImage); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY for kind without a replicate version, got %v", err)
	}
}

func TestRegistrySendsEachKindToItsOwnModel(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"request_id":"req-1","status":"IN_QUEUE"}`))
	}))
	defer srv.Close()

	reg, err := NewRegistryFromConfig(config.ProvidersConfig{
		Image: "fal",
		Video: "fal",
		Fal: config.FalConfig{
			APIKey:     "k",
			BaseURL:    srv.URL,
			ImageModel: "fal-ai/flux/dev",
			VideoModel: "fal-ai/kling-video/v1.6/standard/text-to-video",
			Defaults:   config.JSONObject{"seed": float64(7)},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}

	for _, kind := range []enums.ResourceKind{enums.ResourceKindImage, enums.ResourceKindVideo} {
		adapter, err := reg.ForKind(kind)
		if err != nil {
			t.Fatalf("ForKind %s: %v", kind, err)
		}
		if _, err := adapter.Submit(context.Background(), json.RawMessage(`{"prompt":"x"}`), SubmitOptions{}); err != nil {
			t.Fatalf("Submit %s: %v", kind, err)
		}
	}

	if len(paths) != 2 {
		t.Fatalf("expected two submissions, got %v", paths)
	}
	if paths[0] != "/fal-ai/flux/dev" {
		t.Fatalf("image posted to %q", paths[0])
	}
	if paths[1] != "/fal-ai/kling-video/v1.6/standard/text-to-video" {
		t.Fatalf("video posted to %q", paths[1])
	}
	for i, body := range bodies {
		if body["seed"] != float64(7) || body["prompt"] != "x" {
			t.Fatalf("submission %d missing configured defaults: %v", i, body)
		}
	}
}

func TestRegistryRejectsRouteWithoutCredentials(t *testing.T) {
	cfg := config.ProvidersConfig{
		Image: "replicate",
		Fal:   config.FalConfig{APIKey: "k", ImageModel: "m"},
	}
	if _, err := NewRegistryFromConfig(cfg); err == nil {
		t.Fatal("expected error for route to unconfigured provider")
	}
}

func TestRegistryRejectsRouteWithoutModelForKind(t *testing.T) {
	cfg := config.ProvidersConfig{
		Audio: "fal",
		Fal:   config.FalConfig{APIKey: "k", ImageModel: "fal-ai/flux/dev"},
	}
	if _, err := NewRegistryFromConfig(cfg); err == nil {
		t.Fatal("expected error for kind routed to fal without an audio model")
	}
}

func TestRegistryRejectsDuplicateBinding(t *testing.T) {
	a, err := NewFalAdapter("k", "fal-ai/flux/dev", 0)
	if err != nil {
		t.Fatalf("NewFalAdapter: %v", err)
	}
	b, err := NewFalAdapter("k", "fal-ai/flux/schnell", 0)
	if err != nil {
		t.Fatalf("NewFalAdapter: %v", err)
	}
	_, err = NewRegistry(nil,
		Binding{Kind: enums.ResourceKindImage, Adapter: a},
		Binding{Kind: enums.ResourceKindImage, Adapter: b},
	)
	if err == nil {
		t.Fatal("expected duplicate binding to be rejected")
	}
}

func TestRegistryUnknownLookups(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := reg.ForKind(enums.ResourceKindImage); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION for unrouted kind, got %v", err)
	}
	if _, err := reg.ByName(enums.ProviderFal, enums.ResourceKindImage); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY for unknown provider, got %v", err)
	}
}
