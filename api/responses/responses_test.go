package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
)

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"generation_id": "gen-1"})

	if got := w.Code; got != http.StatusAccepted {
		t.Fatalf("expected status 202 but got %d", got)
	}

	var body SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["generation_id"] != "gen-1" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
		details bool
	}{
		{
			name:    "validation keeps message and details",
			err:     pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "demo"}),
			status:  http.StatusBadRequest,
			message: "bad input",
			details: true,
		},
		{
			name:    "invalid token",
			err:     pkgerrors.New(pkgerrors.CodeInvalidToken, "callback token rejected"),
			status:  http.StatusBadRequest,
			message: "callback token rejected",
		},
		{
			name:    "not found",
			err:     pkgerrors.New(pkgerrors.CodeNotFound, "generation not found"),
			status:  http.StatusNotFound,
			message: "generation not found",
		},
		{
			name:    "provider submission is a 500 with message",
			err:     pkgerrors.New(pkgerrors.CodeProviderSubmission, "fal: status 422: bad prompt"),
			status:  http.StatusInternalServerError,
			message: "fal: status 422: bad prompt",
		},
		{
			name:    "dependency hides message",
			err:     pkgerrors.New(pkgerrors.CodeDependency, "gcs signer exploded"),
			status:  http.StatusServiceUnavailable,
			message: "dependency unavailable",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			if w.Code != tc.status {
				t.Fatalf("expected status %d but got %d", tc.status, w.Code)
			}
			var body ErrorEnvelope
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error envelope: %v", err)
			}
			if body.Error.Message != tc.message {
				t.Fatalf("expected message %q got %q", tc.message, body.Error.Message)
			}
			if (body.Error.Details != nil) != tc.details {
				t.Fatalf("unexpected details %v", body.Error.Details)
			}
		})
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "responses-test", Output: &buf})

	w := httptest.NewRecorder()
	WriteError(context.Background(), logg, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
	if !strings.Contains(buf.String(), "request.error") {
		t.Fatalf("expected error to be logged, got %s", buf.String())
	}
}
