package generationwebhook

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

var (
	failureStatuses = map[string]bool{
		"failed":    true,
		"failure":   true,
		"error":     true,
		"canceled":  true,
		"cancelled": true,
	}
	progressStatuses = map[string]bool{
		"in_progress": true,
		"processing":  true,
		"in_queue":    true,
		"queued":      true,
		"starting":    true,
	}
)

// callback is a provider delivery split into the payload we persist and the
// status signals used to classify it.
type callback struct {
	payload json.RawMessage
	status  string
	errMsg  string
}

// parseCallback accepts either {"payload": ...} or a bare provider body. When
// the body is wrapped, status and error may appear on either level.
func parseCallback(body json.RawMessage) callback {
	cb := callback{payload: body}

	outer, ok := objectFields(body)
	if !ok {
		return cb
	}
	if inner, wrapped := outer["payload"]; wrapped {
		cb.payload = inner
		cb.status, cb.errMsg = signals(inner)
	}
	if cb.status == "" || cb.errMsg == "" {
		status, errMsg := signalsFromFields(outer)
		if cb.status == "" {
			cb.status = status
		}
		if cb.errMsg == "" {
			cb.errMsg = errMsg
		}
	}
	return cb
}

// classify maps a callback onto the ledger event it should produce.
func (cb callback) classify() enums.GenerationEventType {
	switch {
	case cb.errMsg != "" || failureStatuses[cb.status]:
		return enums.GenerationEventFailed
	case progressStatuses[cb.status]:
		return enums.GenerationEventInProgress
	default:
		return enums.GenerationEventPostProcessing
	}
}

func (cb callback) failureMessage() string {
	if cb.errMsg != "" {
		return cb.errMsg
	}
	return "provider reported status " + cb.status
}

func signals(raw json.RawMessage) (string, string) {
	fields, ok := objectFields(raw)
	if !ok {
		return "", ""
	}
	return signalsFromFields(fields)
}

func signalsFromFields(fields map[string]json.RawMessage) (string, string) {
	var status string
	if raw, ok := fields["status"]; ok {
		_ = json.Unmarshal(raw, &status)
	}
	return strings.ToLower(strings.TrimSpace(status)), errorText(fields["error"])
}

// errorText returns a readable message for a non-empty error field. Null,
// false, empty strings and empty objects count as no error.
func errorText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch string(trimmed) {
	case "null", "false", `""`, "{}", "[]":
		return ""
	}

	var s string
	if json.Unmarshal(trimmed, &s) == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(trimmed, &obj) == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Detail != "" {
			return obj.Detail
		}
	}
	return string(trimmed)
}

func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}
