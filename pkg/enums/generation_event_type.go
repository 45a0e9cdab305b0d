package enums

import "fmt"

// GenerationEventType maps to the generation_events.event_type column.
type GenerationEventType string

const (
	GenerationEventSubmitted      GenerationEventType = "SUBMITTED"
	GenerationEventInProgress     GenerationEventType = "IN_PROGRESS"
	GenerationEventPostProcessing GenerationEventType = "POST_PROCESSING"
	GenerationEventCompleted      GenerationEventType = "COMPLETED"
	GenerationEventFailed         GenerationEventType = "FAILED"
)

var validGenerationEventTypes = []GenerationEventType{
	GenerationEventSubmitted,
	GenerationEventInProgress,
	GenerationEventPostProcessing,
	GenerationEventCompleted,
	GenerationEventFailed,
}

// IsValid reports whether the value matches the canonical generation event enum.
func (t GenerationEventType) IsValid() bool {
	for _, candidate := range validGenerationEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle event is expected.
func (t GenerationEventType) IsTerminal() bool {
	return t == GenerationEventCompleted || t == GenerationEventFailed
}

// IsSettled reports whether provider callbacks must no longer change state.
// POST_PROCESSING counts because the provider has already delivered output.
func (t GenerationEventType) IsSettled() bool {
	return t == GenerationEventPostProcessing || t.IsTerminal()
}

// ParseGenerationEventType converts raw input into GenerationEventType.
func ParseGenerationEventType(value string) (GenerationEventType, error) {
	for _, candidate := range validGenerationEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid generation event type %q", value)
}
