package enums

import (
	"fmt"
	"strings"
)

// ResourceKind names the family of artifact a generation produces. It doubles
// as the webhook URL domain segment.
type ResourceKind string

const (
	ResourceKindImage  ResourceKind = "image"
	ResourceKindVideo  ResourceKind = "video"
	ResourceKindAudio  ResourceKind = "audio"
	ResourceKindTuning ResourceKind = "tuning"
)

var validResourceKinds = []ResourceKind{
	ResourceKindImage,
	ResourceKindVideo,
	ResourceKindAudio,
	ResourceKindTuning,
}

// ResourceKinds returns every supported resource kind.
func ResourceKinds() []ResourceKind {
	out := make([]ResourceKind, len(validResourceKinds))
	copy(out, validResourceKinds)
	return out
}

// IsValid reports whether the value matches a supported resource kind.
func (k ResourceKind) IsValid() bool {
	for _, candidate := range validResourceKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseResourceKind converts raw input (case-insensitive) into ResourceKind.
func ParseResourceKind(value string) (ResourceKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validResourceKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid resource kind %q", value)
}
