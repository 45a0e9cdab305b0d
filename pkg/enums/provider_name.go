package enums

import (
	"fmt"
	"strings"
)

// ProviderName identifies an external compute provider integration.
type ProviderName string

const (
	ProviderFal       ProviderName = "fal"
	ProviderReplicate ProviderName = "replicate"
)

var validProviderNames = []ProviderName{
	ProviderFal,
	ProviderReplicate,
}

// IsValid reports whether the value names a known provider.
func (p ProviderName) IsValid() bool {
	for _, candidate := range validProviderNames {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProviderName converts raw input (case-insensitive) into ProviderName.
func ParseProviderName(value string) (ProviderName, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validProviderNames {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider %q", value)
}
