package models

import (
	"encoding/json"
	"time"

	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

// Generation is the header row created once alongside the SUBMITTED event.
// It is never updated; lifecycle state lives in GenerationEvent.
type Generation struct {
	GenerationID    string             `gorm:"column:generation_id;primaryKey"`
	OwnerRef        string             `gorm:"column:owner_ref;not null;index"`
	ResourceKind    enums.ResourceKind `gorm:"column:resource_kind;not null"`
	Provider        enums.ProviderName `gorm:"column:provider;not null"`
	CorrelationRefs json.RawMessage    `gorm:"column:correlation_refs;type:jsonb"`
	CreatedAt       time.Time          `gorm:"column:created_at;not null"`
}

func (Generation) TableName() string { return "generations" }
