package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

// GenerationEvent is one immutable entry of a generation's lifecycle. Seq
// breaks created_at ties in insertion order.
type GenerationEvent struct {
	Seq          int64                     `gorm:"column:seq;primaryKey;autoIncrement"`
	EventID      uuid.UUID                 `gorm:"column:event_id;type:uuid;uniqueIndex;not null"`
	GenerationID string                    `gorm:"column:generation_id;not null;index"`
	EventType    enums.GenerationEventType `gorm:"column:event_type;not null"`
	Payload      json.RawMessage           `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time                 `gorm:"column:created_at;not null"`
}

func (GenerationEvent) TableName() string { return "generation_events" }
