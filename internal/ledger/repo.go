package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

// Repository manages persistence for generations and their events. There is
// deliberately no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateGeneration(ctx context.Context, generation *models.Generation) error
	FindGeneration(ctx context.Context, generationID string) (*models.Generation, error)
	Append(ctx context.Context, event *models.GenerationEvent) error
	Latest(ctx context.Context, generationID string) (*models.GenerationEvent, error)
	FirstOfType(ctx context.Context, generationID string, eventType enums.GenerationEventType) (*models.GenerationEvent, error)
	ListByGenerationID(ctx context.Context, generationID string) ([]models.GenerationEvent, error)
	ListOpen(ctx context.Context, query OpenQuery) ([]models.Generation, error)
}

// OpenQuery pages through open generations ordered by (created_at,
// generation_id). After resumes strictly past a previous page.
type OpenQuery struct {
	CreatedBefore time.Time
	// CreatedAfter is an inclusive floor; zero means no floor.
	CreatedAfter time.Time
	After        *OpenCursor
	Limit        int
}

// OpenCursor is the sort key of the last generation a page returned.
type OpenCursor struct {
	CreatedAt    time.Time
	GenerationID string
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateGeneration(ctx context.Context, generation *models.Generation) error {
	return r.db.WithContext(ctx).Create(generation).Error
}

func (r *repository) FindGeneration(ctx context.Context, generationID string) (*models.Generation, error) {
	var generation models.Generation
	if err := r.db.WithContext(ctx).
		Where("generation_id = ?", generationID).
		Take(&generation).Error; err != nil {
		return nil, err
	}
	return &generation, nil
}

func (r *repository) Append(ctx context.Context, event *models.GenerationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) Latest(ctx context.Context, generationID string) (*models.GenerationEvent, error) {
	var event models.GenerationEvent
	if err := r.db.WithContext(ctx).
		Where("generation_id = ?", generationID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(1).
		Take(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FirstOfType(ctx context.Context, generationID string, eventType enums.GenerationEventType) (*models.GenerationEvent, error) {
	var event models.GenerationEvent
	if err := r.db.WithContext(ctx).
		Where("generation_id = ? AND event_type = ?", generationID, eventType).
		Order("created_at ASC").
		Order("seq ASC").
		Limit(1).
		Take(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListByGenerationID(ctx context.Context, generationID string) ([]models.GenerationEvent, error) {
	var events []models.GenerationEvent
	if err := r.db.WithContext(ctx).
		Where("generation_id = ?", generationID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListOpen returns generations inside the query window that have not yet
// reached POST_PROCESSING or a terminal state, oldest first.
func (r *repository) ListOpen(ctx context.Context, query OpenQuery) ([]models.Generation, error) {
	settled := []enums.GenerationEventType{
		enums.GenerationEventPostProcessing,
		enums.GenerationEventCompleted,
		enums.GenerationEventFailed,
	}
	sub := r.db.
		Model(&models.GenerationEvent{}).
		Select("1").
		Where("generation_events.generation_id = generations.generation_id").
		Where("generation_events.event_type IN ?", settled)

	tx := r.db.WithContext(ctx).
		Where("generations.created_at < ?", query.CreatedBefore).
		Where("NOT EXISTS (?)", sub)
	if !query.CreatedAfter.IsZero() {
		tx = tx.Where("generations.created_at >= ?", query.CreatedAfter)
	}
	if query.After != nil {
		tx = tx.Where(
			"(generations.created_at > ? OR (generations.created_at = ? AND generations.generation_id > ?))",
			query.After.CreatedAt, query.After.CreatedAt, query.After.GenerationID,
		)
	}
	tx = tx.Order("generations.created_at ASC").Order("generations.generation_id ASC")
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var generations []models.Generation
	if err := tx.Find(&generations).Error; err != nil {
		return nil, err
	}
	return generations, nil
}
