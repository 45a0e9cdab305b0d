package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

func seedGeneration(t *testing.T, repo Repository, id string, createdAt time.Time, types ...enums.GenerationEventType) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateGeneration(ctx, &models.Generation{
		GenerationID:    id,
		OwnerRef:        "owner",
		ResourceKind:    enums.ResourceKindVideo,
		Provider:        enums.ProviderReplicate,
		CorrelationRefs: json.RawMessage(`{}`),
		CreatedAt:       createdAt,
	}))
	for i, eventType := range types {
		require.NoError(t, repo.Append(ctx, &models.GenerationEvent{
			EventID:      uuid.New(),
			GenerationID: id,
			EventType:    eventType,
			Payload:      json.RawMessage(`{}`),
			CreatedAt:    createdAt.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestRepositoryLatestBreaksTiesBySeq(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedGeneration(t, repo, "gen-tie", at, enums.GenerationEventSubmitted)
	second := &models.GenerationEvent{
		EventID:      uuid.New(),
		GenerationID: "gen-tie",
		EventType:    enums.GenerationEventInProgress,
		Payload:      json.RawMessage(`{}`),
		CreatedAt:    at,
	}
	require.NoError(t, repo.Append(ctx, second))

	latest, err := repo.Latest(ctx, "gen-tie")
	require.NoError(t, err)
	assert.Equal(t, second.EventID, latest.EventID)

	first, err := repo.FirstOfType(ctx, "gen-tie", enums.GenerationEventSubmitted)
	require.NoError(t, err)
	assert.Equal(t, enums.GenerationEventSubmitted, first.EventType)
}

func TestRepositoryFindGenerationMissing(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	_, err := repo.FindGeneration(context.Background(), "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = repo.Latest(context.Background(), "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryListOpen(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	seedGeneration(t, repo, "open-old", base, enums.GenerationEventSubmitted, enums.GenerationEventInProgress)
	seedGeneration(t, repo, "open-older", base.Add(-time.Hour), enums.GenerationEventSubmitted)
	seedGeneration(t, repo, "post", base, enums.GenerationEventSubmitted, enums.GenerationEventPostProcessing)
	seedGeneration(t, repo, "failed", base, enums.GenerationEventSubmitted, enums.GenerationEventFailed)
	seedGeneration(t, repo, "fresh", base.Add(2*time.Hour), enums.GenerationEventSubmitted)

	open, err := repo.ListOpen(context.Background(), OpenQuery{CreatedBefore: base.Add(time.Hour), Limit: 10})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "open-older", open[0].GenerationID)
	assert.Equal(t, "open-old", open[1].GenerationID)

	limited, err := repo.ListOpen(context.Background(), OpenQuery{CreatedBefore: base.Add(time.Hour), Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	floored, err := repo.ListOpen(context.Background(), OpenQuery{
		CreatedBefore: base.Add(time.Hour),
		CreatedAfter:  base.Add(-time.Minute),
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, floored, 1)
	assert.Equal(t, "open-old", floored[0].GenerationID)
}

func TestRepositoryListOpenResumesAfterCursor(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	seedGeneration(t, repo, "b-same", base, enums.GenerationEventSubmitted)
	seedGeneration(t, repo, "a-same", base, enums.GenerationEventSubmitted)
	seedGeneration(t, repo, "later", base.Add(time.Minute), enums.GenerationEventSubmitted)

	query := OpenQuery{CreatedBefore: base.Add(time.Hour), Limit: 2}
	first, err := repo.ListOpen(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a-same", first[0].GenerationID)
	assert.Equal(t, "b-same", first[1].GenerationID)

	query.After = &OpenCursor{CreatedAt: first[1].CreatedAt, GenerationID: first[1].GenerationID}
	second, err := repo.ListOpen(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "later", second[0].GenerationID)
}
