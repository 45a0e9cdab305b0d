package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tellowai/admin-api-sub001/pkg/db"
	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(&models.Generation{}, &models.GenerationEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, clock *fixedClock) (Service, *gorm.DB) {
	t.Helper()
	conn := openTestDB(t)
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		DB:         db.NewFromConn(conn),
		Clock:      clock.Now,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, conn
}

func testContext() Context {
	return Context{
		OwnerRef:        "user-1",
		ResourceKind:    enums.ResourceKindImage,
		Provider:        enums.ProviderFal,
		CorrelationRefs: json.RawMessage(`{"project_id":"p-1"}`),
	}
}

func testBegin(id string) BeginInput {
	return BeginInput{
		GenerationID: id,
		Submitted:    NewSubmittedPayload(testContext(), "req-1", "IN_QUEUE", json.RawMessage(`{"prompt":"a cat"}`)),
	}
}

// storeRawSubmitted writes a generation whose SUBMITTED payload bypasses
// schema validation, as a broken writer or manual edit would leave it.
func storeRawSubmitted(t *testing.T, conn *gorm.DB, id string, payload string) {
	t.Helper()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := conn.Create(&models.Generation{
		GenerationID:    id,
		OwnerRef:        "user-1",
		ResourceKind:    enums.ResourceKindImage,
		Provider:        enums.ProviderFal,
		CorrelationRefs: json.RawMessage(`{}`),
		CreatedAt:       at,
	}).Error; err != nil {
		t.Fatalf("create generation: %v", err)
	}
	if err := conn.Create(&models.GenerationEvent{
		EventID:      uuid.New(),
		GenerationID: id,
		EventType:    enums.GenerationEventSubmitted,
		Payload:      json.RawMessage(payload),
		CreatedAt:    at,
	}).Error; err != nil {
		t.Fatalf("create submitted event: %v", err)
	}
}
