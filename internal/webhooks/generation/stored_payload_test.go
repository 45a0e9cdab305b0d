package generationwebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tellowai/admin-api-sub001/internal/ledger"
	"github.com/tellowai/admin-api-sub001/pkg/callbacktoken"
	"github.com/tellowai/admin-api-sub001/pkg/db"
	"github.com/tellowai/admin-api-sub001/pkg/db/models"
	"github.com/tellowai/admin-api-sub001/pkg/enums"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
)

func openLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:gateway_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

func TestHandleCallbackRefusesCorruptSubmittedPayload(t *testing.T) {
	conn := openLedgerDB(t)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repository: ledger.NewRepository(conn),
		DB:         db.NewFromConn(conn),
	})
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := conn.Create(&models.Generation{
		GenerationID:    "gen-corrupt",
		OwnerRef:        "u1",
		ResourceKind:    enums.ResourceKindImage,
		Provider:        enums.ProviderFal,
		CorrelationRefs: json.RawMessage(`{}`),
		CreatedAt:       at,
	}).Error; err != nil {
		t.Fatalf("create generation: %v", err)
	}
	// owner_ref is missing from the stored context
	if err := conn.Create(&models.GenerationEvent{
		EventID:      uuid.New(),
		GenerationID: "gen-corrupt",
		EventType:    enums.GenerationEventSubmitted,
		Payload:      json.RawMessage(`{"version":1,"context":{"resource_kind":"image","provider":"fal"},"input":{"prompt":"x"}}`),
		CreatedAt:    at,
	}).Error; err != nil {
		t.Fatalf("create submitted event: %v", err)
	}

	codec, err := callbacktoken.NewAEADCodec("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	pub := &fakePublisher{}
	svc, err := NewService(ServiceParams{
		Ledger:    ledgerSvc,
		Publisher: pub,
		Tokens:    codec,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	tok, err := codec.Encode("gen-corrupt")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = svc.HandleCallback(context.Background(), "image", tok, successBody)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected INTERNAL for corrupt stored payload, got %v", err)
	}

	events, err := ledgerSvc.AllEvents(context.Background(), "gen-corrupt")
	if err != nil {
		t.Fatalf("AllEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("corrupt generation must not gain events, got %d", len(events))
	}
	if len(pub.messages) != 0 {
		t.Fatalf("nothing should be published, got %+v", pub.messages)
	}
}
