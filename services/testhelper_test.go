package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"autoreply-server/database"
	"autoreply-server/models"
)

var testDBCounter int64

// setupTestDB points the global database handle at a fresh in-memory SQLite
// database for the duration of one test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection serializes the dispatcher's parallel writers, which
	// SQLite cannot handle concurrently.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Marketplace{},
		&models.Review{},
		&models.Question{},
		&models.Reply{},
		&models.ReplyLock{},
		&models.RefreshToken{},
		&models.KnowledgeItem{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_replies_active_review
			ON replies (review_id) WHERE review_id IS NOT NULL AND deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_replies_active_question
			ON replies (question_id) WHERE question_id IS NOT NULL AND deleted_at IS NULL`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create index: %v", err)
		}
	}

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		sqlDB.Close()
	})

	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		Email:        fmt.Sprintf("seller%d@example.com", time.Now().UnixNano()),
		FullName:     "Test Seller",
		PasswordHash: "hash",
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	settings := models.DefaultUserSettings(user.ID)
	if err := db.Create(settings).Error; err != nil {
		t.Fatalf("failed to create test settings: %v", err)
	}
	return user
}

func createTestMarketplace(t *testing.T, db *gorm.DB, userID uint, mpType models.MarketplaceType) *models.Marketplace {
	t.Helper()

	mp := &models.Marketplace{
		UserID:         userID,
		Type:           mpType,
		Name:           "Test Shop",
		ClientID:       "client",
		APIKey:         "key",
		IsActive:       true,
		LastSyncStatus: models.SyncStatusNever,
	}
	if err := db.Create(mp).Error; err != nil {
		t.Fatalf("failed to create test marketplace: %v", err)
	}
	return mp
}

func createTestReview(t *testing.T, db *gorm.DB, mpID uint, rating int) *models.Review {
	t.Helper()

	review := &models.Review{
		MarketplaceID: mpID,
		ExternalID:    fmt.Sprintf("rev-%d", time.Now().UnixNano()),
		ProductName:   "Widget",
		Rating:        rating,
		Text:          "Nice product",
		AuthorName:    "Buyer",
	}
	if err := db.Create(review).Error; err != nil {
		t.Fatalf("failed to create test review: %v", err)
	}
	return review
}

func createTestQuestion(t *testing.T, db *gorm.DB, mpID uint) *models.Question {
	t.Helper()

	question := &models.Question{
		MarketplaceID: mpID,
		ExternalID:    fmt.Sprintf("q-%d", time.Now().UnixNano()),
		ProductName:   "Widget",
		Text:          "Does it ship fast?",
		AuthorName:    "Buyer",
	}
	if err := db.Create(question).Error; err != nil {
		t.Fatalf("failed to create test question: %v", err)
	}
	return question
}

func createTestReply(t *testing.T, db *gorm.DB, reply *models.Reply) *models.Reply {
	t.Helper()

	if err := db.Create(reply).Error; err != nil {
		t.Fatalf("failed to create test reply: %v", err)
	}
	return reply
}

func reloadReply(t *testing.T, db *gorm.DB, id uint) *models.Reply {
	t.Helper()

	var reply models.Reply
	if err := db.First(&reply, id).Error; err != nil {
		t.Fatalf("failed to reload reply %d: %v", id, err)
	}
	return &reply
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}
