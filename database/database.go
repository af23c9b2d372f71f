package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"autoreply-server/config"
	"autoreply-server/models"
)

var DB *gorm.DB

// Initialize sets up the database connection and runs migrations
func Initialize() error {
	connString := config.AppConfig.Database.URL
	if connString == "" {
		return fmt.Errorf("DB_URL is required. Set DB_URL to a valid Postgres URL")
	}

	// Configure GORM logger
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	// Open database connection
	var err error
	DB, err = gorm.Open(postgres.Open(connString), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Successfully connected to database")

	// Run migrations
	if err := runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("✅ Database migrations completed successfully")

	return nil
}

// runMigrations creates or updates database tables
func runMigrations() error {
	if err := DB.AutoMigrate(
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
		return err
	}

	// One live reply per feedback item. Partial unique indexes close the
	// generator's check-then-insert race; soft-deleted replies are excluded so
	// a deleted draft can be replaced.
	if err := migrateActiveReplyUniqueness(); err != nil {
		return err
	}

	return nil
}

// migrateActiveReplyUniqueness creates the partial unique indexes on replies
func migrateActiveReplyUniqueness() error {
	if err := DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_replies_active_review
		ON replies (review_id) WHERE review_id IS NOT NULL AND deleted_at IS NULL`).Error; err != nil {
		return err
	}
	if err := DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_replies_active_question
		ON replies (question_id) WHERE question_id IS NOT NULL AND deleted_at IS NULL`).Error; err != nil {
		return err
	}
	return nil
}

func GetDB() *gorm.DB {
	return DB
}
