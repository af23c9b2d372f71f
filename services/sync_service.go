package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"autoreply-server/database"
	"autoreply-server/models"
)

// SyncService pulls new reviews and questions from marketplace APIs into the
// local store. Items are deduplicated by (marketplace_id, external_id); the
// sync never deletes or mutates existing items.
type SyncService struct {
	ozon      *OzonService
	fetchSize int
}

func NewSyncService(ozon *OzonService) *SyncService {
	return &SyncService{ozon: ozon, fetchSize: 100}
}

// SyncStats summarizes one sync pass
type SyncStats struct {
	Marketplaces int
	NewReviews   int
	NewQuestions int
	Errors       int
}

// Run synchronizes all active marketplaces
func (s *SyncService) Run() SyncStats {
	stats := SyncStats{}

	var marketplaces []models.Marketplace
	if err := database.DB.Where("is_active = ?", true).Find(&marketplaces).Error; err != nil {
		log.Printf("❌ Sync failed to list marketplaces: %v", err)
		stats.Errors++
		return stats
	}

	for i := range marketplaces {
		mp := &marketplaces[i]
		if mp.Type != models.MarketplaceOzon {
			// Only Ozon sync is implemented; other marketplace types are
			// populated through their own import paths.
			continue
		}

		stats.Marketplaces++
		if err := s.syncMarketplace(mp, &stats); err != nil {
			stats.Errors++
			errMsg := err.Error()
			database.DB.Model(mp).Updates(map[string]interface{}{
				"last_sync_status": models.SyncStatusFailed,
				"last_sync_error":  errMsg,
			})
			log.Printf("❌ Sync failed for marketplace %d (%s): %v", mp.ID, mp.Name, err)
			continue
		}

		now := time.Now()
		database.DB.Model(mp).Updates(map[string]interface{}{
			"last_sync_status": models.SyncStatusOK,
			"last_sync_error":  nil,
			"last_sync_at":     now,
		})
	}

	return stats
}

func (s *SyncService) syncMarketplace(mp *models.Marketplace, stats *SyncStats) error {
	database.DB.Model(mp).Update("last_sync_status", models.SyncStatusRunning)

	reviews, err := s.ozon.FetchReviews(mp, s.fetchSize)
	if err != nil {
		return err
	}
	for _, r := range reviews {
		created, err := s.upsertReview(mp, r)
		if err != nil {
			log.Printf("⚠️ Failed to store review %s: %v", r.ID, err)
			stats.Errors++
			continue
		}
		if created {
			stats.NewReviews++
		}
	}

	questions, err := s.ozon.FetchQuestions(mp, s.fetchSize)
	if err != nil {
		return err
	}
	for _, q := range questions {
		created, err := s.upsertQuestion(mp, q)
		if err != nil {
			log.Printf("⚠️ Failed to store question %s: %v", q.ID, err)
			stats.Errors++
			continue
		}
		if created {
			stats.NewQuestions++
		}
	}

	return nil
}

func (s *SyncService) upsertReview(mp *models.Marketplace, r OzonReview) (bool, error) {
	var existing models.Review
	err := database.DB.Where("marketplace_id = ? AND external_id = ?", mp.ID, r.ID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	publishedAt := r.PublishedAt
	review := models.Review{
		MarketplaceID: mp.ID,
		ExternalID:    r.ID,
		ProductSKU:    r.SKU,
		ProductName:   r.ProductName,
		Rating:        r.Rating,
		Text:          r.Text,
		AuthorName:    r.AuthorName,
		IsAnswered:    r.IsAnswered,
		PublishedAt:   &publishedAt,
	}
	if err := database.DB.Create(&review).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SyncService) upsertQuestion(mp *models.Marketplace, q OzonQuestion) (bool, error) {
	var existing models.Question
	err := database.DB.Where("marketplace_id = ? AND external_id = ?", mp.ID, q.ID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	askedAt := q.AskedAt
	question := models.Question{
		MarketplaceID: mp.ID,
		ExternalID:    q.ID,
		ProductSKU:    q.SKU,
		ProductName:   q.ProductName,
		Text:          q.Text,
		AuthorName:    q.AuthorName,
		IsAnswered:    q.IsAnswered,
		AskedAt:       &askedAt,
	}
	if err := database.DB.Create(&question).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
