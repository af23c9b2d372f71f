package services

import (
	"errors"
	"log"
	"strings"

	"github.com/lib/pq"

	"autoreply-server/database"
	"autoreply-server/models"
)

// ReplyTextGenerator produces draft text for feedback items. Implemented by
// AIService; tests substitute a stub.
type ReplyTextGenerator interface {
	Enabled() bool
	GenerateReviewReply(review *models.Review) (string, error)
	GenerateQuestionReply(question *models.Question) (string, error)
}

// GeneratorStats summarizes one generator run
type GeneratorStats struct {
	Marketplaces int
	Drafted      int
	Promoted     int64
	Errors       int
}

// GeneratorService creates reply drafts for unanswered reviews and questions.
// It only decides eligibility and the initial status; the text itself comes
// from the external AI gateway. Each run processes a bounded batch per
// marketplace to cap gateway cost per invocation.
type GeneratorService struct {
	generator ReplyTextGenerator
	settings  *SettingsService
	batchSize int
}

func NewGeneratorService(generator ReplyTextGenerator, settings *SettingsService, batchSize int) *GeneratorService {
	return &GeneratorService{
		generator: generator,
		settings:  settings,
		batchSize: batchSize,
	}
}

// Run walks all active marketplaces and drafts replies for their unanswered items
func (g *GeneratorService) Run() GeneratorStats {
	stats := GeneratorStats{}

	if !g.generator.Enabled() {
		log.Printf("⚠️ Draft generator skipped: AI gateway is not configured")
		return stats
	}

	var marketplaces []models.Marketplace
	if err := database.DB.Where("is_active = ?", true).Find(&marketplaces).Error; err != nil {
		log.Printf("❌ Draft generator failed to list marketplaces: %v", err)
		stats.Errors++
		return stats
	}

	for i := range marketplaces {
		mp := &marketplaces[i]

		settings, err := loadUserSettings(mp.UserID)
		if err != nil {
			log.Printf("❌ Draft generator: no settings for user %d: %v", mp.UserID, err)
			stats.Errors++
			continue
		}

		stats.Marketplaces++
		g.draftReviews(mp, settings, &stats)
		g.draftQuestions(mp, settings, &stats)

		// Auto-mode drafts are promoted to scheduled by the same routine the
		// settings hook uses, so both paths share one set of group rules.
		promoted, err := g.settings.PromoteAutoDrafts(settings)
		if err != nil {
			log.Printf("❌ Draft generator: promotion failed for user %d: %v", mp.UserID, err)
			stats.Errors++
		}
		stats.Promoted += promoted
	}

	return stats
}

// draftReviews creates drafts for up to batchSize unanswered reviews without a live reply
func (g *GeneratorService) draftReviews(mp *models.Marketplace, settings *models.UserSettings, stats *GeneratorStats) {
	var reviews []models.Review
	err := database.DB.
		Preload("Marketplace").
		Where("marketplace_id = ? AND is_answered = ?", mp.ID, false).
		Where("NOT EXISTS (SELECT 1 FROM replies WHERE replies.review_id = reviews.id AND replies.deleted_at IS NULL)").
		Order("created_at ASC").
		Limit(g.batchSize).
		Find(&reviews).Error
	if err != nil {
		log.Printf("❌ Draft generator: review query failed for marketplace %d: %v", mp.ID, err)
		stats.Errors++
		return
	}

	for i := range reviews {
		review := &reviews[i]

		text, err := g.generator.GenerateReviewReply(review)
		if err != nil {
			// Generation failure leaves no reply; the item stays eligible for
			// the next run.
			log.Printf("⚠️ Generation failed for review %d: %v", review.ID, err)
			stats.Errors++
			continue
		}

		mode := models.ReplyModeSemiAuto
		if !settings.LowRatingNeedsApproval(review.Rating) && settings.ModeForRating(review.Rating) == models.ModeAuto {
			mode = models.ReplyModeAuto
		}

		reply := models.Reply{
			ReviewID: &review.ID,
			Content:  text,
			Status:   models.ReplyStatusDrafted,
			Mode:     mode,
		}
		if err := database.DB.Create(&reply).Error; err != nil {
			if isUniqueViolation(err) {
				// Another run drafted this item between our existence check
				// and the insert; the partial unique index caught it.
				continue
			}
			log.Printf("❌ Failed to create draft for review %d: %v", review.ID, err)
			stats.Errors++
			continue
		}
		stats.Drafted++
	}
}

// draftQuestions creates drafts for up to batchSize unanswered questions without a live reply
func (g *GeneratorService) draftQuestions(mp *models.Marketplace, settings *models.UserSettings, stats *GeneratorStats) {
	var questions []models.Question
	err := database.DB.
		Preload("Marketplace").
		Where("marketplace_id = ? AND is_answered = ?", mp.ID, false).
		Where("NOT EXISTS (SELECT 1 FROM replies WHERE replies.question_id = questions.id AND replies.deleted_at IS NULL)").
		Order("created_at ASC").
		Limit(g.batchSize).
		Find(&questions).Error
	if err != nil {
		log.Printf("❌ Draft generator: question query failed for marketplace %d: %v", mp.ID, err)
		stats.Errors++
		return
	}

	for i := range questions {
		question := &questions[i]

		text, err := g.generator.GenerateQuestionReply(question)
		if err != nil {
			log.Printf("⚠️ Generation failed for question %d: %v", question.ID, err)
			stats.Errors++
			continue
		}

		mode := models.ReplyModeSemiAuto
		if settings.QuestionsMode == models.ModeAuto {
			mode = models.ReplyModeAuto
		}

		reply := models.Reply{
			QuestionID: &question.ID,
			Content:    text,
			Status:     models.ReplyStatusDrafted,
			Mode:       mode,
		}
		if err := database.DB.Create(&reply).Error; err != nil {
			if isUniqueViolation(err) {
				continue
			}
			log.Printf("❌ Failed to create draft for question %d: %v", question.ID, err)
			stats.Errors++
			continue
		}
		stats.Drafted++
	}
}

// loadUserSettings fetches the settings row for a marketplace owner
func loadUserSettings(userID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	if err := database.DB.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// isUniqueViolation reports whether an insert failed on a unique index
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// The pgx-backed driver and SQLite (tests) surface the violation as a
	// plain error string.
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
