package services

import (
	"log"
	"time"

	"gorm.io/gorm"

	"autoreply-server/database"
	"autoreply-server/models"
)

// SettingsService migrates existing replies between drafted and scheduled when
// a user's generation mode changes. Migration is strictly per rating/type
// group: flipping reviews_mode_3 never touches replies for 4-star reviews or
// questions.
type SettingsService struct{}

func NewSettingsService() *SettingsService {
	return &SettingsService{}
}

// ApplyModeMigrations moves replies to match the (possibly just changed)
// settings: drafted replies in auto groups become scheduled, scheduled replies
// in semi groups fall back to drafted. Returns (promoted, demoted) counts.
func (s *SettingsService) ApplyModeMigrations(settings *models.UserSettings) (int64, int64, error) {
	var promoted, demoted int64

	for rating := 1; rating <= 5; rating++ {
		mode := settings.ModeForRating(rating)
		scope := reviewRepliesScope(settings.UserID, rating)

		switch {
		case mode == models.ModeAuto && !settings.LowRatingNeedsApproval(rating):
			n, err := promoteDrafts(scope)
			if err != nil {
				return promoted, demoted, err
			}
			promoted += n
		case mode == models.ModeSemi:
			n, err := demoteScheduled(scope)
			if err != nil {
				return promoted, demoted, err
			}
			demoted += n
		}
		// Low-rating groups with approval required never auto-promote, and
		// their existing drafts simply stay drafted.
	}

	questionScope := questionRepliesScope(settings.UserID)
	if settings.QuestionsMode == models.ModeAuto {
		n, err := promoteDrafts(questionScope)
		if err != nil {
			return promoted, demoted, err
		}
		promoted += n
	} else {
		n, err := demoteScheduled(questionScope)
		if err != nil {
			return promoted, demoted, err
		}
		demoted += n
	}

	if promoted > 0 || demoted > 0 {
		log.Printf("⚙️ Settings migration for user %d: %d promoted, %d demoted", settings.UserID, promoted, demoted)
	}
	return promoted, demoted, nil
}

// PromoteAutoDrafts schedules drafted replies whose group is in auto mode.
// Shared between the settings hook and the draft generator so auto-mode
// drafts flow to the dispatcher without a settings change.
func (s *SettingsService) PromoteAutoDrafts(settings *models.UserSettings) (int64, error) {
	var promoted int64

	for rating := 1; rating <= 5; rating++ {
		if settings.ModeForRating(rating) != models.ModeAuto || settings.LowRatingNeedsApproval(rating) {
			continue
		}
		n, err := promoteDrafts(reviewRepliesScope(settings.UserID, rating))
		if err != nil {
			return promoted, err
		}
		promoted += n
	}

	if settings.QuestionsMode == models.ModeAuto {
		n, err := promoteDrafts(questionRepliesScope(settings.UserID))
		if err != nil {
			return promoted, err
		}
		promoted += n
	}

	return promoted, nil
}

// reviewRepliesScope scopes reply updates to one user's reviews with a given rating
func reviewRepliesScope(userID uint, rating int) *gorm.DB {
	sub := database.DB.Table("reviews").
		Select("reviews.id").
		Joins("JOIN marketplaces ON marketplaces.id = reviews.marketplace_id").
		Where("marketplaces.user_id = ? AND reviews.rating = ? AND reviews.deleted_at IS NULL", userID, rating)

	return database.DB.Model(&models.Reply{}).Where("review_id IN (?)", sub)
}

// questionRepliesScope scopes reply updates to one user's questions
func questionRepliesScope(userID uint) *gorm.DB {
	sub := database.DB.Table("questions").
		Select("questions.id").
		Joins("JOIN marketplaces ON marketplaces.id = questions.marketplace_id").
		Where("marketplaces.user_id = ? AND questions.deleted_at IS NULL", userID)

	return database.DB.Model(&models.Reply{}).Where("question_id IN (?)", sub)
}

func promoteDrafts(scope *gorm.DB) (int64, error) {
	result := scope.
		Where("status = ?", models.ReplyStatusDrafted).
		Updates(map[string]interface{}{
			"status":       models.ReplyStatusScheduled,
			"scheduled_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func demoteScheduled(scope *gorm.DB) (int64, error) {
	result := scope.
		Where("status = ?", models.ReplyStatusScheduled).
		Updates(map[string]interface{}{
			"status":       models.ReplyStatusDrafted,
			"scheduled_at": nil,
		})
	return result.RowsAffected, result.Error
}
