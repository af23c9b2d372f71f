package models

import (
	"time"
)

// ReplyGenerationMode controls how generated drafts move toward publishing.
// "auto" drafts are promoted to scheduled without human review, "semi" drafts
// wait for manual approval.
type ReplyGenerationMode string

const (
	ModeAuto ReplyGenerationMode = "auto"
	ModeSemi ReplyGenerationMode = "semi"
)

// UserSettings holds per-user reply automation configuration. Created with
// defaults on registration, one row per user.
type UserSettings struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"uniqueIndex;not null"`

	SemiAutoMode             bool `json:"semi_auto_mode" gorm:"default:true"`
	RequireApprovalLowRating bool `json:"require_approval_low_rating" gorm:"default:true"`

	// Per-rating mode overrides for reviews
	ReviewsMode1 ReplyGenerationMode `json:"reviews_mode_1" gorm:"type:varchar(10);not null;default:'semi'"`
	ReviewsMode2 ReplyGenerationMode `json:"reviews_mode_2" gorm:"type:varchar(10);not null;default:'semi'"`
	ReviewsMode3 ReplyGenerationMode `json:"reviews_mode_3" gorm:"type:varchar(10);not null;default:'semi'"`
	ReviewsMode4 ReplyGenerationMode `json:"reviews_mode_4" gorm:"type:varchar(10);not null;default:'semi'"`
	ReviewsMode5 ReplyGenerationMode `json:"reviews_mode_5" gorm:"type:varchar(10);not null;default:'semi'"`

	QuestionsMode ReplyGenerationMode `json:"questions_mode" gorm:"type:varchar(10);not null;default:'semi'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the UserSettings model
func (UserSettings) TableName() string {
	return "user_settings"
}

// DefaultUserSettings returns the settings created on first registration.
func DefaultUserSettings(userID uint) *UserSettings {
	return &UserSettings{
		UserID:                   userID,
		SemiAutoMode:             true,
		RequireApprovalLowRating: true,
		ReviewsMode1:             ModeSemi,
		ReviewsMode2:             ModeSemi,
		ReviewsMode3:             ModeSemi,
		ReviewsMode4:             ModeSemi,
		ReviewsMode5:             ModeSemi,
		QuestionsMode:            ModeSemi,
	}
}

// ModeForRating returns the configured mode for a review with the given star rating.
func (s *UserSettings) ModeForRating(rating int) ReplyGenerationMode {
	switch rating {
	case 1:
		return s.ReviewsMode1
	case 2:
		return s.ReviewsMode2
	case 3:
		return s.ReviewsMode3
	case 4:
		return s.ReviewsMode4
	case 5:
		return s.ReviewsMode5
	default:
		return ModeSemi
	}
}

// LowRatingNeedsApproval reports whether a review with the given rating must
// always go through manual approval, regardless of the configured mode.
func (s *UserSettings) LowRatingNeedsApproval(rating int) bool {
	return s.RequireApprovalLowRating && rating <= 2
}

// UserSettingsUpdate represents the request structure for updating settings
type UserSettingsUpdate struct {
	SemiAutoMode             *bool                `json:"semi_auto_mode"`
	RequireApprovalLowRating *bool                `json:"require_approval_low_rating"`
	ReviewsMode1             *ReplyGenerationMode `json:"reviews_mode_1"`
	ReviewsMode2             *ReplyGenerationMode `json:"reviews_mode_2"`
	ReviewsMode3             *ReplyGenerationMode `json:"reviews_mode_3"`
	ReviewsMode4             *ReplyGenerationMode `json:"reviews_mode_4"`
	ReviewsMode5             *ReplyGenerationMode `json:"reviews_mode_5"`
	QuestionsMode            *ReplyGenerationMode `json:"questions_mode"`
}

// IsValidMode checks that a mode value is one of the supported modes
func IsValidMode(m ReplyGenerationMode) bool {
	return m == ModeAuto || m == ModeSemi
}
