package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ReplyStatus represents the current position of a reply in its lifecycle.
//
// drafted -> scheduled -> publishing -> published (terminal)
//                                    -> failed    (terminal, retries exhausted)
// failed -> scheduled is a valid re-entry via manual retry.
// A publishing reply stuck for over 10 minutes is swept back to scheduled.
type ReplyStatus string

const (
	ReplyStatusDrafted    ReplyStatus = "drafted"
	ReplyStatusScheduled  ReplyStatus = "scheduled"
	ReplyStatusPublishing ReplyStatus = "publishing"
	ReplyStatusPublished  ReplyStatus = "published"
	ReplyStatusFailed     ReplyStatus = "failed"
)

// ReplyMode records how the reply was produced
type ReplyMode string

const (
	ReplyModeAuto     ReplyMode = "auto"
	ReplyModeSemiAuto ReplyMode = "semi_auto"
)

var ErrReplyTargetInvalid = errors.New("reply must reference exactly one review or question")

// Reply represents one attempt at answering a review or a question. Exactly
// one of ReviewID/QuestionID is set. Status moves through the lifecycle via
// the dispatcher, the settings migrations and the approve/retry endpoints.
type Reply struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ReviewID   *uint     `json:"review_id" gorm:"index"`
	Review     *Review   `json:"review,omitempty" gorm:"foreignKey:ReviewID"`
	QuestionID *uint     `json:"question_id" gorm:"index"`
	Question   *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`

	Content string      `json:"content" gorm:"type:text;not null"`
	Status  ReplyStatus `json:"status" gorm:"type:varchar(20);not null;default:'drafted';index"`
	Mode    ReplyMode   `json:"mode" gorm:"type:varchar(20);not null;default:'semi_auto'"`

	ScheduledAt  *time.Time `json:"scheduled_at" gorm:"index"`
	RetryCount   int        `json:"retry_count" gorm:"not null;default:0"`
	ErrorMessage *string    `json:"error_message" gorm:"type:text"`
	PublishedAt  *time.Time `json:"published_at"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for the Reply model
func (Reply) TableName() string {
	return "replies"
}

// BeforeCreate enforces the one-target invariant before the row exists
func (r *Reply) BeforeCreate(tx *gorm.DB) error {
	if (r.ReviewID == nil) == (r.QuestionID == nil) {
		return ErrReplyTargetInvalid
	}
	if r.Status == "" {
		r.Status = ReplyStatusDrafted
	}
	return nil
}

// IsTerminal reports whether the reply has reached a final state
func (r *Reply) IsTerminal() bool {
	return r.Status == ReplyStatusPublished || r.Status == ReplyStatusFailed
}

// IsForReview reports whether the reply answers a review (vs a question)
func (r *Reply) IsForReview() bool {
	return r.ReviewID != nil
}

// ReplyCreate represents the request structure for a manual reply draft
type ReplyCreate struct {
	ReviewID   *uint  `json:"review_id"`
	QuestionID *uint  `json:"question_id"`
	Content    string `json:"content" binding:"required"`
}

// ReplyUpdate represents the request structure for editing a draft's content
type ReplyUpdate struct {
	Content string `json:"content" binding:"required"`
}

// MarkPublishedRequest is the callback body posted by the browser extension
// after it attempted to post a reply through the marketplace UI.
type MarkPublishedRequest struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message"`
}
