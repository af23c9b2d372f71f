package models

import (
	"time"

	"gorm.io/gorm"
)

// KnowledgeItem is a user-maintained Q/A snippet injected into the draft
// generation prompt so replies mention shop-specific facts (delivery terms,
// warranty policy and so on).
type KnowledgeItem struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UserID   uint   `json:"user_id" gorm:"not null;index"`
	Title    string `json:"title" gorm:"size:255;not null"`
	Content  string `json:"content" gorm:"type:text;not null"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for the KnowledgeItem model
func (KnowledgeItem) TableName() string {
	return "knowledge_items"
}

// KnowledgeItemCreate represents the request structure for adding a knowledge item
type KnowledgeItemCreate struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}
