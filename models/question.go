package models

import (
	"time"

	"gorm.io/gorm"
)

// Question represents a buyer product question pulled from a marketplace by
// the sync job. Same lifecycle as Review, minus the star rating.
type Question struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	MarketplaceID uint        `json:"marketplace_id" gorm:"not null;index;uniqueIndex:idx_questions_external"`
	Marketplace   Marketplace `json:"marketplace,omitempty" gorm:"foreignKey:MarketplaceID"`
	ExternalID    string      `json:"external_id" gorm:"size:64;not null;uniqueIndex:idx_questions_external"`

	ProductSKU  string `json:"product_sku" gorm:"size:64"`
	ProductName string `json:"product_name" gorm:"size:500"`

	Text       string `json:"text" gorm:"type:text"`
	AuthorName string `json:"author_name" gorm:"size:255"`

	IsAnswered bool       `json:"is_answered" gorm:"default:false;index"`
	AskedAt    *time.Time `json:"asked_at"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for the Question model
func (Question) TableName() string {
	return "questions"
}
