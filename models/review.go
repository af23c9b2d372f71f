package models

import (
	"time"

	"gorm.io/gorm"
)

// Review represents a buyer review pulled from a marketplace by the sync job.
// Reviews are never hard-deleted; the sync job only ever creates them and the
// publish dispatcher is the only writer of is_answered.
type Review struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	MarketplaceID uint        `json:"marketplace_id" gorm:"not null;index;uniqueIndex:idx_reviews_external"`
	Marketplace   Marketplace `json:"marketplace,omitempty" gorm:"foreignKey:MarketplaceID"`
	ExternalID    string      `json:"external_id" gorm:"size:64;not null;uniqueIndex:idx_reviews_external"`

	ProductSKU  string `json:"product_sku" gorm:"size:64"`
	ProductName string `json:"product_name" gorm:"size:500"`

	Rating     int    `json:"rating" gorm:"type:int;not null;check:rating >= 1 AND rating <= 5"`
	Text       string `json:"text" gorm:"type:text"`
	AuthorName string `json:"author_name" gorm:"size:255"`

	IsAnswered  bool       `json:"is_answered" gorm:"default:false;index"`
	PublishedAt *time.Time `json:"published_at"` // when the buyer posted the review

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for the Review model
func (Review) TableName() string {
	return "reviews"
}

// IsLowRating reports whether the review falls under the low-rating safety rule
func (r *Review) IsLowRating() bool {
	return r.Rating <= 2
}
