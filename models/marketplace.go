package models

import (
	"time"

	"gorm.io/gorm"
)

type MarketplaceType string

const (
	MarketplaceOzon        MarketplaceType = "ozon"
	MarketplaceWildberries MarketplaceType = "wildberries"
)

type SyncStatus string

const (
	SyncStatusNever   SyncStatus = "never"
	SyncStatusOK      SyncStatus = "ok"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusRunning SyncStatus = "running"
)

// Marketplace represents a connected marketplace seller account
type Marketplace struct {
	ID     uint            `json:"id" gorm:"primaryKey"`
	UserID uint            `json:"user_id" gorm:"not null;index"`
	User   User            `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Type   MarketplaceType `json:"type" gorm:"type:varchar(20);not null;check:type IN ('ozon','wildberries')"`
	Name   string          `json:"name" gorm:"size:255;not null"`

	// Seller API credentials
	ClientID string `json:"client_id" gorm:"size:255"`
	APIKey   string `json:"-" gorm:"size:255"` // Hidden from JSON

	IsActive       bool       `json:"is_active" gorm:"default:true"`
	LastSyncAt     *time.Time `json:"last_sync_at"`
	LastSyncStatus SyncStatus `json:"last_sync_status" gorm:"type:varchar(20);not null;default:'never'"`
	LastSyncError  *string    `json:"last_sync_error" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for the Marketplace model
func (Marketplace) TableName() string {
	return "marketplaces"
}

// UsesExtensionPublishing reports whether replies for this marketplace are
// posted by the browser extension instead of a direct API call. Ozon posting
// must happen from a real authenticated browser session, not a server.
func (m *Marketplace) UsesExtensionPublishing() bool {
	return m.Type == MarketplaceOzon
}

// MarketplaceCreate represents the request structure for connecting a marketplace
type MarketplaceCreate struct {
	Type     MarketplaceType `json:"type" binding:"required,oneof=ozon wildberries"`
	Name     string          `json:"name" binding:"required"`
	ClientID string          `json:"client_id"`
	APIKey   string          `json:"api_key"`
}

// MarketplaceUpdate represents the request structure for updating a marketplace
type MarketplaceUpdate struct {
	Name     *string `json:"name"`
	ClientID *string `json:"client_id"`
	APIKey   *string `json:"api_key"`
	IsActive *bool   `json:"is_active"`
}
