package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"autoreply-server/database"
	"autoreply-server/models"
)

// LockTTL is how long an acquired reply lock is considered held. Locks are
// never released explicitly; they expire by age.
const LockTTL = 60 * time.Second

// LockService is a best-effort mutual exclusion guard keyed by reply id. It
// prevents two dispatcher passes (or a dispatcher pass and a concurrent
// extension callback) from processing the same reply at the same time.
type LockService struct {
	ttl time.Duration
}

// NewLockService creates a lock service with the default TTL
func NewLockService() *LockService {
	return &LockService{ttl: LockTTL}
}

// TryAcquire attempts to take the lock for a reply id. Returns false when the
// lock is currently held by someone else.
func (ls *LockService) TryAcquire(replyID uint) bool {
	now := time.Now()
	cutoff := now.Add(-ls.ttl)

	var existing models.ReplyLock
	err := database.DB.Where("reply_id = ?", replyID).First(&existing).Error
	if err == nil {
		// A stale lock can be re-acquired by refreshing created_at, but only
		// if nobody else refreshed it in between (conditional update as CAS).
		if existing.CreatedAt.After(cutoff) {
			return false
		}
		result := database.DB.Model(&models.ReplyLock{}).
			Where("reply_id = ? AND created_at <= ?", replyID, cutoff).
			Update("created_at", now)
		if result.Error != nil {
			log.Printf("❌ Failed to refresh stale lock for reply %d: %v", replyID, result.Error)
			return false
		}
		return result.RowsAffected == 1
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("❌ Failed to check lock for reply %d: %v", replyID, err)
		return false
	}

	lock := models.ReplyLock{ReplyID: replyID, CreatedAt: now}
	if err := database.DB.Create(&lock).Error; err != nil {
		// Unique index on reply_id: a concurrent acquirer won the insert race
		return false
	}
	return true
}

// IsLocked reports whether the reply id is currently locked
func (ls *LockService) IsLocked(replyID uint) bool {
	cutoff := time.Now().Add(-ls.ttl)

	var count int64
	if err := database.DB.Model(&models.ReplyLock{}).
		Where("reply_id = ? AND created_at > ?", replyID, cutoff).
		Count(&count).Error; err != nil {
		log.Printf("❌ Failed to check lock for reply %d: %v", replyID, err)
		return false
	}
	return count > 0
}

// CleanupExpired removes lock rows older than the TTL. Not required for
// correctness (the age filter already ignores them), just keeps the table small.
func (ls *LockService) CleanupExpired() error {
	cutoff := time.Now().Add(-ls.ttl)
	return database.DB.Where("created_at <= ?", cutoff).Delete(&models.ReplyLock{}).Error
}
