package services

import (
	"testing"
	"time"

	"autoreply-server/models"
)

func TestLockService_AcquireAndHold(t *testing.T) {
	db := setupTestDB(t)
	_ = db
	locks := NewLockService()

	if !locks.TryAcquire(1) {
		t.Fatal("first acquire should succeed")
	}
	if locks.TryAcquire(1) {
		t.Fatal("second acquire within TTL should fail")
	}
	if !locks.IsLocked(1) {
		t.Error("lock should be reported as held")
	}

	// A different reply id is unaffected
	if !locks.TryAcquire(2) {
		t.Error("acquire for a different reply should succeed")
	}
}

func TestLockService_StaleLockReacquired(t *testing.T) {
	db := setupTestDB(t)
	locks := NewLockService()

	if !locks.TryAcquire(7) {
		t.Fatal("first acquire should succeed")
	}

	// Age the lock past the TTL
	stale := time.Now().Add(-2 * LockTTL)
	if err := db.Model(&models.ReplyLock{}).
		Where("reply_id = ?", 7).
		Update("created_at", stale).Error; err != nil {
		t.Fatalf("failed to age lock: %v", err)
	}

	if locks.IsLocked(7) {
		t.Error("expired lock should not be reported as held")
	}
	if !locks.TryAcquire(7) {
		t.Fatal("expired lock should be re-acquirable")
	}
	if locks.TryAcquire(7) {
		t.Fatal("re-acquired lock should be held again")
	}
}

func TestLockService_CleanupExpired(t *testing.T) {
	db := setupTestDB(t)
	locks := NewLockService()

	locks.TryAcquire(1)
	locks.TryAcquire(2)

	stale := time.Now().Add(-2 * LockTTL)
	if err := db.Model(&models.ReplyLock{}).
		Where("reply_id = ?", 1).
		Update("created_at", stale).Error; err != nil {
		t.Fatalf("failed to age lock: %v", err)
	}

	if err := locks.CleanupExpired(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	var count int64
	db.Model(&models.ReplyLock{}).Count(&count)
	if count != 1 {
		t.Errorf("got %d lock rows after cleanup, want 1", count)
	}
	if !locks.IsLocked(2) {
		t.Error("fresh lock should survive cleanup")
	}
}
