package models

import "time"

// ReplyLock is a best-effort advisory lock keyed by reply id. A row counts as
// held while created_at is younger than the lock TTL; locks are never deleted,
// they expire by age. The worst case of a lost race is a duplicate publish
// attempt, which the status-conditioned updates downstream absorb.
type ReplyLock struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ReplyID   uint      `json:"reply_id" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the ReplyLock model
func (ReplyLock) TableName() string {
	return "reply_locks"
}

// HeldAt reports whether the lock is still held at the given instant
func (l *ReplyLock) HeldAt(now time.Time, ttl time.Duration) bool {
	return l.CreatedAt.After(now.Add(-ttl))
}
