package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"autoreply-server/database"
	"autoreply-server/models"
)

// StuckPublishingAge is how long a reply may sit in publishing before the
// sweep treats the worker as dead and returns the reply to the queue.
const StuckPublishingAge = 10 * time.Minute

// ErrReplyLocked is returned when a concurrent worker holds the reply lock
var ErrReplyLocked = errors.New("reply is being processed by another worker")

// PublishTransport delivers a reply to a marketplace over its direct API.
// Marketplaces without a direct transport (Ozon) are handed to the browser
// extension queue instead.
type PublishTransport interface {
	Publish(reply *models.Reply, mp *models.Marketplace) error
}

// ReplyScheduledNotifier pushes a realtime event when an extension-queued
// reply becomes due. Implemented by the websocket hub.
type ReplyScheduledNotifier interface {
	NotifyReplyScheduled(userID uint, replyID uint)
}

// DispatchStats summarizes one dispatcher pass
type DispatchStats struct {
	Swept     int64 `json:"swept"`
	Processed int   `json:"processed"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
}

// dispatchOutcome is the per-reply result collected from the fan-out
type dispatchOutcome int

const (
	outcomeSkipped dispatchOutcome = iota
	outcomeQueuedForExtension
	outcomePublished
	outcomeRetried
	outcomeFailed
)

// DispatcherService is the periodic sweep that moves scheduled replies toward
// published or failed. All status writes go through status-conditioned
// updates, so a lost race degrades to a skipped row, never a double publish.
type DispatcherService struct {
	locks      *LockService
	transports map[models.MarketplaceType]PublishTransport
	notifier   ReplyScheduledNotifier
	batchSize  int
}

func NewDispatcherService(locks *LockService, notifier ReplyScheduledNotifier, batchSize int) *DispatcherService {
	wb := NewWildberriesService()
	return &DispatcherService{
		locks: locks,
		transports: map[models.MarketplaceType]PublishTransport{
			models.MarketplaceWildberries: &wildberriesTransport{api: wb},
		},
		notifier:  notifier,
		batchSize: batchSize,
	}
}

// Dispatch runs one full pass: crash-recovery sweep, then fan-out over the
// due replies. Individual failures never abort the batch.
func (d *DispatcherService) Dispatch() DispatchStats {
	stats := DispatchStats{}
	now := time.Now()

	swept, err := d.sweepStuckPublishing(now)
	if err != nil {
		log.Printf("❌ Dispatcher sweep failed: %v", err)
	}
	stats.Swept = swept

	replies, err := d.selectDueReplies(now)
	if err != nil {
		log.Printf("❌ Dispatcher failed to select due replies: %v", err)
		return stats
	}
	if len(replies) == 0 {
		return stats
	}

	// Different replies are independent: publish them in parallel and join
	// on all results. The lock guard plus conditioned updates keep any two
	// workers off the same reply.
	outcomes := make([]dispatchOutcome, len(replies))
	var wg sync.WaitGroup
	for i := range replies {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			outcomes[idx] = d.processReply(&replies[idx], time.Now())
		}(i)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		switch outcome {
		case outcomeQueuedForExtension, outcomeRetried:
			stats.Processed++
		case outcomePublished:
			stats.Processed++
			stats.Succeeded++
		case outcomeFailed:
			stats.Processed++
			stats.Failed++
		}
	}
	return stats
}

// sweepStuckPublishing returns crashed publishing replies to the queue.
// Treated as transient: retry_count is left untouched.
func (d *DispatcherService) sweepStuckPublishing(now time.Time) (int64, error) {
	result := database.DB.Model(&models.Reply{}).
		Where("status = ? AND updated_at < ?", models.ReplyStatusPublishing, now.Add(-StuckPublishingAge)).
		Update("status", models.ReplyStatusScheduled)
	if result.RowsAffected > 0 {
		log.Printf("🧹 Swept %d stuck publishing replies back to scheduled", result.RowsAffected)
	}
	return result.RowsAffected, result.Error
}

// selectDueReplies picks the oldest due scheduled replies, FIFO by scheduled_at
func (d *DispatcherService) selectDueReplies(now time.Time) ([]models.Reply, error) {
	var replies []models.Reply
	err := database.DB.
		Preload("Review.Marketplace").
		Preload("Question.Marketplace").
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", models.ReplyStatusScheduled, now).
		Order("scheduled_at ASC").
		Limit(d.batchSize).
		Find(&replies).Error
	return replies, err
}

// processReply pushes one reply one step forward in its lifecycle
func (d *DispatcherService) processReply(reply *models.Reply, now time.Time) dispatchOutcome {
	mp := replyMarketplace(reply)
	if mp == nil || !mp.IsActive {
		return outcomeSkipped
	}

	if !d.locks.TryAcquire(reply.ID) {
		return outcomeSkipped
	}

	if mp.UsesExtensionPublishing() {
		return d.queueForExtension(reply, mp, now)
	}
	return d.publishDirect(reply, mp, now)
}

// queueForExtension refreshes the reply for the browser extension's polling
// loop. No API call is made here: Ozon posting must happen from a real
// authenticated browser session. The extension reports back through the
// mark-published callback.
func (d *DispatcherService) queueForExtension(reply *models.Reply, mp *models.Marketplace, now time.Time) dispatchOutcome {
	result := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status = ?", reply.ID, models.ReplyStatusScheduled).
		Updates(map[string]interface{}{
			"status":        models.ReplyStatusScheduled,
			"scheduled_at":  now,
			"error_message": nil,
			"retry_count":   0,
		})
	if result.Error != nil {
		log.Printf("❌ Failed to queue reply %d for extension: %v", reply.ID, result.Error)
		return outcomeSkipped
	}
	if result.RowsAffected == 0 {
		return outcomeSkipped
	}

	if d.notifier != nil {
		d.notifier.NotifyReplyScheduled(mp.UserID, reply.ID)
	}
	return outcomeQueuedForExtension
}

// publishDirect claims the reply and posts it through the marketplace API
func (d *DispatcherService) publishDirect(reply *models.Reply, mp *models.Marketplace, now time.Time) dispatchOutcome {
	transport, ok := d.transports[mp.Type]
	if !ok {
		log.Printf("❌ No publish transport for marketplace type %q (reply %d)", mp.Type, reply.ID)
		return outcomeSkipped
	}

	// Claim: scheduled -> publishing. Zero rows means someone else got here first.
	claim := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status = ?", reply.ID, models.ReplyStatusScheduled).
		Update("status", models.ReplyStatusPublishing)
	if claim.Error != nil {
		log.Printf("❌ Failed to claim reply %d: %v", reply.ID, claim.Error)
		return outcomeSkipped
	}
	if claim.RowsAffected == 0 {
		return outcomeSkipped
	}

	if err := transport.Publish(reply, mp); err != nil {
		return d.recordFailure(reply, err, time.Now())
	}
	return d.recordSuccess(reply, time.Now())
}

// recordSuccess finalizes a published reply and marks the feedback item answered
func (d *DispatcherService) recordSuccess(reply *models.Reply, now time.Time) dispatchOutcome {
	result := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status = ?", reply.ID, models.ReplyStatusPublishing).
		Updates(map[string]interface{}{
			"status":        models.ReplyStatusPublished,
			"published_at":  now,
			"error_message": nil,
		})
	if result.Error != nil {
		log.Printf("❌ Failed to finalize reply %d: %v", reply.ID, result.Error)
		return outcomeSkipped
	}
	if result.RowsAffected == 0 {
		// Someone else already moved it; do not double-count a success
		return outcomeSkipped
	}

	if err := markItemAnswered(reply); err != nil {
		log.Printf("❌ Failed to mark item answered for reply %d: %v", reply.ID, err)
	}
	log.Printf("✅ Reply %d published", reply.ID)
	return outcomePublished
}

// recordFailure applies the retry policy to a failed publish attempt
func (d *DispatcherService) recordFailure(reply *models.Reply, pubErr error, now time.Time) dispatchOutcome {
	decision := DecideRetry(reply.RetryCount, pubErr.Error(), now)

	updates := map[string]interface{}{
		"status":        decision.Status,
		"retry_count":   decision.RetryCount,
		"error_message": decision.ErrorMessage,
	}
	if decision.ScheduledAt != nil {
		updates["scheduled_at"] = *decision.ScheduledAt
	}

	result := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status = ?", reply.ID, models.ReplyStatusPublishing).
		Updates(updates)
	if result.Error != nil {
		log.Printf("❌ Failed to record failure for reply %d: %v", reply.ID, result.Error)
		return outcomeSkipped
	}

	if decision.Status == models.ReplyStatusFailed {
		log.Printf("💀 Reply %d failed permanently after %d attempts: %v", reply.ID, decision.RetryCount, pubErr)
		return outcomeFailed
	}
	log.Printf("🔁 Reply %d publish failed (attempt %d), retrying later: %v", reply.ID, decision.RetryCount, pubErr)
	return outcomeRetried
}

// MarkPublished is the extension callback: the browser extension reports the
// outcome of a UI-automation posting attempt. Idempotent: repeating a success
// for an already published reply is a no-op.
func (d *DispatcherService) MarkPublished(replyID uint, success bool, errMsg string) error {
	var reply models.Reply
	if err := database.DB.Preload("Review").Preload("Question").First(&reply, replyID).Error; err != nil {
		return err
	}

	if reply.Status == models.ReplyStatusPublished {
		return nil
	}

	if !d.locks.TryAcquire(replyID) {
		return ErrReplyLocked
	}

	now := time.Now()
	if success {
		result := database.DB.Model(&models.Reply{}).
			Where("id = ? AND status IN ?", replyID, []models.ReplyStatus{models.ReplyStatusScheduled, models.ReplyStatusPublishing}).
			Updates(map[string]interface{}{
				"status":        models.ReplyStatusPublished,
				"published_at":  now,
				"error_message": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Re-read: a concurrent callback may have published it already
			var current models.Reply
			if err := database.DB.First(&current, replyID).Error; err != nil {
				return err
			}
			if current.Status == models.ReplyStatusPublished {
				return nil
			}
			return fmt.Errorf("reply %d is in status %q and cannot be marked published", replyID, current.Status)
		}

		if err := markItemAnswered(&reply); err != nil {
			log.Printf("❌ Failed to mark item answered for reply %d: %v", replyID, err)
		}
		log.Printf("✅ Reply %d marked published by extension", replyID)
		return nil
	}

	decision := DecideRetry(reply.RetryCount, errMsg, now)
	updates := map[string]interface{}{
		"status":        decision.Status,
		"retry_count":   decision.RetryCount,
		"error_message": decision.ErrorMessage,
	}
	if decision.ScheduledAt != nil {
		updates["scheduled_at"] = *decision.ScheduledAt
	}

	result := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status IN ?", replyID, []models.ReplyStatus{models.ReplyStatusScheduled, models.ReplyStatusPublishing}).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Re-read: a concurrent success callback may have published it already
		var current models.Reply
		if err := database.DB.First(&current, replyID).Error; err != nil {
			return err
		}
		if current.Status == models.ReplyStatusPublished {
			return nil
		}
		return fmt.Errorf("reply %d is in status %q and cannot accept a failure report", replyID, current.Status)
	}
	log.Printf("🔁 Reply %d reported failed by extension (attempt %d): %s", replyID, decision.RetryCount, errMsg)
	return nil
}

// replyMarketplace resolves the owning marketplace from the preloaded item
func replyMarketplace(reply *models.Reply) *models.Marketplace {
	if reply.Review != nil {
		return &reply.Review.Marketplace
	}
	if reply.Question != nil {
		return &reply.Question.Marketplace
	}
	return nil
}

// markItemAnswered flips is_answered on the reply's feedback item
func markItemAnswered(reply *models.Reply) error {
	if reply.ReviewID != nil {
		return database.DB.Model(&models.Review{}).
			Where("id = ?", *reply.ReviewID).
			Update("is_answered", true).Error
	}
	if reply.QuestionID != nil {
		return database.DB.Model(&models.Question{}).
			Where("id = ?", *reply.QuestionID).
			Update("is_answered", true).Error
	}
	return models.ErrReplyTargetInvalid
}

// wildberriesTransport adapts WildberriesService to the PublishTransport interface
type wildberriesTransport struct {
	api *WildberriesService
}

func (t *wildberriesTransport) Publish(reply *models.Reply, mp *models.Marketplace) error {
	if reply.Review != nil {
		return t.api.PublishReviewReply(mp.APIKey, reply.Review.ExternalID, reply.Content)
	}
	if reply.Question != nil {
		return t.api.PublishQuestionReply(mp.APIKey, reply.Question.ExternalID, reply.Content)
	}
	return models.ErrReplyTargetInvalid
}
