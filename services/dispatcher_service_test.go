package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"autoreply-server/models"
)

// fakeTransport records publish calls and returns a configured error
type fakeTransport struct {
	mu     sync.Mutex
	err    error
	calls  int
	lastID uint
}

func (f *fakeTransport) Publish(reply *models.Reply, mp *models.Marketplace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = reply.ID
	return f.err
}

// recordingNotifier captures reply_scheduled pushes
type recordingNotifier struct {
	mu     sync.Mutex
	events []uint
}

func (r *recordingNotifier) NotifyReplyScheduled(userID uint, replyID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, replyID)
}

func newTestDispatcher(transport PublishTransport, notifier ReplyScheduledNotifier) *DispatcherService {
	return &DispatcherService{
		locks: NewLockService(),
		transports: map[models.MarketplaceType]PublishTransport{
			models.MarketplaceWildberries: transport,
		},
		notifier:  notifier,
		batchSize: 50,
	}
}

func TestDispatch_PublishesDueReply(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	review := createTestReview(t, db, mp.ID, 5)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "thanks!",
		Status:      models.ReplyStatusScheduled,
		Mode:        models.ReplyModeAuto,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	transport := &fakeTransport{}
	stats := newTestDispatcher(transport, nil).Dispatch()

	if stats.Succeeded != 1 {
		t.Fatalf("got %d succeeded, want 1", stats.Succeeded)
	}
	if transport.calls != 1 {
		t.Errorf("got %d transport calls, want 1", transport.calls)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusPublished {
		t.Errorf("got status %q, want published", got.Status)
	}
	if got.PublishedAt == nil {
		t.Error("published_at not set")
	}

	var gotReview models.Review
	db.First(&gotReview, review.ID)
	if !gotReview.IsAnswered {
		t.Error("review should be marked answered after publish")
	}
}

func TestDispatch_SkipsFutureAndNonScheduled(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)

	future := createTestReview(t, db, mp.ID, 5)
	createTestReply(t, db, &models.Reply{
		ReviewID:    &future.ID,
		Content:     "later",
		Status:      models.ReplyStatusScheduled,
		ScheduledAt: timePtr(time.Now().Add(time.Hour)),
	})

	drafted := createTestReview(t, db, mp.ID, 4)
	createTestReply(t, db, &models.Reply{
		ReviewID: &drafted.ID,
		Content:  "draft",
		Status:   models.ReplyStatusDrafted,
	})

	transport := &fakeTransport{}
	stats := newTestDispatcher(transport, nil).Dispatch()

	if stats.Processed != 0 || transport.calls != 0 {
		t.Errorf("nothing was due: processed=%d calls=%d", stats.Processed, transport.calls)
	}
}

func TestDispatch_FailureFollowsRetryPolicy(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	review := createTestReview(t, db, mp.ID, 2)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "sorry",
		Status:      models.ReplyStatusScheduled,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	transport := &fakeTransport{err: errors.New("api timeout")}
	stats := newTestDispatcher(transport, nil).Dispatch()

	if stats.Failed != 0 {
		t.Errorf("first failure is a retry, not terminal: failed=%d", stats.Failed)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusScheduled {
		t.Fatalf("got status %q, want scheduled", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("got retry_count %d, want 1", got.RetryCount)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "api timeout" {
		t.Errorf("error message not recorded: %v", got.ErrorMessage)
	}
}

func TestDispatch_TerminalFailureAtMaxAttempts(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	review := createTestReview(t, db, mp.ID, 3)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "text",
		Status:      models.ReplyStatusScheduled,
		RetryCount:  MaxPublishAttempts - 1,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	transport := &fakeTransport{err: errors.New("still broken")}
	stats := newTestDispatcher(transport, nil).Dispatch()

	if stats.Failed != 1 {
		t.Fatalf("got %d failed, want 1", stats.Failed)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusFailed {
		t.Errorf("got status %q, want failed", got.Status)
	}
	if got.RetryCount != MaxPublishAttempts {
		t.Errorf("got retry_count %d, want %d", got.RetryCount, MaxPublishAttempts)
	}
}

func TestDispatch_SweepsStuckPublishing(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	review := createTestReview(t, db, mp.ID, 5)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:   &review.ID,
		Content:    "text",
		Status:     models.ReplyStatusPublishing,
		RetryCount: 2,
	})

	// Simulate a worker that died mid-publish a while ago
	stuck := time.Now().Add(-StuckPublishingAge - time.Minute)
	if err := db.Exec("UPDATE replies SET updated_at = ? WHERE id = ?", stuck, reply.ID).Error; err != nil {
		t.Fatalf("failed to age reply: %v", err)
	}

	transport := &fakeTransport{}
	stats := newTestDispatcher(transport, nil).Dispatch()

	if stats.Swept != 1 {
		t.Fatalf("got %d swept, want 1", stats.Swept)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusScheduled {
		t.Errorf("got status %q, want scheduled", got.Status)
	}
	// The sweep treats the crash as transient: the attempt budget is untouched
	if got.RetryCount != 2 {
		t.Errorf("got retry_count %d, want 2", got.RetryCount)
	}
}

func TestDispatch_FreshPublishingNotSwept(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	review := createTestReview(t, db, mp.ID, 5)

	createTestReply(t, db, &models.Reply{
		ReviewID: &review.ID,
		Content:  "text",
		Status:   models.ReplyStatusPublishing,
	})

	stats := newTestDispatcher(&fakeTransport{}, nil).Dispatch()
	if stats.Swept != 0 {
		t.Errorf("got %d swept, want 0: reply is still within the publishing window", stats.Swept)
	}
}

func TestDispatch_OzonReplyQueuedForExtension(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)
	review := createTestReview(t, db, mp.ID, 5)

	errMsg := "old error"
	reply := createTestReply(t, db, &models.Reply{
		ReviewID:     &review.ID,
		Content:      "thanks!",
		Status:       models.ReplyStatusScheduled,
		RetryCount:   1,
		ErrorMessage: &errMsg,
		ScheduledAt:  timePtr(time.Now().Add(-time.Hour)),
	})

	transport := &fakeTransport{}
	notifier := &recordingNotifier{}
	stats := newTestDispatcher(transport, notifier).Dispatch()

	if stats.Processed != 1 || stats.Succeeded != 0 {
		t.Errorf("got processed=%d succeeded=%d, want 1/0", stats.Processed, stats.Succeeded)
	}
	// No direct API call for extension-published marketplaces
	if transport.calls != 0 {
		t.Errorf("got %d transport calls, want 0", transport.calls)
	}
	if len(notifier.events) != 1 || notifier.events[0] != reply.ID {
		t.Errorf("expected one reply_scheduled push for reply %d, got %v", reply.ID, notifier.events)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusScheduled {
		t.Errorf("got status %q, want scheduled", got.Status)
	}
	if got.PublishedAt != nil {
		t.Error("queued reply must not have published_at")
	}
	if got.RetryCount != 0 || got.ErrorMessage != nil {
		t.Errorf("queue refresh should reset retry state: count=%d err=%v", got.RetryCount, got.ErrorMessage)
	}
}

func TestDispatch_InactiveMarketplaceSkipped(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	db.Model(mp).Update("is_active", false)

	review := createTestReview(t, db, mp.ID, 5)
	createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "text",
		Status:      models.ReplyStatusScheduled,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	transport := &fakeTransport{}
	stats := newTestDispatcher(transport, nil).Dispatch()

	if stats.Processed != 0 || transport.calls != 0 {
		t.Errorf("inactive marketplace: processed=%d calls=%d, want 0/0", stats.Processed, transport.calls)
	}
}

func TestDispatch_LockedReplySkipped(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	review := createTestReview(t, db, mp.ID, 5)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "text",
		Status:      models.ReplyStatusScheduled,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	dispatcher := newTestDispatcher(&fakeTransport{}, nil)
	if !dispatcher.locks.TryAcquire(reply.ID) {
		t.Fatal("pre-acquire failed")
	}

	stats := dispatcher.Dispatch()
	if stats.Processed != 0 {
		t.Errorf("locked reply should be skipped: processed=%d", stats.Processed)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusScheduled {
		t.Errorf("got status %q, want scheduled", got.Status)
	}
}

func TestMarkPublished_SuccessAndIdempotence(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)
	review := createTestReview(t, db, mp.ID, 5)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "thanks!",
		Status:      models.ReplyStatusScheduled,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	dispatcher := newTestDispatcher(&fakeTransport{}, nil)
	if err := dispatcher.MarkPublished(reply.ID, true, ""); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusPublished || got.PublishedAt == nil {
		t.Fatalf("got status %q published_at=%v, want published with timestamp", got.Status, got.PublishedAt)
	}
	firstPublishedAt := *got.PublishedAt

	var gotReview models.Review
	db.First(&gotReview, review.ID)
	if !gotReview.IsAnswered {
		t.Error("review should be marked answered")
	}

	// Repeating the callback is a no-op, even while the first call's lock is
	// still live
	if err := dispatcher.MarkPublished(reply.ID, true, ""); err != nil {
		t.Fatalf("repeated mark published should be a no-op: %v", err)
	}

	got = reloadReply(t, db, reply.ID)
	if !got.PublishedAt.Equal(firstPublishedAt) {
		t.Error("repeated callback must not move published_at")
	}
}

func TestMarkPublished_FailureAppliesRetryPolicy(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)
	review := createTestReview(t, db, mp.ID, 5)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "thanks!",
		Status:      models.ReplyStatusScheduled,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	dispatcher := newTestDispatcher(&fakeTransport{}, nil)
	if err := dispatcher.MarkPublished(reply.ID, false, "selector not found"); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusScheduled {
		t.Errorf("got status %q, want scheduled", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("got retry_count %d, want 1", got.RetryCount)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "selector not found" {
		t.Errorf("error message not recorded: %v", got.ErrorMessage)
	}
}

func TestMarkPublished_FailureOnTerminalReplyRejected(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)
	review := createTestReview(t, db, mp.ID, 5)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:   &review.ID,
		Content:    "thanks!",
		Status:     models.ReplyStatusFailed,
		RetryCount: MaxPublishAttempts,
	})

	dispatcher := newTestDispatcher(&fakeTransport{}, nil)
	err := dispatcher.MarkPublished(reply.ID, false, "still broken")
	if err == nil {
		t.Fatal("failure report on a failed reply must be rejected, not silently dropped")
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusFailed {
		t.Errorf("got status %q, want failed", got.Status)
	}
	if got.RetryCount != MaxPublishAttempts {
		t.Errorf("got retry_count %d, want %d unchanged", got.RetryCount, MaxPublishAttempts)
	}
}

func TestMarkPublished_LockedReturnsError(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)
	review := createTestReview(t, db, mp.ID, 5)

	reply := createTestReply(t, db, &models.Reply{
		ReviewID:    &review.ID,
		Content:     "thanks!",
		Status:      models.ReplyStatusScheduled,
		ScheduledAt: timePtr(time.Now().Add(-time.Minute)),
	})

	dispatcher := newTestDispatcher(&fakeTransport{}, nil)
	if !dispatcher.locks.TryAcquire(reply.ID) {
		t.Fatal("pre-acquire failed")
	}

	err := dispatcher.MarkPublished(reply.ID, true, "")
	if !errors.Is(err, ErrReplyLocked) {
		t.Fatalf("got %v, want ErrReplyLocked", err)
	}

	got := reloadReply(t, db, reply.ID)
	if got.Status != models.ReplyStatusScheduled {
		t.Errorf("locked callback must not change status: got %q", got.Status)
	}
}
