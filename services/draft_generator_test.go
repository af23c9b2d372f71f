package services

import (
	"errors"
	"testing"

	"autoreply-server/models"
)

// stubGenerator returns canned text without calling the AI gateway
type stubGenerator struct {
	enabled bool
	fail    bool
	calls   int
}

func (s *stubGenerator) Enabled() bool { return s.enabled }

func (s *stubGenerator) GenerateReviewReply(review *models.Review) (string, error) {
	s.calls++
	if s.fail {
		return "", errors.New("gateway unavailable")
	}
	return "Thank you for your review!", nil
}

func (s *stubGenerator) GenerateQuestionReply(question *models.Question) (string, error) {
	s.calls++
	if s.fail {
		return "", errors.New("gateway unavailable")
	}
	return "Yes, it ships within two days.", nil
}

func TestGenerator_DraftsUnansweredItems(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)

	review := createTestReview(t, db, mp.ID, 5)
	question := createTestQuestion(t, db, mp.ID)

	gen := NewGeneratorService(&stubGenerator{enabled: true}, NewSettingsService(), 10)
	stats := gen.Run()

	if stats.Drafted != 2 {
		t.Fatalf("got %d drafted, want 2", stats.Drafted)
	}

	var reviewReply models.Reply
	if err := db.Where("review_id = ?", review.ID).First(&reviewReply).Error; err != nil {
		t.Fatalf("no reply drafted for review: %v", err)
	}
	if reviewReply.Status != models.ReplyStatusDrafted {
		t.Errorf("got status %q, want drafted", reviewReply.Status)
	}
	if reviewReply.Mode != models.ReplyModeSemiAuto {
		t.Errorf("default settings are semi: got mode %q", reviewReply.Mode)
	}

	var questionReply models.Reply
	if err := db.Where("question_id = ?", question.ID).First(&questionReply).Error; err != nil {
		t.Fatalf("no reply drafted for question: %v", err)
	}
}

func TestGenerator_IdempotentAcrossRuns(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	createTestReview(t, db, mp.ID, 4)

	gen := NewGeneratorService(&stubGenerator{enabled: true}, NewSettingsService(), 10)

	first := gen.Run()
	second := gen.Run()

	if first.Drafted != 1 {
		t.Errorf("first run: got %d drafted, want 1", first.Drafted)
	}
	if second.Drafted != 0 {
		t.Errorf("second run: got %d drafted, want 0", second.Drafted)
	}

	var count int64
	db.Model(&models.Reply{}).Count(&count)
	if count != 1 {
		t.Errorf("got %d replies total, want 1", count)
	}
}

func TestGenerator_SkipsAnsweredAndRepliedItems(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)

	answered := createTestReview(t, db, mp.ID, 5)
	db.Model(answered).Update("is_answered", true)

	replied := createTestReview(t, db, mp.ID, 4)
	createTestReply(t, db, &models.Reply{
		ReviewID: &replied.ID, Content: "manual draft", Status: models.ReplyStatusDrafted, Mode: models.ReplyModeSemiAuto,
	})

	gen := NewGeneratorService(&stubGenerator{enabled: true}, NewSettingsService(), 10)
	stats := gen.Run()

	if stats.Drafted != 0 {
		t.Errorf("got %d drafted, want 0", stats.Drafted)
	}
}

func TestGenerator_LowRatingAlwaysSemiAuto(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)

	// Even with 1-star reviews set to auto, the approval rule wins
	var settings models.UserSettings
	db.Where("user_id = ?", user.ID).First(&settings)
	settings.ReviewsMode1 = models.ModeAuto
	settings.RequireApprovalLowRating = true
	db.Save(&settings)

	review := createTestReview(t, db, mp.ID, 1)

	gen := NewGeneratorService(&stubGenerator{enabled: true}, NewSettingsService(), 10)
	gen.Run()

	var reply models.Reply
	if err := db.Where("review_id = ?", review.ID).First(&reply).Error; err != nil {
		t.Fatalf("no reply drafted: %v", err)
	}
	if reply.Mode != models.ReplyModeSemiAuto {
		t.Errorf("got mode %q, want semi_auto", reply.Mode)
	}
	if reply.Status != models.ReplyStatusDrafted {
		t.Errorf("got status %q, want drafted: low ratings wait for approval", reply.Status)
	}
}

func TestGenerator_AutoModePromotesAfterDrafting(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)

	var settings models.UserSettings
	db.Where("user_id = ?", user.ID).First(&settings)
	settings.ReviewsMode5 = models.ModeAuto
	db.Save(&settings)

	review := createTestReview(t, db, mp.ID, 5)

	gen := NewGeneratorService(&stubGenerator{enabled: true}, NewSettingsService(), 10)
	stats := gen.Run()

	if stats.Promoted != 1 {
		t.Errorf("got %d promoted, want 1", stats.Promoted)
	}

	var reply models.Reply
	if err := db.Where("review_id = ?", review.ID).First(&reply).Error; err != nil {
		t.Fatalf("no reply drafted: %v", err)
	}
	if reply.Status != models.ReplyStatusScheduled || reply.ScheduledAt == nil {
		t.Errorf("auto draft should be scheduled: got status %q scheduled_at=%v", reply.Status, reply.ScheduledAt)
	}
	if reply.Mode != models.ReplyModeAuto {
		t.Errorf("got mode %q, want auto", reply.Mode)
	}
}

func TestGenerator_GenerationFailureLeavesItemEligible(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	createTestReview(t, db, mp.ID, 3)

	gen := NewGeneratorService(&stubGenerator{enabled: true, fail: true}, NewSettingsService(), 10)
	stats := gen.Run()

	if stats.Drafted != 0 {
		t.Errorf("got %d drafted, want 0", stats.Drafted)
	}
	if stats.Errors == 0 {
		t.Error("expected errors to be counted")
	}

	var count int64
	db.Model(&models.Reply{}).Count(&count)
	if count != 0 {
		t.Errorf("got %d replies, want 0: failed generation must not leave a reply", count)
	}
}

func TestGenerator_DisabledGatewaySkipsRun(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)
	createTestReview(t, db, mp.ID, 5)

	stub := &stubGenerator{enabled: false}
	gen := NewGeneratorService(stub, NewSettingsService(), 10)
	stats := gen.Run()

	if stats.Marketplaces != 0 || stats.Drafted != 0 || stub.calls != 0 {
		t.Errorf("disabled gateway must do nothing: %+v, calls=%d", stats, stub.calls)
	}
	_ = mp
}

func TestGenerator_RespectsBatchSize(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)

	for i := 0; i < 5; i++ {
		createTestReview(t, db, mp.ID, 5)
	}

	gen := NewGeneratorService(&stubGenerator{enabled: true}, NewSettingsService(), 2)
	stats := gen.Run()

	if stats.Drafted != 2 {
		t.Errorf("got %d drafted, want batch size 2", stats.Drafted)
	}
}
