package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autoreply-server/models"
)

// newOzonTestServer serves canned review/question lists and checks credentials
func newOzonTestServer(t *testing.T, reviews []OzonReview, questions []OzonQuestion) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") == "" || r.Header.Get("Api-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/v1/review/list":
			json.NewEncoder(w).Encode(ozonReviewListResponse{Reviews: reviews})
		case "/v1/question/list":
			json.NewEncoder(w).Encode(ozonQuestionListResponse{Questions: questions})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestSyncService(serverURL string) *SyncService {
	ozon := &OzonService{
		baseURL: serverURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
	return NewSyncService(ozon)
}

func TestSync_ImportsNewItems(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)

	srv := newOzonTestServer(t,
		[]OzonReview{
			{ID: "r1", SKU: "sku1", ProductName: "Widget", Rating: 5, Text: "great", AuthorName: "Ann", PublishedAt: time.Now()},
			{ID: "r2", SKU: "sku2", ProductName: "Widget", Rating: 2, Text: "meh", AuthorName: "Bob", PublishedAt: time.Now()},
		},
		[]OzonQuestion{
			{ID: "q1", SKU: "sku1", ProductName: "Widget", Text: "size?", AuthorName: "Cal", AskedAt: time.Now()},
		},
	)
	defer srv.Close()

	stats := newTestSyncService(srv.URL).Run()

	if stats.NewReviews != 2 || stats.NewQuestions != 1 {
		t.Fatalf("got %d reviews / %d questions, want 2/1", stats.NewReviews, stats.NewQuestions)
	}

	var gotMP models.Marketplace
	db.First(&gotMP, mp.ID)
	if gotMP.LastSyncStatus != models.SyncStatusOK {
		t.Errorf("got sync status %q, want ok", gotMP.LastSyncStatus)
	}
	if gotMP.LastSyncAt == nil {
		t.Error("last_sync_at not set")
	}
}

func TestSync_DeduplicatesByExternalID(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)

	srv := newOzonTestServer(t,
		[]OzonReview{{ID: "r1", Rating: 4, Text: "good", PublishedAt: time.Now()}},
		nil,
	)
	defer srv.Close()

	sync := newTestSyncService(srv.URL)

	first := sync.Run()
	second := sync.Run()

	if first.NewReviews != 1 {
		t.Errorf("first run: got %d new reviews, want 1", first.NewReviews)
	}
	if second.NewReviews != 0 {
		t.Errorf("second run: got %d new reviews, want 0", second.NewReviews)
	}

	var count int64
	db.Model(&models.Review{}).Where("marketplace_id = ?", mp.ID).Count(&count)
	if count != 1 {
		t.Errorf("got %d reviews, want 1", count)
	}
}

func TestSync_APIFailureRecorded(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	mp := createTestMarketplace(t, db, user.ID, models.MarketplaceOzon)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	stats := newTestSyncService(srv.URL).Run()
	if stats.Errors == 0 {
		t.Error("expected errors to be counted")
	}

	var gotMP models.Marketplace
	db.First(&gotMP, mp.ID)
	if gotMP.LastSyncStatus != models.SyncStatusFailed {
		t.Errorf("got sync status %q, want failed", gotMP.LastSyncStatus)
	}
	if gotMP.LastSyncError == nil {
		t.Error("last_sync_error not recorded")
	}
}

func TestSync_SkipsNonOzonMarketplaces(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	createTestMarketplace(t, db, user.ID, models.MarketplaceWildberries)

	srv := newOzonTestServer(t, nil, nil)
	defer srv.Close()

	stats := newTestSyncService(srv.URL).Run()
	if stats.Marketplaces != 0 {
		t.Errorf("got %d marketplaces synced, want 0", stats.Marketplaces)
	}
}
