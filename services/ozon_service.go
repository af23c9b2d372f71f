package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"autoreply-server/config"
	"autoreply-server/models"
)

// OzonService is a thin Ozon Seller API client. It is used only to pull
// reviews and questions during sync; publishing to Ozon always goes through
// the browser extension, never through this client.
type OzonService struct {
	baseURL string
	client  *http.Client
}

func NewOzonService() *OzonService {
	return &OzonService{
		baseURL: config.AppConfig.Ozon.BaseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// OzonReview is one entry of the review list response
type OzonReview struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	ProductName string    `json:"product_name"`
	Rating      int       `json:"rating"`
	Text        string    `json:"text"`
	AuthorName  string    `json:"author_name"`
	IsAnswered  bool      `json:"is_answered"`
	PublishedAt time.Time `json:"published_at"`
}

// OzonQuestion is one entry of the question list response
type OzonQuestion struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	ProductName string    `json:"product_name"`
	Text        string    `json:"text"`
	AuthorName  string    `json:"author_name"`
	IsAnswered  bool      `json:"is_answered"`
	AskedAt     time.Time `json:"published_at"`
}

type ozonReviewListRequest struct {
	Limit  int    `json:"limit"`
	Status string `json:"status"`
}

type ozonReviewListResponse struct {
	Reviews []OzonReview `json:"reviews"`
}

type ozonQuestionListRequest struct {
	Filter struct {
		Status string `json:"status"`
	} `json:"filter"`
	Limit int `json:"limit"`
}

type ozonQuestionListResponse struct {
	Questions []OzonQuestion `json:"questions"`
}

// FetchReviews pulls the latest unprocessed reviews for a seller account
func (oz *OzonService) FetchReviews(m *models.Marketplace, limit int) ([]OzonReview, error) {
	reqBody := ozonReviewListRequest{Limit: limit, Status: "UNPROCESSED"}

	var resp ozonReviewListResponse
	if err := oz.post(m, "/v1/review/list", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("ozon review list: %w", err)
	}
	return resp.Reviews, nil
}

// FetchQuestions pulls the latest unanswered questions for a seller account
func (oz *OzonService) FetchQuestions(m *models.Marketplace, limit int) ([]OzonQuestion, error) {
	reqBody := ozonQuestionListRequest{Limit: limit}
	reqBody.Filter.Status = "NEW"

	var resp ozonQuestionListResponse
	if err := oz.post(m, "/v1/question/list", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("ozon question list: %w", err)
	}
	return resp.Questions, nil
}

func (oz *OzonService) post(m *models.Marketplace, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, oz.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Id", m.ClientID)
	req.Header.Set("Api-Key", m.APIKey)

	resp, err := oz.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	return json.Unmarshal(respBody, out)
}

// truncateBody keeps error messages readable when the API returns HTML pages
func truncateBody(body []byte) string {
	const max = 300
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
