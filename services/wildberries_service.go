package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WildberriesService posts replies directly through the Wildberries feedbacks
// API. This is the direct-API publish transport; unlike Ozon there is no
// browser-session requirement.
type WildberriesService struct {
	baseURL string
	client  *http.Client
}

func NewWildberriesService() *WildberriesService {
	return &WildberriesService{
		baseURL: "https://feedbacks-api.wildberries.ru",
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type wbAnswerRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PublishReviewReply posts an answer to a review (feedback) by its external id
func (wb *WildberriesService) PublishReviewReply(apiKey, externalID, text string) error {
	return wb.patch(apiKey, "/api/v1/feedbacks/answer", wbAnswerRequest{ID: externalID, Text: text})
}

// PublishQuestionReply posts an answer to a product question by its external id
func (wb *WildberriesService) PublishQuestionReply(apiKey, externalID, text string) error {
	return wb.patch(apiKey, "/api/v1/questions/answer", wbAnswerRequest{ID: externalID, Text: text})
}

func (wb *WildberriesService) patch(apiKey, path string, body interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPatch, wb.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", apiKey)

	resp, err := wb.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("wildberries API status %d: %s", resp.StatusCode, truncateBody(respBody))
	}
	return nil
}
