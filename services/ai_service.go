package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"autoreply-server/config"
	"autoreply-server/database"
	"autoreply-server/models"
)

// AIService generates reply drafts through the external AI gateway. The
// gateway call is fire-and-report: a failed generation is logged by the
// caller and the item stays eligible for the next generator run.
type AIService struct {
	apiKey string
	model  string
	client *http.Client
}

type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Content Content `json:"content"`
}

func NewAIService() *AIService {
	apiKey := config.AppConfig.AI.APIKey
	if apiKey == "" {
		log.Printf("⚠️ AI_GATEWAY_API_KEY not set, draft generation will be disabled")
	}

	return &AIService{
		apiKey: apiKey,
		model:  config.AppConfig.AI.Model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether the AI gateway is configured
func (ai *AIService) Enabled() bool {
	return ai.apiKey != ""
}

// GenerateReviewReply produces a draft answer for a buyer review
func (ai *AIService) GenerateReviewReply(review *models.Review) (string, error) {
	prompt := ai.buildReviewPrompt(review)
	return ai.callGateway(prompt)
}

// GenerateQuestionReply produces a draft answer for a buyer product question
func (ai *AIService) GenerateQuestionReply(question *models.Question) (string, error) {
	prompt := ai.buildQuestionPrompt(question)
	return ai.callGateway(prompt)
}

func (ai *AIService) buildReviewPrompt(review *models.Review) string {
	basePrompt := `
You are a support agent for a marketplace seller. Write a short public reply
to a buyer review.

IMPORTANT RULES:
1. Keep the reply under 80 words
2. Thank the buyer and address their points specifically
3. For ratings of 1-2 stars apologize and offer to resolve the issue
4. Never promise refunds or compensation
5. Reply in the language of the review
6. Use the shop knowledge below when it is relevant; never invent facts

%s
Product: %s
Rating: %d/5
Review text: %s

Respond with the reply text only, no quotes and no markup.
`

	knowledge := ai.knowledgeContext(review.Marketplace.UserID)
	return fmt.Sprintf(basePrompt, knowledge, review.ProductName, review.Rating, review.Text)
}

func (ai *AIService) buildQuestionPrompt(question *models.Question) string {
	basePrompt := `
You are a support agent for a marketplace seller. Write a short public answer
to a buyer product question.

IMPORTANT RULES:
1. Keep the answer under 80 words
2. Answer only what was asked
3. Reply in the language of the question
4. Use the shop knowledge below when it is relevant; never invent facts
5. If the answer is not known from the product data or shop knowledge, ask the
   buyer to contact support chat

%s
Product: %s
Question: %s

Respond with the answer text only, no quotes and no markup.
`

	knowledge := ai.knowledgeContext(question.Marketplace.UserID)
	return fmt.Sprintf(basePrompt, knowledge, question.ProductName, question.Text)
}

// knowledgeContext collects the user's active knowledge base entries for the prompt
func (ai *AIService) knowledgeContext(userID uint) string {
	var items []models.KnowledgeItem
	if err := database.DB.Where("user_id = ? AND is_active = ?", userID, true).
		Limit(20).Find(&items).Error; err != nil {
		log.Printf("⚠️ Failed to load knowledge base for user %d: %v", userID, err)
		return ""
	}
	if len(items) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Shop knowledge:\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", item.Title, item.Content))
	}
	return sb.String()
}

func (ai *AIService) callGateway(prompt string) (string, error) {
	if ai.apiKey == "" {
		return "", fmt.Errorf("AI gateway is not configured")
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", ai.model, ai.apiKey)

	request := GenerateRequest{
		Contents: []Content{
			{Parts: []Part{{Text: prompt}}},
		},
		GenerationConfig: GenerationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 512,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	resp, err := ai.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI gateway error: %s", string(body))
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", err
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in AI gateway response")
	}

	text := strings.TrimSpace(genResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("empty reply text from AI gateway")
	}
	return text, nil
}
