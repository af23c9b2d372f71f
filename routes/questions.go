package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autoreply-server/database"
	"autoreply-server/models"
	"autoreply-server/services"
)

// RegisterQuestionRoutes registers question listing routes
func RegisterQuestionRoutes(router *gin.RouterGroup) {
	router.GET("/questions", listQuestions)
	router.GET("/questions/:id", getQuestion)
}

// listQuestions handles GET /questions with optional segment and
// marketplace_id filters
func listQuestions(c *gin.Context) {
	userID := c.GetUint("user_id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := database.DB.Model(&models.Question{}).
		Joins("JOIN marketplaces ON marketplaces.id = questions.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.deleted_at IS NULL", userID)

	if mpID := c.Query("marketplace_id"); mpID != "" {
		query = query.Where("questions.marketplace_id = ?", mpID)
	}

	if segment := services.Segment(c.Query("segment")); segment != "" {
		if !services.IsValidSegment(segment) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "segment must be 'unanswered', 'pending' or 'archived'"})
			return
		}
		query = applyQuestionSegmentFilter(query, segment)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count questions"})
		return
	}

	var questions []models.Question
	if err := query.Preload("Marketplace").
		Order("questions.asked_at DESC, questions.id DESC").
		Offset(offset).Limit(limit).
		Find(&questions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load questions"})
		return
	}

	repliesByQuestion, err := loadRepliesForQuestions(questions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load replies"})
		return
	}

	items := make([]gin.H, 0, len(questions))
	for i := range questions {
		replies := repliesByQuestion[questions[i].ID]
		items = append(items, gin.H{
			"question": questions[i],
			"replies":  replies,
			"segment":  services.ClassifyQuestion(&questions[i], replies),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": items,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// getQuestion handles GET /questions/:id
func getQuestion(c *gin.Context) {
	userID := c.GetUint("user_id")

	var question models.Question
	err := database.DB.Preload("Marketplace").
		Joins("JOIN marketplaces ON marketplaces.id = questions.marketplace_id").
		Where("questions.id = ? AND marketplaces.user_id = ?", c.Param("id"), userID).
		First(&question).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
		return
	}

	var replies []models.Reply
	if err := database.DB.Where("question_id = ?", question.ID).Order("created_at ASC").Find(&replies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load replies"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": question,
		"replies":  replies,
		"segment":  services.ClassifyQuestion(&question, replies),
	})
}

// applyQuestionSegmentFilter mirrors services.ClassifySegment in SQL
func applyQuestionSegmentFilter(query *gorm.DB, segment services.Segment) *gorm.DB {
	const publishedExists = `EXISTS (
		SELECT 1 FROM replies
		WHERE replies.question_id = questions.id
		  AND replies.deleted_at IS NULL
		  AND replies.status = 'published')`
	const pendingExists = `EXISTS (
		SELECT 1 FROM replies
		WHERE replies.question_id = questions.id
		  AND replies.deleted_at IS NULL
		  AND replies.status IN ('scheduled', 'publishing', 'failed'))`

	switch segment {
	case services.SegmentArchived:
		return query.Where("questions.is_answered = ? OR "+publishedExists, true)
	case services.SegmentPending:
		return query.Where("questions.is_answered = ? AND NOT "+publishedExists+" AND "+pendingExists, false)
	default: // unanswered
		return query.Where("questions.is_answered = ? AND NOT "+publishedExists+" AND NOT "+pendingExists, false)
	}
}

// loadRepliesForQuestions fetches live replies for a page of questions in one query
func loadRepliesForQuestions(questions []models.Question) (map[uint][]models.Reply, error) {
	result := make(map[uint][]models.Reply, len(questions))
	if len(questions) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(questions))
	for i := range questions {
		ids = append(ids, questions[i].ID)
	}

	var replies []models.Reply
	if err := database.DB.Where("question_id IN ?", ids).Order("created_at ASC").Find(&replies).Error; err != nil {
		return nil, err
	}
	for _, reply := range replies {
		result[*reply.QuestionID] = append(result[*reply.QuestionID], reply)
	}
	return result, nil
}
