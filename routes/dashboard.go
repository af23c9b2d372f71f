package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply-server/database"
	"autoreply-server/models"
)

// RegisterDashboardRoutes registers dashboard stats routes
func RegisterDashboardRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard/stats", getDashboardStats)
}

// getDashboardStats handles GET /dashboard/stats: counters for the account
// overview page
func getDashboardStats(c *gin.Context) {
	userID := c.GetUint("user_id")

	var marketplaceCount int64
	database.DB.Model(&models.Marketplace{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&marketplaceCount)

	reviewCounts := struct {
		Total      int64 `json:"total"`
		Unanswered int64 `json:"unanswered"`
	}{}
	database.DB.Model(&models.Review{}).
		Joins("JOIN marketplaces ON marketplaces.id = reviews.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.deleted_at IS NULL", userID).
		Count(&reviewCounts.Total)
	database.DB.Model(&models.Review{}).
		Joins("JOIN marketplaces ON marketplaces.id = reviews.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.deleted_at IS NULL AND reviews.is_answered = ?", userID, false).
		Count(&reviewCounts.Unanswered)

	questionCounts := struct {
		Total      int64 `json:"total"`
		Unanswered int64 `json:"unanswered"`
	}{}
	database.DB.Model(&models.Question{}).
		Joins("JOIN marketplaces ON marketplaces.id = questions.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.deleted_at IS NULL", userID).
		Count(&questionCounts.Total)
	database.DB.Model(&models.Question{}).
		Joins("JOIN marketplaces ON marketplaces.id = questions.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.deleted_at IS NULL AND questions.is_answered = ?", userID, false).
		Count(&questionCounts.Unanswered)

	replyStatusCounts := make(map[string]int64, 5)
	for _, status := range []models.ReplyStatus{
		models.ReplyStatusDrafted,
		models.ReplyStatusScheduled,
		models.ReplyStatusPublishing,
		models.ReplyStatusPublished,
		models.ReplyStatusFailed,
	} {
		var count int64
		database.DB.Model(&models.Reply{}).
			Joins("LEFT JOIN reviews ON reviews.id = replies.review_id").
			Joins("LEFT JOIN questions ON questions.id = replies.question_id").
			Joins("JOIN marketplaces ON marketplaces.id = COALESCE(reviews.marketplace_id, questions.marketplace_id)").
			Where("marketplaces.user_id = ? AND replies.status = ?", userID, status).
			Count(&count)
		replyStatusCounts[string(status)] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"marketplaces": marketplaceCount,
		"reviews":      reviewCounts,
		"questions":    questionCounts,
		"replies":      replyStatusCounts,
	})
}
