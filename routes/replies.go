package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoreply-server/database"
	"autoreply-server/models"
)

// RegisterReplyRoutes registers reply lifecycle routes
func RegisterReplyRoutes(router *gin.RouterGroup) {
	router.POST("/replies", createReply)
	router.PUT("/replies/:id", updateReply)
	router.POST("/replies/:id/approve", approveReply)
	router.POST("/replies/:id/retry", retryReply)
	router.DELETE("/replies/:id", deleteReply)
}

// createReply handles POST /replies: a manual draft for a review or question.
// The partial unique index on live replies is the real guard against a second
// active reply for the same target; the pre-check just gives a nicer error.
func createReply(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req models.ReplyCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply data", "details": err.Error()})
		return
	}

	if (req.ReviewID == nil) == (req.QuestionID == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly one of review_id or question_id is required"})
		return
	}

	if req.ReviewID != nil {
		if !userOwnsReview(userID, *req.ReviewID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		var count int64
		database.DB.Model(&models.Reply{}).Where("review_id = ?", *req.ReviewID).Count(&count)
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Review already has an active reply"})
			return
		}
	} else {
		if !userOwnsQuestion(userID, *req.QuestionID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
			return
		}
		var count int64
		database.DB.Model(&models.Reply{}).Where("question_id = ?", *req.QuestionID).Count(&count)
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Question already has an active reply"})
			return
		}
	}

	reply := models.Reply{
		ReviewID:   req.ReviewID,
		QuestionID: req.QuestionID,
		Content:    req.Content,
		Status:     models.ReplyStatusDrafted,
		Mode:       models.ReplyModeSemiAuto,
	}
	if err := database.DB.Create(&reply).Error; err != nil {
		if errors.Is(err, models.ErrReplyTargetInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "Target already has an active reply"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reply": reply})
}

// updateReply handles PUT /replies/:id: editing is only allowed while drafted
func updateReply(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req models.ReplyUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply data", "details": err.Error()})
		return
	}

	reply, ok := findUserReply(c, userID)
	if !ok {
		return
	}

	result := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status = ?", reply.ID, models.ReplyStatusDrafted).
		Update("content", req.Content)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reply"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Only drafted replies can be edited"})
		return
	}

	database.DB.First(&reply, reply.ID)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// approveReply handles POST /replies/:id/approve: drafted -> scheduled.
// The status qualifier makes the transition safe against concurrent writers.
func approveReply(c *gin.Context) {
	userID := c.GetUint("user_id")

	reply, ok := findUserReply(c, userID)
	if !ok {
		return
	}

	now := time.Now()
	result := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status = ?", reply.ID, models.ReplyStatusDrafted).
		Updates(map[string]interface{}{
			"status":       models.ReplyStatusScheduled,
			"scheduled_at": now,
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve reply"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Only drafted replies can be approved"})
		return
	}

	database.DB.First(&reply, reply.ID)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// retryReply handles POST /replies/:id/retry: failed -> scheduled with a
// fresh attempt budget
func retryReply(c *gin.Context) {
	userID := c.GetUint("user_id")

	reply, ok := findUserReply(c, userID)
	if !ok {
		return
	}

	now := time.Now()
	result := database.DB.Model(&models.Reply{}).
		Where("id = ? AND status = ?", reply.ID, models.ReplyStatusFailed).
		Updates(map[string]interface{}{
			"status":        models.ReplyStatusScheduled,
			"scheduled_at":  now,
			"retry_count":   0,
			"error_message": nil,
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry reply"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Only failed replies can be retried"})
		return
	}

	database.DB.First(&reply, reply.ID)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// deleteReply handles DELETE /replies/:id. Published replies stay as the
// permanent record; replies mid-publish cannot be pulled back.
func deleteReply(c *gin.Context) {
	userID := c.GetUint("user_id")

	reply, ok := findUserReply(c, userID)
	if !ok {
		return
	}

	if reply.Status == models.ReplyStatusPublished || reply.Status == models.ReplyStatusPublishing {
		c.JSON(http.StatusConflict, gin.H{"error": "Published or publishing replies cannot be deleted"})
		return
	}

	if err := database.DB.Delete(&models.Reply{}, reply.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete reply"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reply deleted"})
}

// findUserReply loads a reply by path id and checks it belongs to one of the
// user's marketplaces. Writes the error response itself when the lookup fails.
func findUserReply(c *gin.Context, userID uint) (models.Reply, bool) {
	var reply models.Reply
	if err := database.DB.First(&reply, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reply not found"})
		return reply, false
	}

	owned := false
	if reply.ReviewID != nil {
		owned = userOwnsReview(userID, *reply.ReviewID)
	} else if reply.QuestionID != nil {
		owned = userOwnsQuestion(userID, *reply.QuestionID)
	}
	if !owned {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reply not found"})
		return reply, false
	}
	return reply, true
}

func userOwnsReview(userID, reviewID uint) bool {
	var count int64
	database.DB.Model(&models.Review{}).
		Joins("JOIN marketplaces ON marketplaces.id = reviews.marketplace_id").
		Where("reviews.id = ? AND marketplaces.user_id = ?", reviewID, userID).
		Count(&count)
	return count > 0
}

func userOwnsQuestion(userID, questionID uint) bool {
	var count int64
	database.DB.Model(&models.Question{}).
		Joins("JOIN marketplaces ON marketplaces.id = questions.marketplace_id").
		Where("questions.id = ? AND marketplaces.user_id = ?", questionID, userID).
		Count(&count)
	return count > 0
}
