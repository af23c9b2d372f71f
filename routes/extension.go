package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"autoreply-server/database"
	"autoreply-server/models"
	"autoreply-server/services"
)

var extensionDispatcher *services.DispatcherService

// extensionRepliesLimit caps one poll response; a large backlog drains over
// successive polls instead of one unbounded payload.
const extensionRepliesLimit = 50

// InitExtensionRoutes wires the shared dispatcher into the extension callback
// handlers. Must be called before the router starts serving.
func InitExtensionRoutes(dispatcher *services.DispatcherService) {
	extensionDispatcher = dispatcher
}

// RegisterExtensionRoutes registers the browser extension API
func RegisterExtensionRoutes(router *gin.RouterGroup) {
	router.GET("/extension/replies", listExtensionReplies)
	router.POST("/extension/replies/:id/mark-published", markReplyPublished)
}

// listExtensionReplies handles GET /extension/replies: the due scheduled
// replies for the user's extension-published marketplaces. The extension
// polls this endpoint and also gets a websocket nudge when new work appears.
func listExtensionReplies(c *gin.Context) {
	userID := c.GetUint("user_id")
	now := time.Now()

	base := func() *gorm.DB {
		return database.DB.Model(&models.Reply{}).
			Where("replies.status = ? AND replies.scheduled_at IS NOT NULL AND replies.scheduled_at <= ?",
				models.ReplyStatusScheduled, now)
	}

	var reviewReplies []models.Reply
	err := base().
		Joins("JOIN reviews ON reviews.id = replies.review_id").
		Joins("JOIN marketplaces ON marketplaces.id = reviews.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.type = ? AND marketplaces.is_active = ? AND marketplaces.deleted_at IS NULL",
			userID, models.MarketplaceOzon, true).
		Preload("Review.Marketplace").
		Order("replies.scheduled_at ASC").
		Limit(extensionRepliesLimit).
		Find(&reviewReplies).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load pending replies"})
		return
	}

	var questionReplies []models.Reply
	err = base().
		Joins("JOIN questions ON questions.id = replies.question_id").
		Joins("JOIN marketplaces ON marketplaces.id = questions.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.type = ? AND marketplaces.is_active = ? AND marketplaces.deleted_at IS NULL",
			userID, models.MarketplaceOzon, true).
		Preload("Question.Marketplace").
		Order("replies.scheduled_at ASC").
		Limit(extensionRepliesLimit).
		Find(&questionReplies).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load pending replies"})
		return
	}

	replies := append(reviewReplies, questionReplies...)
	if len(replies) > extensionRepliesLimit {
		replies = replies[:extensionRepliesLimit]
	}
	c.JSON(http.StatusOK, gin.H{
		"replies": replies,
		"count":   len(replies),
	})
}

// markReplyPublished handles POST /extension/replies/:id/mark-published: the
// extension reports the outcome of one UI posting attempt. Safe to repeat.
func markReplyPublished(c *gin.Context) {
	userID := c.GetUint("user_id")

	reply, ok := findUserReply(c, userID)
	if !ok {
		return
	}

	var req models.MarkPublishedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callback data", "details": err.Error()})
		return
	}

	if err := extensionDispatcher.MarkPublished(reply.ID, req.Success, req.ErrorMessage); err != nil {
		if errors.Is(err, services.ErrReplyLocked) {
			c.JSON(http.StatusConflict, gin.H{"error": "Reply is being processed, try again shortly"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	database.DB.First(&reply, reply.ID)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
