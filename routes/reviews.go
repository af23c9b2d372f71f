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

// RegisterReviewRoutes registers review listing routes
func RegisterReviewRoutes(router *gin.RouterGroup) {
	router.GET("/reviews", listReviews)
	router.GET("/reviews/:id", getReview)
}

// listReviews handles GET /reviews with optional segment, marketplace_id and
// rating filters. The segment is derived from reply state on every read, so
// the filter is expressed as EXISTS subqueries over live replies.
func listReviews(c *gin.Context) {
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

	query := database.DB.Model(&models.Review{}).
		Joins("JOIN marketplaces ON marketplaces.id = reviews.marketplace_id").
		Where("marketplaces.user_id = ? AND marketplaces.deleted_at IS NULL", userID)

	if mpID := c.Query("marketplace_id"); mpID != "" {
		query = query.Where("reviews.marketplace_id = ?", mpID)
	}
	if rating := c.Query("rating"); rating != "" {
		query = query.Where("reviews.rating = ?", rating)
	}

	if segment := services.Segment(c.Query("segment")); segment != "" {
		if !services.IsValidSegment(segment) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "segment must be 'unanswered', 'pending' or 'archived'"})
			return
		}
		query = applyReviewSegmentFilter(query, segment)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count reviews"})
		return
	}

	var reviews []models.Review
	if err := query.Preload("Marketplace").
		Order("reviews.published_at DESC, reviews.id DESC").
		Offset(offset).Limit(limit).
		Find(&reviews).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load reviews"})
		return
	}

	repliesByReview, err := loadRepliesForReviews(reviews)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load replies"})
		return
	}

	items := make([]gin.H, 0, len(reviews))
	for i := range reviews {
		replies := repliesByReview[reviews[i].ID]
		items = append(items, gin.H{
			"review":  reviews[i],
			"replies": replies,
			"segment": services.ClassifyReview(&reviews[i], replies),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": items,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// getReview handles GET /reviews/:id
func getReview(c *gin.Context) {
	userID := c.GetUint("user_id")

	var review models.Review
	err := database.DB.Preload("Marketplace").
		Joins("JOIN marketplaces ON marketplaces.id = reviews.marketplace_id").
		Where("reviews.id = ? AND marketplaces.user_id = ?", c.Param("id"), userID).
		First(&review).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
		return
	}

	var replies []models.Reply
	if err := database.DB.Where("review_id = ?", review.ID).Order("created_at ASC").Find(&replies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load replies"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"review":  review,
		"replies": replies,
		"segment": services.ClassifyReview(&review, replies),
	})
}

// applyReviewSegmentFilter expresses the segment rules as SQL so that
// pagination counts stay correct. Mirrors services.ClassifySegment.
func applyReviewSegmentFilter(query *gorm.DB, segment services.Segment) *gorm.DB {
	const publishedExists = `EXISTS (
		SELECT 1 FROM replies
		WHERE replies.review_id = reviews.id
		  AND replies.deleted_at IS NULL
		  AND replies.status = 'published')`
	const pendingExists = `EXISTS (
		SELECT 1 FROM replies
		WHERE replies.review_id = reviews.id
		  AND replies.deleted_at IS NULL
		  AND replies.status IN ('scheduled', 'publishing', 'failed'))`

	switch segment {
	case services.SegmentArchived:
		return query.Where("reviews.is_answered = ? OR "+publishedExists, true)
	case services.SegmentPending:
		return query.Where("reviews.is_answered = ? AND NOT "+publishedExists+" AND "+pendingExists, false)
	default: // unanswered
		return query.Where("reviews.is_answered = ? AND NOT "+publishedExists+" AND NOT "+pendingExists, false)
	}
}

// loadRepliesForReviews fetches live replies for a page of reviews in one query
func loadRepliesForReviews(reviews []models.Review) (map[uint][]models.Reply, error) {
	result := make(map[uint][]models.Reply, len(reviews))
	if len(reviews) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(reviews))
	for i := range reviews {
		ids = append(ids, reviews[i].ID)
	}

	var replies []models.Reply
	if err := database.DB.Where("review_id IN ?", ids).Order("created_at ASC").Find(&replies).Error; err != nil {
		return nil, err
	}
	for _, reply := range replies {
		result[*reply.ReviewID] = append(result[*reply.ReviewID], reply)
	}
	return result, nil
}
