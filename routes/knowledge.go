package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply-server/database"
	"autoreply-server/models"
)

// RegisterKnowledgeRoutes registers knowledge base routes
func RegisterKnowledgeRoutes(router *gin.RouterGroup) {
	router.GET("/knowledge", listKnowledgeItems)
	router.POST("/knowledge", createKnowledgeItem)
	router.PUT("/knowledge/:id", updateKnowledgeItem)
	router.DELETE("/knowledge/:id", deleteKnowledgeItem)
}

// listKnowledgeItems handles GET /knowledge
func listKnowledgeItems(c *gin.Context) {
	userID := c.GetUint("user_id")

	var items []models.KnowledgeItem
	if err := database.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load knowledge items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// createKnowledgeItem handles POST /knowledge
func createKnowledgeItem(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req models.KnowledgeItemCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid knowledge item data", "details": err.Error()})
		return
	}

	item := models.KnowledgeItem{
		UserID:   userID,
		Title:    req.Title,
		Content:  req.Content,
		IsActive: true,
	}
	if err := database.DB.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create knowledge item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// updateKnowledgeItem handles PUT /knowledge/:id
func updateKnowledgeItem(c *gin.Context) {
	userID := c.GetUint("user_id")

	var item models.KnowledgeItem
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Knowledge item not found"})
		return
	}

	var req struct {
		Title    *string `json:"title"`
		Content  *string `json:"content"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid knowledge item data", "details": err.Error()})
		return
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Content != nil {
		item.Content = *req.Content
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update knowledge item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// deleteKnowledgeItem handles DELETE /knowledge/:id
func deleteKnowledgeItem(c *gin.Context) {
	userID := c.GetUint("user_id")

	result := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).Delete(&models.KnowledgeItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete knowledge item"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Knowledge item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Knowledge item deleted"})
}
