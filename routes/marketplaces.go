package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply-server/database"
	"autoreply-server/models"
)

// RegisterMarketplaceRoutes registers marketplace account routes
func RegisterMarketplaceRoutes(router *gin.RouterGroup) {
	router.GET("/marketplaces", listMarketplaces)
	router.POST("/marketplaces", createMarketplace)
	router.PUT("/marketplaces/:id", updateMarketplace)
	router.DELETE("/marketplaces/:id", deleteMarketplace)
}

// listMarketplaces handles GET /marketplaces
func listMarketplaces(c *gin.Context) {
	userID := c.GetUint("user_id")

	var marketplaces []models.Marketplace
	if err := database.DB.Where("user_id = ?", userID).Order("created_at ASC").Find(&marketplaces).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load marketplaces"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marketplaces": marketplaces})
}

// createMarketplace handles POST /marketplaces
func createMarketplace(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req models.MarketplaceCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid marketplace data", "details": err.Error()})
		return
	}

	marketplace := models.Marketplace{
		UserID:         userID,
		Type:           req.Type,
		Name:           req.Name,
		ClientID:       req.ClientID,
		APIKey:         req.APIKey,
		IsActive:       true,
		LastSyncStatus: models.SyncStatusNever,
	}
	if err := database.DB.Create(&marketplace).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create marketplace"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"marketplace": marketplace})
}

// updateMarketplace handles PUT /marketplaces/:id
func updateMarketplace(c *gin.Context) {
	userID := c.GetUint("user_id")

	var marketplace models.Marketplace
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&marketplace).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Marketplace not found"})
		return
	}

	var req models.MarketplaceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid marketplace data", "details": err.Error()})
		return
	}

	if req.Name != nil {
		marketplace.Name = *req.Name
	}
	if req.ClientID != nil {
		marketplace.ClientID = *req.ClientID
	}
	if req.APIKey != nil {
		marketplace.APIKey = *req.APIKey
	}
	if req.IsActive != nil {
		marketplace.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&marketplace).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update marketplace"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marketplace": marketplace})
}

// deleteMarketplace handles DELETE /marketplaces/:id (soft delete; reviews
// and questions already synced stay in place)
func deleteMarketplace(c *gin.Context) {
	userID := c.GetUint("user_id")

	result := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).Delete(&models.Marketplace{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete marketplace"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Marketplace not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Marketplace deleted"})
}
