package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply-server/database"
	"autoreply-server/models"
	"autoreply-server/services"
)

var settingsService = services.NewSettingsService()

// RegisterSettingsRoutes registers user settings routes
func RegisterSettingsRoutes(router *gin.RouterGroup) {
	router.GET("/settings", getSettings)
	router.PUT("/settings", updateSettings)
}

// getSettings handles GET /settings
func getSettings(c *gin.Context) {
	userID := c.GetUint("user_id")

	var settings models.UserSettings
	if err := database.DB.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Settings not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// updateSettings applies a settings change and migrates existing replies
// between drafted and scheduled for the affected mode groups
func updateSettings(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req models.UserSettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settings data", "details": err.Error()})
		return
	}

	var settings models.UserSettings
	if err := database.DB.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Settings not found"})
		return
	}

	if err := applySettingsUpdate(&settings, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := database.DB.Save(&settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	promoted, demoted, err := settingsService.ApplyModeMigrations(&settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Settings saved but reply migration failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"settings": settings,
		"migration": gin.H{
			"promoted": promoted,
			"demoted":  demoted,
		},
	})
}

// applySettingsUpdate copies the non-nil request fields onto the settings row
func applySettingsUpdate(settings *models.UserSettings, req *models.UserSettingsUpdate) error {
	if req.SemiAutoMode != nil {
		settings.SemiAutoMode = *req.SemiAutoMode
	}
	if req.RequireApprovalLowRating != nil {
		settings.RequireApprovalLowRating = *req.RequireApprovalLowRating
	}

	modes := []struct {
		value  *models.ReplyGenerationMode
		target *models.ReplyGenerationMode
	}{
		{req.ReviewsMode1, &settings.ReviewsMode1},
		{req.ReviewsMode2, &settings.ReviewsMode2},
		{req.ReviewsMode3, &settings.ReviewsMode3},
		{req.ReviewsMode4, &settings.ReviewsMode4},
		{req.ReviewsMode5, &settings.ReviewsMode5},
		{req.QuestionsMode, &settings.QuestionsMode},
	}
	for _, m := range modes {
		if m.value == nil {
			continue
		}
		if !models.IsValidMode(*m.value) {
			return errInvalidMode
		}
		*m.target = *m.value
	}
	return nil
}

var errInvalidMode = errors.New("mode must be 'auto' or 'semi'")
