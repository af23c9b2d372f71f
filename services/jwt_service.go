package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"autoreply-server/config"
	"autoreply-server/database"
	"autoreply-server/models"
	"autoreply-server/types"
)

// JWTService handles JWT token operations
type JWTService struct{}

// NewJWTService creates a new JWT service
func NewJWTService() *JWTService {
	return &JWTService{}
}

// TokenPair represents a pair of access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// GenerateTokenPair generates both access and refresh tokens
func (js *JWTService) GenerateTokenPair(userID uint, userAgent, ipAddress string) (*TokenPair, error) {
	accessToken, expiresIn, err := js.generateAccessToken(userID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := js.generateRefreshToken(userID, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
	}, nil
}

// generateAccessToken generates a short-lived access token
func (js *JWTService) generateAccessToken(userID uint) (string, int64, error) {
	claims := &types.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(config.AppConfig.JWT.ExpiryHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "autoreply-server",
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(config.AppConfig.JWT.Secret))
	if err != nil {
		return "", 0, err
	}

	expiresIn := int64(config.AppConfig.JWT.ExpiryHours * 3600)
	return tokenString, expiresIn, nil
}

// generateRefreshToken generates a long-lived refresh token
func (js *JWTService) generateRefreshToken(userID uint, userAgent, ipAddress string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	tokenString := hex.EncodeToString(tokenBytes)

	refreshToken := &models.RefreshToken{
		Token:     tokenString,
		UserID:    userID,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := database.DB.Create(refreshToken).Error; err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateAccessToken validates an access token and returns the user id
func (js *JWTService) ValidateAccessToken(tokenString string) (uint, error) {
	token, err := jwt.ParseWithClaims(tokenString, &types.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWT.Secret), nil
	})

	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*types.Claims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}

	return claims.UserID, nil
}

// ValidateRefreshToken validates a refresh token
func (js *JWTService) ValidateRefreshToken(tokenString string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken

	if err := database.DB.Where("token = ?", tokenString).First(&refreshToken).Error; err != nil {
		return nil, errors.New("refresh token not found")
	}

	if !refreshToken.IsValid() {
		return nil, errors.New("refresh token is invalid or expired")
	}

	return &refreshToken, nil
}

// RefreshAccessToken generates a new access token using a refresh token
func (js *JWTService) RefreshAccessToken(refreshTokenString string) (*TokenPair, error) {
	refreshToken, err := js.ValidateRefreshToken(refreshTokenString)
	if err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := js.generateAccessToken(refreshToken.UserID)
	if err != nil {
		return nil, err
	}

	refreshToken.UpdatedAt = time.Now()
	database.DB.Save(refreshToken)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString, // Keep the same refresh token
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
	}, nil
}

// RevokeRefreshToken revokes a refresh token
func (js *JWTService) RevokeRefreshToken(tokenString string) error {
	var refreshToken models.RefreshToken

	if err := database.DB.Where("token = ?", tokenString).First(&refreshToken).Error; err != nil {
		return errors.New("refresh token not found")
	}

	refreshToken.Revoke()
	database.DB.Save(&refreshToken)

	log.Printf("✅ Refresh token revoked for user %d", refreshToken.UserID)
	return nil
}

// CleanupExpiredTokens removes expired refresh tokens
func (js *JWTService) CleanupExpiredTokens() error {
	if err := database.DB.Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{}).Error; err != nil {
		return err
	}

	log.Printf("✅ Expired refresh tokens cleaned up")
	return nil
}

// HashPassword hashes a password using bcrypt
func (js *JWTService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func (js *JWTService) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
