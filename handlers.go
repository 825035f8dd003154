package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"gymtrack/models"
	"gymtrack/pkg/card"
	"gymtrack/pkg/progress"
)

const maxCardImageBytes = 8 * 1024 * 1024

func setupRoutes(r *gin.Engine, parser *card.Parser, store progress.Store) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/cards", submitCardHandler(parser, store))
	authGroup.GET("/trainers/me/progress", myProgressHandler(store))
	authGroup.GET("/trainers/:id/progress", trainerProgressHandler(store))
	authGroup.GET("/trainers/latest", latestProgressHandler(store))
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": usernameVal.(string)})
}

func isAdmin(c *gin.Context) bool {
	role, _ := c.Get("role")
	return role == models.RoleAdmin
}

// submitCardHandler accepts a trainer-card screenshot plus its source
// metadata, runs the extraction pipeline, and merges the result. Successful
// merges answer with the outcome only; extraction failures carry a
// user-displayable hint so the bridge can relay it verbatim.
func submitCardHandler(parser *card.Parser, store progress.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		usernameVal, _ := c.Get("username")
		if usernameVal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		messageID := c.PostForm("message_id")
		if messageID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message_id is required"})
			return
		}
		eventTime := time.Now().UTC()
		if v := c.PostForm("event_time"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "event_time must be RFC3339"})
				return
			}
			eventTime = t
		}
		// a bridge account submits on behalf of chat users; plain accounts
		// may only record against themselves
		userID := usernameVal.(string)
		if v := c.PostForm("user_id"); v != "" {
			if !isAdmin(c) {
				c.JSON(http.StatusForbidden, gin.H{"error": "only administrators may submit for another user"})
				return
			}
			userID = v
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
			return
		}
		if fileHeader.Size > maxCardImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 8MB)"})
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "open upload failed"})
			return
		}
		defer f.Close()
		img, err := imaging.Decode(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported or corrupt image"})
			return
		}

		rec, err := parser.Parse(c.Request.Context(), img)
		if err != nil {
			status, body := cardErrorResponse(err)
			c.JSON(status, body)
			return
		}

		outcome, err := store.Merge(userID, rec, eventTime, messageID)
		if err != nil {
			log.Printf("merge failed user=%s message=%s: %v", userID, messageID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "merge failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"outcome": outcome.String(),
			"record": gin.H{
				"trainer_name": rec.Name,
				"badges":       rec.Badges,
				"time":         rec.Time.String(),
				"pokedex":      rec.Pokedex,
			},
		})
	}
}

func cardErrorResponse(err error) (int, gin.H) {
	var vErr *card.ValidationError
	switch {
	case errors.Is(err, card.ErrUnrecognizedLayout):
		return http.StatusUnprocessableEntity, gin.H{
			"error":   "unrecognized-layout",
			"message": "I couldn't find a trainer card in this image. Please post a trainer card screenshot.",
		}
	case errors.Is(err, card.ErrRecognitionTimeout):
		return http.StatusGatewayTimeout, gin.H{
			"error":   "recognition-timeout",
			"message": "Reading the image took too long. Please try again.",
		}
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, gin.H{
			"error":   "validation-failure",
			"reason":  vErr.Reason,
			"message": vErr.Hint,
		}
	}
	return http.StatusInternalServerError, gin.H{"error": "processing failed"}
}

func myProgressHandler(store progress.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		usernameVal, _ := c.Get("username")
		if usernameVal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		writeProgress(c, store, usernameVal.(string))
	}
}

// trainerProgressHandler serves any user's history to administrators and a
// user's own history to themselves.
func trainerProgressHandler(store progress.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		usernameVal, _ := c.Get("username")
		target := c.Param("id")
		if !isAdmin(c) && (usernameVal == nil || usernameVal.(string) != target) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		writeProgress(c, store, target)
	}
}

func writeProgress(c *gin.Context, store progress.Store, userID string) {
	entries, err := store.GetForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if entries == nil {
		entries = []progress.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

func latestProgressHandler(store progress.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		latest, err := store.GetLatestPerUser()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, latest)
	}
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := Register(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	rt := models.RefreshToken{UserID: userID, TokenHash: hex.EncodeToString(h[:]), ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", hex.EncodeToString(h[:])).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}
