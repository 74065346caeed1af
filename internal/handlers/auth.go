package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/ywcorp/corploango/internal/models"
	"github.com/ywcorp/corploango/internal/utils"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Company  string `json:"company"`
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "username, email and a password of at least 8 characters are required")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user := models.UserAuth{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Name:     req.Name,
		Company:  req.Company,
		Role:     "user",
	}
	if err := rt.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(w, http.StatusConflict, "Username or email already registered")
			return
		}
		log.Printf("Failed to register user: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	log.Printf("✅ User registered: %s", user.Username)
	respondJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var user models.UserAuth
	err := rt.db.WithContext(r.Context()).
		Where("username = ? OR email = ?", req.Username, req.Username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !utils.CheckPasswordHash(req.Password, user.Password)) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		log.Printf("Login query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, rt.cfg.JWTSecret)
	if err != nil {
		log.Printf("Failed to sign tokens for %s: %v", user.Username, err)
		respondError(w, http.StatusInternalServerError, "Failed to issue tokens")
		return
	}

	now := time.Now().UTC()
	if err := rt.db.WithContext(r.Context()).Model(&user).Update("last_login", now).Error; err != nil {
		log.Printf("⚠️ Failed to record last login for %s: %v", user.Username, err)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

// handleLogout exists for client symmetry; tokens are stateless so there is
// nothing to revoke server-side.
func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
