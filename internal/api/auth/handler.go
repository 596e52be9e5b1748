// Package auth issues access tokens for email/password and Google sign-in.
package auth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/users"
)

type Handler struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration
	Google *Google // nil when Google sign-in is off
	Log    *zap.Logger
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func (h *Handler) issue(c *gin.Context, user users.User) (string, bool) {
	tok, err := middleware.IssueToken(h.Secret, middleware.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, h.TTL)
	if err != nil {
		respond.Internal(c, err, "Could not create token")
		return "", false
	}
	return tok, true
}

// Register POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required"`
		Lastname string `json:"lastname"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Error(c, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !emailPattern.MatchString(email) {
		respond.Error(c, http.StatusBadRequest, "Invalid email format")
		return
	}
	if !isPasswordStrong(input.Password) {
		respond.Error(c, http.StatusBadRequest, "Password must be at least 8 characters long and contain both letters and numbers")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respond.Internal(c, err, "Failed to hash password")
		return
	}
	pw := string(hashed)
	user := users.User{
		Name:         input.Name,
		Lastname:     input.Lastname,
		Email:        email,
		Password:     &pw,
		AuthProvider: users.ProviderLocal,
		Role:         users.RoleUser,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			respond.Error(c, http.StatusConflict, "Email already registered")
			return
		}
		respond.Internal(c, err, "Failed to create user")
		return
	}
	h.log().Info("user registered", zap.Uint("user_id", user.ID))

	tok, ok := h.issue(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": tok})
}

// Login POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Error(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	var user users.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		Take(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respond.Internal(c, err, "Login failed")
			return
		}
		respond.Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.Password == nil || *user.Password == "" {
		respond.Error(c, http.StatusUnauthorized, "This account uses Google sign-in")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.Password)); err != nil {
		respond.Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tok, ok := h.issue(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

// ChangePassword POST /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadJSON(c)
		return
	}
	if !isPasswordStrong(body.NewPassword) {
		respond.Error(c, http.StatusBadRequest, "New password must be at least 8 characters with letters and numbers")
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var user users.User
	if err := db.Take(&user, middleware.UserID(c)).Error; err != nil {
		respond.Error(c, http.StatusUnauthorized, "User not found")
		return
	}
	if user.Password == nil || *user.Password == "" {
		respond.Error(c, http.StatusBadRequest, "This account does not have a password. Sign in with Google.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(body.OldPassword)); err != nil {
		respond.Error(c, http.StatusUnauthorized, "Old password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respond.Internal(c, err, "Failed to hash password")
		return
	}
	if err := db.Model(&user).Update("password", string(hashed)).Error; err != nil {
		respond.Internal(c, err, "Failed to change password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
