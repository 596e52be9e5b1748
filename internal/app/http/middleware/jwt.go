package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware.
const (
	KeyUserID = "user_id"
	KeyEmail  = "email"
	KeyRole   = "role"
)

var (
	errNoHeader  = errors.New("Authorization header missing")
	errMalformed = errors.New("Bearer token malformed")
	errInvalid   = errors.New("Invalid or expired token")
)

// Claims are the identity fields carried by an access token.
type Claims struct {
	UserID uint
	Email  string
	Role   string
}

// IssueToken signs an HS256 token for c valid for ttl.
func IssueToken(secret []byte, c Claims, ttl time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": c.UserID,
		"email":   c.Email,
		"role":    c.Role,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return t.SignedString(secret)
}

// ParseToken validates raw and returns its claims.
func ParseToken(secret []byte, raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, errInvalid
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errInvalid
	}
	var c Claims
	if id, ok := mc["user_id"].(float64); ok {
		c.UserID = uint(id)
	}
	c.Email, _ = mc["email"].(string)
	c.Role, _ = mc["role"].(string)
	if c.UserID == 0 {
		return Claims{}, errInvalid
	}
	return c, nil
}

// wsTokenParam carries the token on websocket upgrades, where browsers
// cannot set headers.
const wsTokenParam = "access_token"

func isUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func hasToken(c *gin.Context) bool {
	return c.GetHeader("Authorization") != "" || (isUpgrade(c) && c.Query(wsTokenParam) != "")
}

func bearer(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if raw := c.Query(wsTokenParam); raw != "" && isUpgrade(c) {
			return raw, nil
		}
		return "", errNoHeader
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == header || strings.TrimSpace(raw) == "" {
		return "", errMalformed
	}
	return strings.TrimSpace(raw), nil
}

func setClaims(c *gin.Context, cl Claims) {
	c.Set(KeyUserID, cl.UserID)
	c.Set(KeyEmail, cl.Email)
	c.Set(KeyRole, cl.Role)
}

// AuthRequired rejects requests without a valid bearer token with 401.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearer(c)
		if err != nil {
			unauthorized(c, err)
			return
		}
		cl, err := ParseToken(secret, raw)
		if err != nil {
			unauthorized(c, err)
			return
		}
		setClaims(c, cl)
		c.Next()
	}
}

// AuthOptional sets the identity when a token is present. A present but
// invalid token is still rejected.
func AuthOptional(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasToken(c) {
			c.Next()
			return
		}
		raw, err := bearer(c)
		if err == nil {
			var cl Claims
			if cl, err = ParseToken(secret, raw); err == nil {
				setClaims(c, cl)
				c.Next()
				return
			}
		}
		unauthorized(c, err)
	}
}

// unauthorized answers 401 with one of the fixed token messages. Anything
// else is reported as an invalid token.
func unauthorized(c *gin.Context, err error) {
	msg := errInvalid.Error()
	if errors.Is(err, errNoHeader) || errors.Is(err, errMalformed) {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(KeyRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Role not found in token"})
			return
		}
		if value != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user, or 0 for anonymous requests.
func UserID(c *gin.Context) uint {
	return c.GetUint(KeyUserID)
}
