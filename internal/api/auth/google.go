package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/users"
)

const (
	googleIssuer = "https://accounts.google.com"
	stateCookie  = "oauth_state"
)

// GoogleConfig is the OAuth client registered with Google.
type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
	SecureCookie     bool
}

// IDTokenVerifier checks a raw ID token and returns its claims.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (GoogleClaims, error)
}

// Google holds the OAuth flow and the ID token verifier.
type Google struct {
	OAuth            *oauth2.Config
	Verifier         IDTokenVerifier
	FrontendRedirect string
	SecureCookie     bool
}

// NewGoogle discovers Google's OIDC keys once at startup.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("auth: google oidc provider: %w", err)
	}
	return &Google{
		OAuth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		Verifier:         oidcVerifier{provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})},
		FrontendRedirect: cfg.FrontendRedirect,
		SecureCookie:     cfg.SecureCookie,
	}, nil
}

type GoogleClaims struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

type oidcVerifier struct{ v *oidc.IDTokenVerifier }

func (o oidcVerifier) Verify(ctx context.Context, raw string) (GoogleClaims, error) {
	tok, err := o.v.Verify(ctx, raw)
	if err != nil {
		return GoogleClaims{}, err
	}
	var claims GoogleClaims
	if err := tok.Claims(&claims); err != nil {
		return GoogleClaims{}, err
	}
	if claims.Email == "" || claims.Sub == "" {
		return GoogleClaims{}, errors.New("token missing required claims")
	}
	return claims, nil
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GoogleStart GET /auth/google
func (h *Handler) GoogleStart(c *gin.Context) {
	if h.Google == nil {
		respond.Error(c, http.StatusNotFound, "Google sign-in is not enabled")
		return
	}
	state, err := randomState()
	if err != nil {
		respond.Internal(c, err, "Failed to start sign-in")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 300, "/", "", h.Google.SecureCookie, true)
	c.Redirect(http.StatusFound, h.Google.OAuth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GoogleCallback GET /auth/google/callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	if h.Google == nil {
		respond.Error(c, http.StatusNotFound, "Google sign-in is not enabled")
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		respond.Error(c, http.StatusBadRequest, "Missing code or state")
		return
	}
	cookieState, err := c.Cookie(stateCookie)
	if err != nil || cookieState != state {
		respond.Error(c, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.Google.SecureCookie, true)

	ctx := c.Request.Context()
	tok, err := h.Google.OAuth.Exchange(ctx, code)
	if err != nil {
		h.log().Warn("google code exchange failed", zap.Error(err))
		respond.Error(c, http.StatusUnauthorized, "Failed to exchange code")
		return
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		respond.Error(c, http.StatusUnauthorized, "Missing ID token")
		return
	}
	claims, err := h.Google.Verifier.Verify(ctx, rawIDToken)
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "Invalid ID token")
		return
	}

	user, err := h.findOrCreateGoogleUser(ctx, claims)
	if err != nil {
		respond.Internal(c, err, "Failed to sign in")
		return
	}
	access, ok := h.issue(c, user)
	if !ok {
		return
	}
	if h.Google.FrontendRedirect == "" {
		c.JSON(http.StatusOK, gin.H{"token": access})
		return
	}
	c.Redirect(http.StatusFound, h.Google.FrontendRedirect+"?token="+url.QueryEscape(access))
}

func (h *Handler) findOrCreateGoogleUser(ctx context.Context, gc GoogleClaims) (users.User, error) {
	db := h.DB.WithContext(ctx)
	var user users.User

	err := db.Where("google_sub = ?", gc.Sub).Take(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return users.User{}, err
	}

	// Link an existing local account with the same email.
	err = db.Where("email = ?", gc.Email).Take(&user).Error
	if err == nil {
		if user.GoogleSub == nil {
			sub := gc.Sub
			user.GoogleSub = &sub
			if err := db.Model(&user).Update("google_sub", sub).Error; err != nil {
				return users.User{}, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return users.User{}, err
	}

	sub := gc.Sub
	user = users.User{
		Name:         firstNonEmpty(gc.GivenName, gc.Name),
		Lastname:     gc.FamilyName,
		Email:        gc.Email,
		AuthProvider: users.ProviderGoogle,
		GoogleSub:    &sub,
		Role:         users.RoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		return users.User{}, err
	}
	return user, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
