// Package respond writes the JSON error envelope shared by every handler.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

// Error aborts with {"error": msg}.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// Internal logs err on the context and answers 500 with msg.
func Internal(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, msg)
}

// BadJSON answers 400 for a body that could not be bound.
func BadJSON(c *gin.Context) {
	Error(c, http.StatusBadRequest, "Invalid request body")
}

var quotaMessages = map[usage.Kind]string{
	usage.KindRequests: "Rate limit exceeded. Upgrade your plan for more generations.",
	usage.KindImages:   "Image generation limit reached. Upgrade your plan for more images.",
	usage.KindEdits:    "Edit limit reached for this website. Upgrade your plan for unlimited edits.",
}

// Quota answers a usage gate failure and reports whether err was one.
// Quota denials carry the counters so clients can show what remains.
func Quota(c *gin.Context, err error) bool {
	if errors.Is(err, usage.ErrAnonymous) {
		Error(c, http.StatusUnauthorized, "Authentication required")
		return true
	}
	var qe *usage.QuotaExceededError
	if !errors.As(err, &qe) {
		return false
	}
	kind := string(qe.Kind)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":         quotaMessages[qe.Kind],
		"kind":          kind,
		"used":          qe.Used,
		"limit":         qe.Limit,
		"tier":          qe.Tier,
		kind + "Used":  qe.Used,
		kind + "Limit": qe.Limit,
	})
	return true
}
