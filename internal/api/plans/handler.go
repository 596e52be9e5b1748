// Package plans publishes the tier table.
package plans

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainplans "github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
)

type Plan struct {
	Tier            string `json:"tier"`
	RequestsLimit   int    `json:"requests_limit"`
	ImagesLimit     int    `json:"images_limit"`
	EditsPerWebsite int    `json:"edits_per_website"`
}

var order = []string{domainplans.TierFree, domainplans.TierPro, domainplans.TierBusiness}

// List returns a handler for GET /plans. Limits of -1 are unlimited.
func List(table domainplans.Table) gin.HandlerFunc {
	out := make([]Plan, 0, len(order))
	for _, tier := range order {
		l := table.For(tier)
		out = append(out, Plan{
			Tier:            tier,
			RequestsLimit:   l.Requests,
			ImagesLimit:     l.Images,
			EditsPerWebsite: l.Edits,
		})
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plans": out})
	}
}
