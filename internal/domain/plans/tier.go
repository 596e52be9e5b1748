package plans

import "strings"

// Tier constants (single source of truth)
const (
	TierFree     = "free"
	TierPro      = "pro"
	TierBusiness = "business"
)

// Unlimited marks a limit that is never reached.
const Unlimited = -1

// Limits are the per-tier quotas. Requests and Images are per user,
// Edits are per saved website.
type Limits struct {
	Requests int `koanf:"requests"`
	Images   int `koanf:"images"`
	Edits    int `koanf:"edits"`
}

// Table maps a tier to its limits.
type Table map[string]Limits

// DefaultTable is used when configuration does not override a tier.
func DefaultTable() Table {
	return Table{
		TierFree:     {Requests: 3, Images: 5, Edits: 3},
		TierPro:      {Requests: 20, Images: 50, Edits: Unlimited},
		TierBusiness: {Requests: Unlimited, Images: Unlimited, Edits: Unlimited},
	}
}

// For returns the limits of tier, falling back to the free tier.
func (t Table) For(tier string) Limits {
	if l, ok := t[NormalizeTier(tier)]; ok {
		return l
	}
	return DefaultTable()[TierFree]
}

// NormalizeTier returns the effective tier for a stored or requested value.
// Anything unknown is treated as free.
func NormalizeTier(tier string) string {
	switch t := strings.ToLower(strings.TrimSpace(tier)); t {
	case TierFree, TierPro, TierBusiness:
		return t
	}
	return TierFree
}

// Exceeded reports whether used has reached limit.
func Exceeded(used, limit int) bool {
	return limit != Unlimited && used >= limit
}

// SectionHint is the tier's instruction on how rich the generated site is.
func SectionHint(tier string) string {
	switch NormalizeTier(tier) {
	case TierPro:
		return "Generate 5-6 sections for a professional website. Include Hero, Features, Pricing, Testimonials, and CTA sections."
	case TierBusiness:
		return "Generate 6-7 sections for a premium enterprise website with full features."
	default:
		return "Generate 3-4 sections for a basic landing page. Include Hero, Features, and CTA sections."
	}
}
