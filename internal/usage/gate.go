// Package usage enforces per-tier quotas before expensive operations.
package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/metrics"
)

// Kind names a counted operation.
type Kind string

const (
	KindRequests Kind = "requests"
	KindImages   Kind = "images"
	KindEdits    Kind = "edits"
)

// AllowsAnonymous reports whether callers without identity may use kind.
func (k Kind) AllowsAnonymous() bool {
	return k == KindRequests
}

// ErrAnonymous is returned when an anonymous caller asks for a kind that
// needs identity.
var ErrAnonymous = errors.New("usage: authentication required")

// QuotaExceededError carries what the caller needs to render "N remaining".
type QuotaExceededError struct {
	Kind  Kind
	Used  int
	Limit int
	Tier  string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("usage: %s quota exceeded (%d/%d on %s)", e.Kind, e.Used, e.Limit, e.Tier)
}

// Counter is one usage figure.
type Counter struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Usage is a user's tier and counters.
type Usage struct {
	Tier     string  `json:"tier"`
	Requests Counter `json:"requests"`
	Images   Counter `json:"images"`
}

// Store persists counters. Consume must increment only when the counter is
// below its limit, in one step, and report the counter it saw.
type Store interface {
	Consume(ctx context.Context, userID uint, kind Kind) (Counter, string, bool, error)
	Usage(ctx context.Context, userID uint) (Usage, error)
	ConsumeEdit(ctx context.Context, userID uint, websiteID string, limit int) (Counter, bool, error)
}

// Gate checks and consumes quota before the guarded call runs, so a crashed
// downstream call still costs its slot.
type Gate struct {
	store  Store
	limits plans.Table
}

func NewGate(store Store, limits plans.Table) *Gate {
	if limits == nil {
		limits = plans.DefaultTable()
	}
	return &Gate{store: store, limits: limits}
}

// Check consumes one unit of kind for userID. userID 0 is anonymous.
// It returns the caller's tier.
func (g *Gate) Check(ctx context.Context, userID uint, kind Kind) (string, error) {
	if userID == 0 {
		if kind.AllowsAnonymous() {
			return plans.TierFree, nil
		}
		return "", ErrAnonymous
	}
	c, tier, ok, err := g.store.Consume(ctx, userID, kind)
	if err != nil {
		return "", err
	}
	if !ok {
		metrics.QuotaDenialsTotal.WithLabelValues(string(kind)).Inc()
		return tier, &QuotaExceededError{Kind: kind, Used: c.Used, Limit: c.Limit, Tier: tier}
	}
	return tier, nil
}

// CheckEdit consumes one edit of a saved website. Tiers with unlimited
// edits still count them.
func (g *Gate) CheckEdit(ctx context.Context, userID uint, tier, websiteID string) error {
	if userID == 0 {
		return ErrAnonymous
	}
	limit := g.limits.For(tier).Edits
	c, ok, err := g.store.ConsumeEdit(ctx, userID, websiteID, limit)
	if err != nil {
		return err
	}
	if !ok {
		metrics.QuotaDenialsTotal.WithLabelValues(string(KindEdits)).Inc()
		return &QuotaExceededError{Kind: KindEdits, Used: c.Used, Limit: c.Limit, Tier: plans.NormalizeTier(tier)}
	}
	return nil
}

// Usage returns the caller's counters.
func (g *Gate) Usage(ctx context.Context, userID uint) (Usage, error) {
	if userID == 0 {
		return Usage{}, ErrAnonymous
	}
	return g.store.Usage(ctx, userID)
}

// Limits exposes the tier table in use.
func (g *Gate) Limits() plans.Table { return g.limits }
