package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/site"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/users"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrWebsiteNotFound is returned by ConsumeEdit for an unknown or foreign
// website.
var ErrWebsiteNotFound = errors.New("usage: website not found")

// GormStore keeps counters in user_subscriptions. Each consume is a single
// conditional UPDATE, so concurrent callers can never push a counter past
// its limit.
type GormStore struct {
	db     *gorm.DB
	limits plans.Table
}

func NewGormStore(db *gorm.DB, limits plans.Table) *GormStore {
	if limits == nil {
		limits = plans.DefaultTable()
	}
	return &GormStore{db: db, limits: limits}
}

func columns(kind Kind) (used, limit string, err error) {
	switch kind {
	case KindRequests:
		return "requests_used", "requests_limit", nil
	case KindImages:
		return "images_used", "images_limit", nil
	}
	return "", "", fmt.Errorf("usage: %s is not a per-user counter", kind)
}

func counterOf(sub users.Subscription, kind Kind) Counter {
	if kind == KindImages {
		return Counter{Used: sub.ImagesUsed, Limit: sub.ImagesLimit}
	}
	return Counter{Used: sub.RequestsUsed, Limit: sub.RequestsLimit}
}

func (s *GormStore) Consume(ctx context.Context, userID uint, kind Kind) (Counter, string, bool, error) {
	used, limit, err := columns(kind)
	if err != nil {
		return Counter{}, "", false, err
	}
	cond := fmt.Sprintf("user_id = ? AND (%s < 0 OR %s < %s)", limit, used, limit)

	for attempt := 0; attempt < 2; attempt++ {
		res := s.db.WithContext(ctx).
			Model(&users.Subscription{}).
			Where(cond, userID).
			UpdateColumn(used, gorm.Expr(used+" + 1"))
		if res.Error != nil {
			return Counter{}, "", false, res.Error
		}

		sub, err := s.load(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.createDefault(ctx, userID); err != nil {
				return Counter{}, "", false, err
			}
			continue
		}
		if err != nil {
			return Counter{}, "", false, err
		}
		return counterOf(sub, kind), plans.NormalizeTier(sub.Tier), res.RowsAffected > 0, nil
	}
	return Counter{}, "", false, fmt.Errorf("usage: no subscription for user %d", userID)
}

func (s *GormStore) Usage(ctx context.Context, userID uint) (Usage, error) {
	sub, err := s.load(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.createDefault(ctx, userID); err != nil {
			return Usage{}, err
		}
		sub, err = s.load(ctx, userID)
	}
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Tier:     plans.NormalizeTier(sub.Tier),
		Requests: counterOf(sub, KindRequests),
		Images:   counterOf(sub, KindImages),
	}, nil
}

// ConsumeEdit counts an edit against a website owned by userID.
func (s *GormStore) ConsumeEdit(ctx context.Context, userID uint, websiteID string, limit int) (Counter, bool, error) {
	q := s.db.WithContext(ctx).
		Model(&site.Website{}).
		Where("id = ? AND user_id = ?", websiteID, userID)
	if limit != plans.Unlimited {
		q = q.Where("edit_count < ?", limit)
	}
	res := q.UpdateColumn("edit_count", gorm.Expr("edit_count + 1"))
	if res.Error != nil {
		return Counter{}, false, res.Error
	}

	var w site.Website
	err := s.db.WithContext(ctx).
		Select("id", "edit_count").
		Where("id = ? AND user_id = ?", websiteID, userID).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Counter{}, false, ErrWebsiteNotFound
	}
	if err != nil {
		return Counter{}, false, err
	}
	return Counter{Used: w.EditCount, Limit: limit}, res.RowsAffected > 0, nil
}

func (s *GormStore) load(ctx context.Context, userID uint) (users.Subscription, error) {
	var sub users.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	return sub, err
}

// createDefault inserts a free subscription; a concurrent insert wins
// silently.
func (s *GormStore) createDefault(ctx context.Context, userID uint) error {
	free := s.limits.For(plans.TierFree)
	sub := users.Subscription{
		UserID:        userID,
		Tier:          plans.TierFree,
		RequestsLimit: free.Requests,
		ImagesLimit:   free.Images,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&sub).Error
}

// SetTier moves a user to tier and resets the limits from the table,
// keeping what was already used.
func (s *GormStore) SetTier(ctx context.Context, userID uint, tier string) error {
	tier = plans.NormalizeTier(tier)
	l := s.limits.For(tier)
	if _, err := s.load(ctx, userID); errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.createDefault(ctx, userID); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&users.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"tier":           tier,
			"requests_limit": l.Requests,
			"images_limit":   l.Images,
		}).Error
}
