package websites

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/site"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

// ErrNotFound covers both missing and foreign websites.
var ErrNotFound = errors.New("websites: not found")

// Repo persists saved websites.
type Repo struct {
	DB *gorm.DB
}

// Create saves w under a fresh share slug.
func (r *Repo) Create(ctx context.Context, userID uint, prompt, tier string, w website.GeneratedWebsite) (site.Website, error) {
	db := r.DB.WithContext(ctx)
	slug, err := site.UniqueSlug(db)
	if err != nil {
		return site.Website{}, fmt.Errorf("websites: slug: %w", err)
	}
	row := site.Website{Slug: slug, UserID: userID, Prompt: prompt, Tier: tier}
	if err := row.SetContent(w); err != nil {
		return site.Website{}, fmt.Errorf("websites: encode: %w", err)
	}
	if err := db.Create(&row).Error; err != nil {
		return site.Website{}, fmt.Errorf("websites: create: %w", err)
	}
	return row, nil
}

// List returns userID's websites, newest first.
func (r *Repo) List(ctx context.Context, userID uint) ([]site.Website, error) {
	var rows []site.Website
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// Owned loads one of userID's websites.
func (r *Repo) Owned(ctx context.Context, userID uint, id string) (site.Website, error) {
	var row site.Website
	err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return site.Website{}, ErrNotFound
	}
	return row, err
}

// BySlug loads a website by its share slug.
func (r *Repo) BySlug(ctx context.Context, slug string) (site.Website, error) {
	var row site.Website
	err := r.DB.WithContext(ctx).Where("slug = ?", slug).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return site.Website{}, ErrNotFound
	}
	return row, err
}

// Save writes row's content columns back and keeps the previous content
// as a revision tagged with reason. It fails with ErrConflict when another
// write landed since row was read.
func (r *Repo) Save(ctx context.Context, row *site.Website, w website.GeneratedWebsite, reason string) error {
	prev, err := row.Content()
	if err != nil {
		return fmt.Errorf("websites: decode: %w", err)
	}
	rev, err := site.NewRevision(row.ID, reason, prev)
	if err != nil {
		return err
	}
	if err := row.SetContent(w); err != nil {
		return fmt.Errorf("websites: encode: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(row).
			Where("user_id = ? AND version = ?", row.UserID, row.Version).
			Updates(map[string]any{
				"version":              gorm.Expr("version + 1"),
				"website_type":         row.WebsiteType,
				"target_audience":      row.TargetAudience,
				"sections":             row.Sections,
				"navigation":           row.Navigation,
				"suggested_prompts":    row.SuggestedPrompts,
				"internal_explanation": row.InternalExplanation,
				"backend":              row.Backend,
			})
		if res.Error != nil {
			return fmt.Errorf("websites: update: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		row.Version++

		if err := tx.Create(&rev).Error; err != nil {
			return fmt.Errorf("websites: revision: %w", err)
		}
		keep := tx.Model(&site.Revision{}).
			Select("id").
			Where("website_id = ?", row.ID).
			Order("created_at DESC").
			Limit(site.MaxRevisions)
		if err := tx.Where("website_id = ? AND id NOT IN (?)", row.ID, keep).
			Delete(&site.Revision{}).Error; err != nil {
			return fmt.Errorf("websites: prune revisions: %w", err)
		}
		return nil
	})
}

// Revisions lists a website's past versions without their content, newest
// first.
func (r *Repo) Revisions(ctx context.Context, userID uint, id string) ([]site.Revision, error) {
	if _, err := r.Owned(ctx, userID, id); err != nil {
		return nil, err
	}
	var revs []site.Revision
	err := r.DB.WithContext(ctx).
		Select("id", "website_id", "reason", "created_at").
		Where("website_id = ?", id).
		Order("created_at DESC").
		Find(&revs).Error
	return revs, err
}

// ErrRevisionNotFound is returned for a revision of another website.
// ErrConflict reports that the website's content changed after it was read.
var ErrConflict = errors.New("websites: changed concurrently")

var ErrRevisionNotFound = errors.New("websites: revision not found")

// Restore puts a past version back. The content it replaces becomes a
// revision itself, so a restore can be undone.
func (r *Repo) Restore(ctx context.Context, userID uint, id, revisionID string) (site.Website, error) {
	if uuid.Validate(revisionID) != nil {
		return site.Website{}, ErrRevisionNotFound
	}
	row, err := r.Owned(ctx, userID, id)
	if err != nil {
		return row, err
	}
	var rev site.Revision
	err = r.DB.WithContext(ctx).Where("id = ? AND website_id = ?", revisionID, id).Take(&rev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, ErrRevisionNotFound
	}
	if err != nil {
		return row, err
	}
	w, err := rev.Website()
	if err != nil {
		return row, err
	}
	if err := r.Save(ctx, &row, w, site.RevisionRestore); err != nil {
		return row, err
	}
	return row, nil
}

// Delete removes one of userID's websites and returns its slug.
func (r *Repo) Delete(ctx context.Context, userID uint, id string) (string, error) {
	row, err := r.Owned(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if err := r.DB.WithContext(ctx).Delete(&row).Error; err != nil {
		return "", fmt.Errorf("websites: delete: %w", err)
	}
	return row.Slug, nil
}
