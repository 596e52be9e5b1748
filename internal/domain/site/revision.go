package site

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

// MaxRevisions is how many past versions are kept per website.
const MaxRevisions = 20

// Revision reasons.
const (
	RevisionUpdate  = "update"
	RevisionEdit    = "edit"
	RevisionSession = "session"
	RevisionRestore = "restore"
)

// Revision is the content a website had before one overwrite.
type Revision struct {
	ID        string         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WebsiteID string         `gorm:"type:uuid;index;not null" json:"website_id"`
	Reason    string         `gorm:"not null" json:"reason"`
	Content   datatypes.JSON `gorm:"type:jsonb;not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Revision) TableName() string { return "website_revisions" }

// NewRevision snapshots w as a revision of websiteID.
func NewRevision(websiteID, reason string, w website.GeneratedWebsite) (Revision, error) {
	body, err := marshalJSON(w, "{}")
	if err != nil {
		return Revision{}, fmt.Errorf("revision: %w", err)
	}
	return Revision{WebsiteID: websiteID, Reason: reason, Content: body}, nil
}

// Website decodes the stored snapshot.
func (r Revision) Website() (website.GeneratedWebsite, error) {
	var w website.GeneratedWebsite
	if err := json.Unmarshal(r.Content, &w); err != nil {
		return w, fmt.Errorf("revision %s: %w", r.ID, err)
	}
	return w, nil
}
