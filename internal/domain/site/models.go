package site

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"

	"gorm.io/datatypes"
)

// Website is a saved snapshot of a generated website.
type Website struct {
	ID     string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Slug   string `gorm:"not null;uniqueIndex" json:"slug"`
	UserID uint   `gorm:"not null;index" json:"-"`

	Prompt         string `gorm:"not null" json:"prompt"`
	WebsiteType    string `gorm:"not null;default:'landing'" json:"website_type"`
	TargetAudience string `json:"target_audience"`
	Tier           string `gorm:"not null;default:'free'" json:"tier"`

	Sections            datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"sections"`
	Navigation          datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"navigation"`
	SuggestedPrompts    datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"suggested_prompts"`
	InternalExplanation datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"internal_explanation"`
	Backend             datatypes.JSON `gorm:"type:jsonb" json:"backend,omitempty"`

	EditCount int `gorm:"not null;default:0" json:"edit_count"`
	// Version increments on every content write.
	Version int `gorm:"not null;default:0" json:"version"`

	Revisions []Revision `gorm:"constraint:OnDelete:CASCADE;" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Website) TableName() string { return "generated_websites" }

// SetContent stores w's content columns.
func (s *Website) SetContent(w website.GeneratedWebsite) error {
	s.WebsiteType = w.WebsiteType
	s.TargetAudience = w.TargetAudience

	var err error
	if s.Sections, err = marshalJSON(w.Sections, "[]"); err != nil {
		return fmt.Errorf("sections: %w", err)
	}
	if s.Navigation, err = marshalJSON(w.Navigation, "[]"); err != nil {
		return fmt.Errorf("navigation: %w", err)
	}
	if s.SuggestedPrompts, err = marshalJSON(w.SuggestedPrompts, "[]"); err != nil {
		return fmt.Errorf("suggested prompts: %w", err)
	}
	if s.InternalExplanation, err = marshalJSON(w.InternalExplanation, "{}"); err != nil {
		return fmt.Errorf("internal explanation: %w", err)
	}
	s.Backend = nil
	if w.Backend != nil {
		if s.Backend, err = marshalJSON(w.Backend, ""); err != nil {
			return fmt.Errorf("backend: %w", err)
		}
	}
	return nil
}

// Content decodes the stored columns back into a GeneratedWebsite.
func (s Website) Content() (website.GeneratedWebsite, error) {
	w := website.GeneratedWebsite{
		WebsiteType:      s.WebsiteType,
		TargetAudience:   s.TargetAudience,
		Sections:         []website.Section{},
		Navigation:       []website.NavigationItem{},
		SuggestedPrompts: []string{},
	}
	if err := unmarshalJSON(s.Sections, &w.Sections); err != nil {
		return w, fmt.Errorf("sections: %w", err)
	}
	if err := unmarshalJSON(s.Navigation, &w.Navigation); err != nil {
		return w, fmt.Errorf("navigation: %w", err)
	}
	if err := unmarshalJSON(s.SuggestedPrompts, &w.SuggestedPrompts); err != nil {
		return w, fmt.Errorf("suggested prompts: %w", err)
	}
	if err := unmarshalJSON(s.InternalExplanation, &w.InternalExplanation); err != nil {
		return w, fmt.Errorf("internal explanation: %w", err)
	}
	if len(s.Backend) > 0 && string(s.Backend) != "null" {
		var b website.BackendSpec
		if err := json.Unmarshal(s.Backend, &b); err != nil {
			return w, fmt.Errorf("backend: %w", err)
		}
		w.Backend = &b
	}
	return w, nil
}

func marshalJSON(v any, empty string) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" && empty != "" {
		b = []byte(empty)
	}
	return datatypes.JSON(b), nil
}

func unmarshalJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
