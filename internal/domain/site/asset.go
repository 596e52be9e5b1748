package site

import "time"

// Asset is an image a user uploaded for one of their sections.
type Asset struct {
	ID          string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"-"`
	Kind        string `gorm:"not null" json:"kind"`
	ObjectKey   string `gorm:"not null;uniqueIndex" json:"object_key"`
	URL         string `gorm:"not null" json:"url"`
	ContentType string `gorm:"not null" json:"content_type"`
	Size        int64  `gorm:"not null" json:"size"`

	CreatedAt time.Time `json:"created_at"`
}

func (Asset) TableName() string { return "website_assets" }
