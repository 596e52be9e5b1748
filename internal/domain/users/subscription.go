package users

import "time"

// Subscription holds a user's tier and usage counters. A limit of -1 means
// unlimited.
type Subscription struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_user_subscriptions_user_id"`
	Tier   string `gorm:"type:varchar(20);not null;default:'free'"`

	RequestsUsed  int `gorm:"not null;default:0"`
	RequestsLimit int `gorm:"not null;default:3"`
	ImagesUsed    int `gorm:"not null;default:0"`
	ImagesLimit   int `gorm:"not null;default:5"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Subscription) TableName() string { return "user_subscriptions" }
