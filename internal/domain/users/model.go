package users

import "time"

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint `gorm:"primaryKey"`
	Name         string
	Lastname     string
	Email        string  `gorm:"not null;uniqueIndex:idx_users_email"`
	Password     *string `gorm:""`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub"`
	Role         string

	CreatedAt time.Time
	UpdatedAt time.Time
}
