package site

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

/*
	Share slug helpers
	------------------
	- Responsible ONLY for:
	  • generating share slugs
	  • picking one that is not taken
	  • building public URLs
*/

const (
	slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	slugLength   = 8
	slugAttempts = 5
)

// NewShareSlug returns a random 8 character [a-z0-9] slug.
func NewShareSlug() (string, error) {
	b := make([]byte, slugLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = slugAlphabet[int(b[i])%len(slugAlphabet)]
	}
	return string(b), nil
}

// ValidSlug reports whether s looks like a share slug.
func ValidSlug(s string) bool {
	if len(s) != slugLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(slugAlphabet, r) {
			return false
		}
	}
	return true
}

// UniqueSlug draws slugs until one is free in generated_websites.
//
// IMPORTANT: pass db in, do NOT import the database package here (avoids import cycle).
func UniqueSlug(db *gorm.DB) (string, error) {
	if db == nil {
		return "", fmt.Errorf("db is nil")
	}
	for i := 0; i < slugAttempts; i++ {
		slug, err := NewShareSlug()
		if err != nil {
			return "", err
		}
		var existing Website
		err = db.Select("id").Where("slug = ?", slug).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free slug after %d attempts", slugAttempts)
}

// BuildPublicURL builds the share URL from a slug.
// Example: ("https://siteforge.app", "k3x9q2ab") -> "https://siteforge.app/site/k3x9q2ab"
func BuildPublicURL(base, slug string) string {
	return strings.TrimRight(base, "/") + "/site/" + slug
}
