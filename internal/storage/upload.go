package storage

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

// MaxUploadSize caps a single uploaded image.
const MaxUploadSize = 5 << 20

// Upload rejections, worded for end users.
var (
	ErrNotImage = &UploadError{Msg: "Please upload an image file"}
	ErrTooLarge = &UploadError{Msg: "Image must be less than 5MB"}
)

type UploadError struct{ Msg string }

func (e *UploadError) Error() string { return e.Msg }

// ValidateUpload accepts image/* content up to MaxUploadSize.
func ValidateUpload(contentType string, size int64) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return ErrNotImage
	}
	if size > MaxUploadSize {
		return ErrTooLarge
	}
	return nil
}

// Extension picks a file extension from the uploaded name, else from the
// content type.
func Extension(filename, contentType string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 && i < len(filename)-1 {
		return strings.ToLower(filename[i+1:])
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	if sub, ok := strings.CutPrefix(mt, "image/"); ok && sub != "" {
		if j := strings.IndexByte(sub, '+'); j > 0 {
			sub = sub[:j]
		}
		if sub == "jpeg" {
			return "jpg"
		}
		return sub
	}
	return "bin"
}

// ObjectKey lays out objects per user: <userID>/<unix-ms>-<kind>.<ext>.
func ObjectKey(userID uint, kind, ext string, now time.Time) string {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "image"
	}
	return fmt.Sprintf("%d/%d-%s.%s", userID, now.UnixMilli(), kind, ext)
}
