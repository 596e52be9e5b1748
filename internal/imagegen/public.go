package imagegen

import (
	"errors"
	"net/http"

	"github.com/redirect10-prog/siteForge-ai/internal/llm"
)

// PublicError maps an image failure to a status and a message safe to show.
func PublicError(err error) (int, string) {
	switch {
	case llm.StatusCode(err) == http.StatusTooManyRequests:
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again in a moment."
	case errors.Is(err, ErrNoPrompt):
		return http.StatusBadRequest, "Section has no image prompt"
	case errors.Is(err, ErrNotConfigured):
		return http.StatusInternalServerError, "Image generation is not configured"
	case errors.Is(err, ErrTimedOut):
		return http.StatusInternalServerError, "Image generation timed out"
	case errors.Is(err, ErrNoImage):
		return http.StatusInternalServerError, "No image generated"
	}
	return http.StatusInternalServerError, "Failed to generate image"
}
