// Package imagesearch resolves a representative image URL for a search phrase.
package imagesearch

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var ErrNoImage = errors.New("no image found")

// Resolver returns one image URL for phrase, or ErrNoImage. Implementations
// backed by a shared browser must serialize calls themselves.
type Resolver interface {
	Resolve(ctx context.Context, phrase string) (string, error)
}

const placeholderBase = "https://placehold.co/600x400?text="

// Placeholder is the deterministic fallback image for an artwork title.
func Placeholder(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Artwork"
	}
	return placeholderBase + url.QueryEscape(title)
}

// IsPlaceholder reports whether u was produced by Placeholder.
func IsPlaceholder(u string) bool {
	return strings.HasPrefix(u, placeholderBase)
}

// SearchPhrase builds the query sent to the image search for one artwork.
func SearchPhrase(artist, title string) string {
	return strings.Join(strings.Fields(artist+" "+title+" painting artwork"), " ")
}
