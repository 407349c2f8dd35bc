// Package slug holds the format and reservation rules for short-link slugs
// and target URLs.
package slug

import (
	"regexp"
	"sort"
	"strings"
)

const (
	MinURLLength = 10
	MaxURLLength = 2048

	MinCustomLength = 3
	MaxCustomLength = 50
)

// DefaultReserved overlaps with the service's own route vocabulary.
var DefaultReserved = []string{"stats", "shorten", "admin", "login", "logout", "health", "metrics", "v1"}

var customSlugRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// IsValidURL is a syntactic gate only; reachability is never checked.
func IsValidURL(url string) bool {
	if len(url) < MinURLLength || len(url) > MaxURLLength {
		return false
	}
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// IsValidCustomSlug reports whether slug is 3-50 ASCII letters, digits,
// hyphens or underscores.
func IsValidCustomSlug(slug string) bool {
	return customSlugRegex.MatchString(slug)
}

func NormalizeCustomSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ReservedSet is a fixed set of words that can never be claimed as custom
// slugs. The zero value reserves nothing.
type ReservedSet struct {
	words map[string]struct{}
}

// NewReservedSet normalizes every word the same way custom slugs are
// normalized. Empty words are ignored.
func NewReservedSet(words ...string) ReservedSet {
	set := ReservedSet{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w = NormalizeCustomSlug(w); w != "" {
			set.words[w] = struct{}{}
		}
	}
	return set
}

// DefaultReservedSet returns DefaultReserved plus any extra words.
func DefaultReservedSet(extra ...string) ReservedSet {
	return NewReservedSet(append(append([]string{}, DefaultReserved...), extra...)...)
}

func (r ReservedSet) Contains(slug string) bool {
	_, ok := r.words[slug]
	return ok
}

// Words returns the reserved words in sorted order.
func (r ReservedSet) Words() []string {
	words := make([]string, 0, len(r.words))
	for w := range r.words {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
