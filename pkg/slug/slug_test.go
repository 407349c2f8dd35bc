package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"https", "https://example.com", true},
		{"http minimum length", "http://a.b", true},
		{"too short", "http://a", false},
		{"missing scheme", "example.com/page", false},
		{"ftp scheme", "ftp://example.com/file", false},
		{"empty", "", false},
		{"max length", "https://" + strings.Repeat("a", MaxURLLength-8), true},
		{"over max length", "https://" + strings.Repeat("a", MaxURLLength-7), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidURL(tt.url))
		})
	}
}

func TestIsValidCustomSlug(t *testing.T) {
	tests := []struct {
		slug     string
		expected bool
	}{
		{"abc", true},
		{"valid_slug-123", true},
		{"MixedCase", true},
		{"ab", false},
		{"", false},
		{"has space", false},
		{"bang!", false},
		{"ünï", false},
		{strings.Repeat("a", 50), true},
		{strings.Repeat("a", 51), false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidCustomSlug(tt.slug))
		})
	}
}

func TestNormalizeCustomSlug(t *testing.T) {
	assert.Equal(t, "promo", NormalizeCustomSlug("  PROMO \n"))
	assert.Equal(t, "my-link", NormalizeCustomSlug("My-Link"))
	assert.Equal(t, "", NormalizeCustomSlug("   "))
}

func TestReservedSet(t *testing.T) {
	set := DefaultReservedSet("Dashboard", " ")

	assert.True(t, set.Contains("stats"))
	assert.True(t, set.Contains("shorten"))
	assert.True(t, set.Contains("dashboard"))
	assert.False(t, set.Contains("STATS"), "callers normalize before lookup")
	assert.False(t, set.Contains("promo"))
	assert.NotContains(t, set.Words(), "")
	assert.IsIncreasing(t, set.Words())

	var empty ReservedSet
	assert.False(t, empty.Contains("stats"))
}
