// Package analytics derives read-time statistics from a link's click log.
// Nothing computed here is cached or persisted.
package analytics

import (
	"math"
	"sort"
	"time"

	"tinylink/pkg/storage"
)

const (
	RecentLimit = 20

	// Referrers longer than ReferrerMaxLength runes are cut to
	// referrerKeepLength runes plus an ellipsis before grouping, so long
	// referrers sharing a prefix land in one bucket.
	ReferrerMaxLength  = 50
	referrerKeepLength = 47
	ellipsis           = "..."

	DirectReferrer = "Direct"
	UnknownValue   = "unknown"

	dateLayout = "2006-01-02"
)

type Stats struct {
	TotalClicks       int64                `json:"total_clicks"`
	UniqueVisitors    int                  `json:"unique_visitors"`
	DaysSinceCreation int                  `json:"days_since_creation"`
	AvgClicksPerDay   float64              `json:"avg_clicks_per_day"`
	ClicksByDate      map[string]int       `json:"clicks_by_date"`
	ClicksByDevice    map[string]int       `json:"clicks_by_device"`
	ClicksByBrowser   map[string]int       `json:"clicks_by_browser"`
	ClicksByOS        map[string]int       `json:"clicks_by_os"`
	ClicksByReferrer  map[string]int       `json:"clicks_by_referrer"`
	RecentClicks      []storage.ClickEvent `json:"recent_clicks"`
}

type Aggregator struct {
	now func() time.Time
}

// NewAggregator uses now as the clock; nil means time.Now.
func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{now: now}
}

// Compute builds every view over clicks. totalClicks is the scalar count
// used for the total and the daily average; pass int64(len(clicks)) when no
// separate count was queried.
func (a *Aggregator) Compute(link *storage.ShortLink, clicks []storage.ClickEvent, totalClicks int64) *Stats {
	days := DaysSince(link.CreatedAt, a.now())

	stats := &Stats{
		TotalClicks:       totalClicks,
		UniqueVisitors:    UniqueVisitors(clicks),
		DaysSinceCreation: days,
		AvgClicksPerDay:   AvgPerDay(totalClicks, days),
		ClicksByDate:      make(map[string]int),
		ClicksByDevice:    make(map[string]int),
		ClicksByBrowser:   make(map[string]int),
		ClicksByOS:        make(map[string]int),
		ClicksByReferrer:  make(map[string]int),
		RecentClicks:      Recent(clicks, RecentLimit),
	}

	for _, c := range clicks {
		stats.ClicksByDate[c.Timestamp.UTC().Format(dateLayout)]++
		stats.ClicksByDevice[orUnknown(c.DeviceType)]++
		stats.ClicksByBrowser[orUnknown(c.Browser)]++
		stats.ClicksByOS[orUnknown(c.OS)]++
		stats.ClicksByReferrer[ReferrerKey(c.Referrer)]++
	}
	return stats
}

// DaysSince is the whole-day floor of now - createdAt, never negative.
func DaysSince(createdAt, now time.Time) int {
	elapsed := now.UTC().Sub(createdAt.UTC())
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

// AvgPerDay divides by max(1, days) and rounds to one decimal place.
func AvgPerDay(total int64, days int) float64 {
	if days < 1 {
		days = 1
	}
	return math.Round(float64(total)/float64(days)*10) / 10
}

// UniqueVisitors counts distinct non-empty IP addresses.
func UniqueVisitors(clicks []storage.ClickEvent) int {
	seen := make(map[string]struct{})
	for _, c := range clicks {
		if c.IPAddress != nil && *c.IPAddress != "" {
			seen[*c.IPAddress] = struct{}{}
		}
	}
	return len(seen)
}

// ReferrerKey maps an absent referrer to "Direct" and truncates long ones.
func ReferrerKey(referrer *string) string {
	if referrer == nil || *referrer == "" {
		return DirectReferrer
	}
	runes := []rune(*referrer)
	if len(runes) > ReferrerMaxLength {
		return string(runes[:referrerKeepLength]) + ellipsis
	}
	return *referrer
}

// Recent returns up to limit events, newest first. clicks is not modified.
func Recent(clicks []storage.ClickEvent, limit int) []storage.ClickEvent {
	sorted := make([]storage.ClickEvent, len(clicks))
	copy(sorted, clicks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func orUnknown(v *string) string {
	if v == nil || *v == "" {
		return UnknownValue
	}
	return *v
}
