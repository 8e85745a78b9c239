package scraper

import (
	"time"

	"groups-exporter/internal/extract"
)

type Selectors struct {
	// Anchors enumerate candidate links; matches from several selectors are
	// merged so each element is processed once.
	Anchors []string `yaml:"anchors"`
	// Containers locate the card around an anchor, nearest ancestor first.
	Containers []string `yaml:"containers"`
	// NameFragments are the descendants of a container that may hold the
	// group name.
	NameFragments []string `yaml:"name_fragments"`
}

// DefaultSelectors match the facebook.com group search and membership
// listings.
func DefaultSelectors() *Selectors {
	return &Selectors{
		Anchors: []string{
			`a[role="link"][href*="groups"]`,
			`a[href*="groups"]`,
		},
		Containers: []string{
			`[role="article"]`,
			`[data-pagelet]`,
			`div[class*="x1lliihq"]`,
			`div[class*="x1y1aw1k"]`,
		},
		NameFragments: []string{"span", "strong", "h1", "h2", "h3", "div"},
	}
}

type Filters struct {
	// MinMembers drops groups with fewer members. 0 disables.
	MinMembers int64
	// MaxAge drops groups whose last activity is older, unknown or
	// unparseable. 0 disables.
	MaxAge time.Duration
}

// Allow reports whether attrs pass the filters.
func (f Filters) Allow(attrs extract.Attributes) bool {
	if f.MinMembers > 0 && attrs.MembersCount < f.MinMembers {
		return false
	}
	if f.MaxAge > 0 {
		age, ok := extract.ParseAge(attrs.LastActiveRaw)
		if !ok || age > f.MaxAge {
			return false
		}
	}
	return true
}

// Result summarizes one scan pass.
type Result struct {
	Candidates int
	Added      int
	Merged     int
	Skipped    int
	Filtered   int
	// Refused counts new keys rejected because the store was full.
	Refused int
	// Touched lists keys inserted or merged, in document order.
	Touched []string
}
