// Package extract recovers group attributes (name, member count, last
// activity) from the flattened text of a DOM fragment. Every heuristic is
// best effort: no match is a normal outcome, never an error or a panic.
package extract

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"groups-exporter/internal/normalize"
)

const (
	// MaxNameLength bounds names; longer candidates are penalized and stored
	// names are truncated to it.
	MaxNameLength = 120
	// MinNameLength rejects records whose best name is shorter.
	MinNameLength = 3
)

var ErrNoName = errors.New("no usable group name")

var (
	membersRe = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?[km]?)\+?\s*members?\b`)

	// Ordered by preference: explicit "last active", then "active", then a
	// bare "<n> <unit> ago".
	lastActiveRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)last\s+active[:.]?\s*(\d+\s*(?:second|minute|hour|day|week|month|year)s?)\s+ago\b`),
		regexp.MustCompile(`(?i)\bactive[:.]?\s*(\d+\s*(?:second|minute|hour|day|week|month|year)s?)\s+ago\b`),
		regexp.MustCompile(`(?i)\b(\d+\s*(?:second|minute|hour|day|week|month|year)s?)\s+ago\b`),
	}

	// Fragments matching this are activity or count chrome, not names.
	chromeRe = regexp.MustCompile(`(?i)members|active|joined|posts|see all|create`)
	// Names mentioning these lose score.
	vocabularyRe = regexp.MustCompile(`(?i)members?|active`)
)

// Input is what the scanner gathered around one anchor.
type Input struct {
	AnchorText    string
	AnchorLabel   string
	ContainerText string
	// Fragments are the texts of the container's name-bearing descendants.
	Fragments []string
}

type Attributes struct {
	Name          string
	MembersRaw    string
	MembersCount  int64
	LastActiveRaw string
}

// Extract resolves every attribute. It fails only when no name of at least
// MinNameLength runes can be found.
func Extract(in Input) (Attributes, error) {
	primary := normalize.Text(in.AnchorText)
	if primary == "" {
		primary = normalize.Text(in.AnchorLabel)
	}

	name := PickName(primary, AltName(in.Fragments))
	name = normalize.Truncate(name, MaxNameLength)
	if utf8.RuneCountInString(name) < MinNameLength {
		return Attributes{}, ErrNoName
	}

	raw, count := Members(in.ContainerText)
	return Attributes{
		Name:          name,
		MembersRaw:    raw,
		MembersCount:  count,
		LastActiveRaw: LastActive(in.ContainerText),
	}, nil
}

// AltName returns the longest fragment under MaxNameLength that is not
// member/activity chrome.
func AltName(fragments []string) string {
	best := ""
	bestLen := 0
	for _, f := range fragments {
		t := normalize.Text(f)
		n := utf8.RuneCountInString(t)
		if n <= bestLen || n >= MaxNameLength {
			continue
		}
		if chromeRe.MatchString(t) {
			continue
		}
		best, bestLen = t, n
	}
	return best
}

// PickName chooses between the anchor-derived name a and the container
// name b. b wins only with a strictly higher score.
func PickName(a, b string) string {
	a, b = normalize.Text(a), normalize.Text(b)
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if Score(b) > Score(a) {
		return b
	}
	return a
}

// Score rates a name candidate: longer is better up to MaxNameLength,
// capitalized names get a bonus, count/activity vocabulary a penalty.
func Score(s string) float64 {
	n := utf8.RuneCountInString(s)
	score := float64(n) * 0.3
	if n > MaxNameLength {
		score -= 50
	}
	if r, _ := utf8.DecodeRuneInString(s); unicode.IsUpper(r) {
		score += 10
	}
	if vocabularyRe.MatchString(s) {
		score -= 20
	}
	return score
}

// Members finds "<number>[K|M] members" in text. raw is the number with its
// unit as written; count is its value, 0 when absent.
func Members(text string) (raw string, count int64) {
	m := membersRe.FindStringSubmatch(text)
	if m == nil {
		return "", 0
	}
	raw = m[1]
	return raw, ParseCount(raw)
}

// ParseCount turns "12.3K", "3,241" or "1M" into a number. Unparseable
// input yields 0.
func ParseCount(raw string) int64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1e3
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1e6
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return int64(math.Round(v * mult))
}

// LastActive returns the "<n> <unit>" part of the first matching
// relative-time phrase, or "".
func LastActive(text string) string {
	for _, re := range lastActiveRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return normalize.Text(m[1])
		}
	}
	return ""
}
