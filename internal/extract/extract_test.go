package extract

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFacebookCard(t *testing.T) {
	attrs, err := Extract(Input{
		AnchorText:    "Go Developers",
		ContainerText: "Go Developers Active 3 days ago · 12.3K members",
	})
	require.NoError(t, err)

	assert.Equal(t, "Go Developers", attrs.Name)
	assert.Equal(t, "12.3K", attrs.MembersRaw)
	assert.Equal(t, int64(12300), attrs.MembersCount)
	assert.Equal(t, "3 days", attrs.LastActiveRaw)
}

func TestExtractNameFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		expected string
	}{
		{
			name:     "anchor text",
			in:       Input{AnchorText: "  Golang   Kyrgyzstan "},
			expected: "Golang Kyrgyzstan",
		},
		{
			name:     "label when anchor text empty",
			in:       Input{AnchorLabel: "Rust Users Group"},
			expected: "Rust Users Group",
		},
		{
			name:     "label ignored when anchor has text",
			in:       Input{AnchorText: "Rust Users", AnchorLabel: "Something else entirely"},
			expected: "Rust Users",
		},
		{
			name: "container fragment beats tiny lowercase anchor",
			in: Input{
				AnchorText: "view",
				Fragments:  []string{"12K members", "Photography Lovers of Osh", "Active 2 days ago"},
			},
			expected: "Photography Lovers of Osh",
		},
		{
			name: "capitalized anchor keeps its bonus",
			in: Input{
				AnchorText: "Chess Club",
				Fragments:  []string{"chess club"},
			},
			expected: "Chess Club",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := Extract(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, attrs.Name)
		})
	}
}

func TestExtractRejectsMissingName(t *testing.T) {
	tests := []Input{
		{},
		{AnchorText: "   "},
		{AnchorText: "Go"},
		{Fragments: []string{"120 members", "Active 1 day ago", "See all"}},
	}

	for _, in := range tests {
		_, err := Extract(in)
		assert.ErrorIs(t, err, ErrNoName, "%+v", in)
	}
}

func TestExtractTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("Abcdefghij ", 20)
	attrs, err := Extract(Input{AnchorText: long})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(attrs.Name)), MaxNameLength)
}

func TestAltName(t *testing.T) {
	fragments := []string{
		"Short",
		"Joined · 3 posts a day",
		"See all",
		"Create new group",
		"A reasonably long group name",
		strings.Repeat("x", MaxNameLength),
	}
	assert.Equal(t, "A reasonably long group name", AltName(fragments))
	assert.Equal(t, "", AltName(nil))
}

func TestPickName(t *testing.T) {
	assert.Equal(t, "Alpha", PickName("Alpha", ""))
	assert.Equal(t, "Beta", PickName("", "Beta"))
	assert.Equal(t, "", PickName("", ""))
	// equal scores keep the anchor name
	assert.Equal(t, "Alpha", PickName("Alpha", "Gamma"))
	// vocabulary penalty
	assert.Equal(t, "Quiet Readers", PickName("12K members active now", "Quiet Readers"))
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 3*0.3+10, Score("Abc"), 1e-9)
	assert.InDelta(t, 3*0.3, Score("abc"), 1e-9)
	assert.InDelta(t, 7*0.3+10-20, Score("Members"), 1e-9)
	long := strings.Repeat("a", 121)
	assert.InDelta(t, 121*0.3-50, Score(long), 1e-9)
}

func TestMembers(t *testing.T) {
	tests := []struct {
		text  string
		raw   string
		count int64
	}{
		{"12.3K members", "12.3K", 12300},
		{"3,241 members", "3,241", 3241},
		{"1 member", "1", 1},
		{"50K+ members", "50K", 50000},
		{"Public group · 2.1M Members · 10+ posts a day", "2.1M", 2100000},
		{"1,200.5k members", "1,200.5k", 1200500},
		{"Active 3 days ago · 12.3K members", "12.3K", 12300},
		{"no count here", "", 0},
		{"12 membership fees", "", 0},
		{"", "", 0},
	}

	for _, tt := range tests {
		raw, count := Members(tt.text)
		if raw != tt.raw || count != tt.count {
			t.Errorf("Members(%q) = (%q, %d), want (%q, %d)", tt.text, raw, count, tt.raw, tt.count)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw   string
		count int64
	}{
		{"12.3K", 12300},
		{"1m", 1000000},
		{"999", 999},
		{"", 0},
		{"K", 0},
		{"1.2.3", 0},
	}

	for _, tt := range tests {
		if got := ParseCount(tt.raw); got != tt.count {
			t.Errorf("ParseCount(%q) = %d, want %d", tt.raw, got, tt.count)
		}
	}
}

func TestLastActive(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"Last active: 2 hours ago", "2 hours"},
		{"Last active. 5 minutes ago", "5 minutes"},
		{"Active 3 days ago · 12.3K members", "3 days"},
		{"Active: 1 year ago", "1 year"},
		{"Posted 4 weeks ago", "4 weeks"},
		{"Joined 10 months ago · Last active 1 day ago", "1 day"},
		{"Active   6\tseconds   ago", "6 seconds"},
		{"3 days", ""},
		{"Active recently", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := LastActive(tt.text); got != tt.expected {
			t.Errorf("LastActive(%q) = %q, want %q", tt.text, got, tt.expected)
		}
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"3 days", 72 * time.Hour, true},
		{"1 week", 7 * 24 * time.Hour, true},
		{"2 Months", 60 * 24 * time.Hour, true},
		{"1 year", 365 * 24 * time.Hour, true},
		{"45 minutes", 45 * time.Minute, true},
		{"72h", 72 * time.Hour, true},
		{"", 0, false},
		{"recently", 0, false},
		{"-5h", 0, false},
		{"300 years", math.MaxInt64, true},
		{"9223372036854775807 seconds", math.MaxInt64, true},
	}

	for _, tt := range tests {
		got, ok := ParseAge(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseAge(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}
