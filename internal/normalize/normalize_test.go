package normalize

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"   ", ""},
		{"  Go\t\tLovers \n Club ", "Go Lovers Club"},
		{"Текст\u00a0\u00a0с\u00a0NBSP", "Текст с NBSP"},
	}

	for _, tt := range tests {
		if got := Text(tt.input); got != tt.expected {
			t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"Группа любителей", 6, "Группа"},
		{"trailing space cut", 9, "trailing"},
		{"anything", 0, "anything"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.input, tt.max); got != tt.expected {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expected)
		}
	}
}

func TestNodeText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`
		<div><span>Go Lovers</span><div>12.3K members</div><div>Active&nbsp;3 days ago</div>
		<script>var x = "members";</script><style>.a{}</style></div>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got := NodeText(doc)
	want := "Go Lovers 12.3K members Active 3 days ago"
	if got != want {
		t.Errorf("NodeText = %q, want %q", got, want)
	}

	if NodeText(nil) != "" {
		t.Errorf("NodeText(nil) should be empty")
	}
}
