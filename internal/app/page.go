package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"groups-exporter/internal/fetcher"
)

// Page is the document a session scans.
type Page interface {
	// Snapshot returns the current HTML and the URL relative links resolve
	// against.
	Snapshot(ctx context.Context) (html string, baseURL string, err error)
	ScrollBy(ctx context.Context, px int) error
}

// MutationNotifier is implemented by pages that can report DOM changes.
type MutationNotifier interface {
	Mutations(ctx context.Context) (<-chan struct{}, error)
}

// StaticPage is a fixed HTML snapshot. Scrolling is a no-op.
type StaticPage struct {
	HTML    string
	BaseURL string
}

func NewStaticPage(html, baseURL string) *StaticPage {
	return &StaticPage{HTML: html, BaseURL: baseURL}
}

// LoadFilePage reads a saved listing from disk.
func LoadFilePage(path, baseURL string) (*StaticPage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return NewStaticPage(string(b), baseURL), nil
}

// FetchPage downloads a listing over HTTP.
func FetchPage(ctx context.Context, f *fetcher.Fetcher, pageURL string) (*StaticPage, error) {
	resp, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}
	return NewStaticPage(string(resp.Body), resp.URL), nil
}

func (p *StaticPage) Snapshot(context.Context) (string, string, error) {
	return p.HTML, p.BaseURL, nil
}

func (p *StaticPage) ScrollBy(context.Context, int) error { return nil }
