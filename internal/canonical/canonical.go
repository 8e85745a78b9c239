// Package canonical turns arbitrary group links into a normalized identity:
// the canonical URL origin + "/groups/" + slug, and the slug itself as key.
package canonical

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrMalformed   = errors.New("malformed url")
	ErrForeignHost = errors.New("host outside target domain")
	ErrNoSlug      = errors.New("no group slug")
	ErrDenylisted  = errors.New("administrative groups path")
)

// DefaultDenylist holds the /groups/<x> paths that are navigation chrome,
// not group listings.
var DefaultDenylist = []string{
	"feed",
	"joins",
	"discover",
	"create",
	"requests",
	"browse",
	"categories",
}

const marker = "/groups/"

var keyPrefix = regexp.MustCompile(`^https?://[^/]+/groups/`)

type Canonicalizer struct {
	Domain   string
	Denylist []string
}

// New returns a Canonicalizer for domain (e.g. "facebook.com") with the
// default denylist.
func New(domain string) *Canonicalizer {
	return &Canonicalizer{
		Domain:   strings.ToLower(strings.TrimSpace(domain)),
		Denylist: DefaultDenylist,
	}
}

// Canonicalize resolves rawHref against baseURL and reduces it to
// scheme://host/groups/<slug>. Every rejection is a recoverable per-link
// error.
func (c *Canonicalizer) Canonicalize(rawHref, baseURL string) (string, error) {
	rawHref = strings.TrimSpace(rawHref)
	if rawHref == "" {
		return "", ErrMalformed
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %v", ErrMalformed, baseURL, err)
	}
	ref, err := url.Parse(rawHref)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformed, rawHref, err)
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrMalformed, abs.Scheme)
	}
	host := strings.ToLower(abs.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrMalformed, rawHref)
	}
	if !c.hostAllowed(host) {
		return "", fmt.Errorf("%w: %s", ErrForeignHost, host)
	}

	path := abs.EscapedPath()
	if c.denied(path) {
		return "", fmt.Errorf("%w: %s", ErrDenylisted, path)
	}

	slug, ok := slugOf(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSlug, path)
	}
	for _, d := range c.Denylist {
		if slug == d {
			return "", fmt.Errorf("%w: %s", ErrDenylisted, slug)
		}
	}

	origin := abs.Scheme + "://" + host
	if port := abs.Port(); port != "" && port != defaultPorts[abs.Scheme] {
		origin += ":" + port
	}
	return origin + marker + slug, nil
}

// defaultPorts are dropped so ":443" and no port give the same URL.
var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Key strips the scheme, host and "/groups/" prefix, leaving the slug.
func Key(canonicalURL string) string {
	return keyPrefix.ReplaceAllString(canonicalURL, "")
}

// LooksLikeGroupLink is the broad predicate used to enumerate anchors before
// canonicalization does the strict checks.
func LooksLikeGroupLink(href string) bool {
	return strings.Contains(href, "groups")
}

func (c *Canonicalizer) hostAllowed(host string) bool {
	if c.Domain == "" {
		return true
	}
	return host == c.Domain || strings.HasSuffix(host, "."+c.Domain)
}

func (c *Canonicalizer) denied(path string) bool {
	for _, d := range c.Denylist {
		if strings.Contains(path, marker+d+"/") {
			return true
		}
	}
	return false
}

// slugOf returns the path component right after the first "/groups/".
func slugOf(path string) (string, bool) {
	idx := strings.Index(path, marker)
	if idx == -1 {
		return "", false
	}
	rest := path[idx+len(marker):]
	if end := strings.IndexAny(rest, "/?#"); end != -1 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
