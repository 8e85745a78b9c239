package scraper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"groups-exporter/internal/canonical"
	"groups-exporter/internal/extract"
	"groups-exporter/internal/normalize"
	"groups-exporter/internal/observability"
	"groups-exporter/internal/store"
)

type Scanner struct {
	selectors *Selectors
	canon     *canonical.Canonicalizer
	store     *store.Store
	logger    *observability.Logger
}

func NewScanner(selectors *Selectors, canon *canonical.Canonicalizer, st *store.Store, logger *observability.Logger) *Scanner {
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Scanner{
		selectors: selectors,
		canon:     canon,
		store:     st,
		logger:    logger,
	}
}

// ScanHTML parses a document snapshot and runs one pass over it.
func (s *Scanner) ScanHTML(htmlText, baseURL string, f Filters) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return s.Scan(doc, baseURL, f), nil
}

// Scan runs one synchronous pass: every candidate anchor is canonicalized,
// extracted, filtered and reconciled into the store. Bad candidates are
// skipped; the pass itself cannot fail.
func (s *Scanner) Scan(doc *goquery.Document, baseURL string, f Filters) Result {
	var res Result

	containerSel := strings.Join(s.selectors.Containers, ", ")
	fragmentSel := strings.Join(s.selectors.NameFragments, ", ")

	for _, a := range s.anchors(doc) {
		res.Candidates++

		href, ok := a.Attr("href")
		if !ok || !canonical.LooksLikeGroupLink(href) {
			res.Skipped++
			continue
		}

		canonicalURL, err := s.canon.Canonicalize(href, baseURL)
		if err != nil {
			s.logger.Debug("Skipping link", "href", href, "reason", err)
			res.Skipped++
			continue
		}
		key := canonical.Key(canonicalURL)

		container := s.container(a, containerSel)
		in := extract.Input{
			AnchorText:    normalize.NodeText(a.Get(0)),
			ContainerText: normalize.NodeText(container.Get(0)),
		}
		in.AnchorLabel, _ = a.Attr("aria-label")
		if fragmentSel != "" {
			container.Find(fragmentSel).Each(func(_ int, sel *goquery.Selection) {
				in.Fragments = append(in.Fragments, normalize.NodeText(sel.Get(0)))
			})
		}

		attrs, err := extract.Extract(in)
		if err != nil {
			s.logger.Debug("Skipping group without name", "key", key)
			res.Skipped++
			continue
		}

		if !f.Allow(attrs) {
			res.Filtered++
			continue
		}

		_, known := s.store.Get(key)
		inserted := s.store.Upsert(key, store.Candidate{
			Name:          attrs.Name,
			MembersRaw:    attrs.MembersRaw,
			MembersCount:  attrs.MembersCount,
			LastActiveRaw: attrs.LastActiveRaw,
			URL:           canonicalURL,
		})
		switch {
		case inserted:
			res.Added++
			res.Touched = append(res.Touched, key)
		case known:
			res.Merged++
			res.Touched = append(res.Touched, key)
		default:
			res.Refused++
		}
	}

	return res
}

// anchors returns the union of all anchor selector matches, each element
// once, in document order.
func (s *Scanner) anchors(doc *goquery.Document) []*goquery.Selection {
	seen := make(map[*html.Node]bool)
	var nodes []*html.Node
	for _, sel := range s.selectors.Anchors {
		doc.Find(sel).Each(func(_ int, m *goquery.Selection) {
			n := m.Get(0)
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		})
	}
	if len(s.selectors.Anchors) > 1 {
		order := documentOrder(doc.Get(0))
		sort.SliceStable(nodes, func(i, j int) bool {
			return order[nodes[i]] < order[nodes[j]]
		})
	}

	out := make([]*goquery.Selection, len(nodes))
	for i, n := range nodes {
		out[i] = doc.FindNodes(n)
	}
	return out
}

// container is the nearest card-like ancestor, else the parent, else the
// anchor itself.
func (s *Scanner) container(a *goquery.Selection, containerSel string) *goquery.Selection {
	if containerSel != "" {
		if c := a.Closest(containerSel); c.Length() > 0 {
			return c
		}
	}
	if p := a.Parent(); p.Length() > 0 {
		return p
	}
	return a
}

func documentOrder(root *html.Node) map[*html.Node]int {
	order := make(map[*html.Node]int)
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		order[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return order
}
