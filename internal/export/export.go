// Package export renders group records as CSV or JSON text.
//
// CSV output starts with a UTF-8 byte-order mark so spreadsheet tools detect
// the encoding. The "Scanned At" column is the record's last update in
// RFC 3339 UTC, independent of the host locale.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"groups-exporter/internal/store"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// BOM prefixes CSV output.
const BOM = "\uFEFF"

var ErrUnknownFormat = errors.New("unknown export format")

// Header is the CSV header row.
var Header = []string{"Group Name", "Members", "Last Active", "URL", "Scanned At"}

type Order int

const (
	// OrderMembersDesc sorts by member count, largest first; ties keep
	// insertion order.
	OrderMembersDesc Order = iota
	OrderInsertion
)

type Options struct {
	Order Order
	// Limit caps the number of rows; 0 means all.
	Limit int
	// Now stamps JSON exports; defaults to time.Now.
	Now func() time.Time
}

// Document is the JSON export layout.
type Document struct {
	ExportedAt time.Time      `json:"exportedAt"`
	Total      int            `json:"total"`
	Groups     []store.Record `json:"groups"`
}

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Render serializes records without modifying them.
func Render(records []store.Record, format Format, opts Options) (string, error) {
	rows := Arrange(records, opts)

	switch format {
	case FormatCSV:
		return renderCSV(rows)
	case FormatJSON:
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		return renderJSON(rows, now().UTC())
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Arrange returns a sorted, limited copy of records.
func Arrange(records []store.Record, opts Options) []store.Record {
	rows := make([]store.Record, len(records))
	copy(rows, records)

	if opts.Order == OrderMembersDesc {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].MembersCount > rows[j].MembersCount
		})
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows
}

// Row is the CSV row for one record.
func Row(r store.Record) []string {
	scanned := ""
	if !r.LastUpdatedAt.IsZero() {
		scanned = r.LastUpdatedAt.UTC().Format(time.RFC3339)
	}
	return []string{r.Name, r.MembersRaw, r.LastActiveRaw, r.URL, scanned}
}

func renderCSV(rows []store.Record) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(Row(r)); err != nil {
			return "", fmt.Errorf("failed to write csv row %s: %w", r.Key, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.String(), nil
}

func renderJSON(rows []store.Record, exportedAt time.Time) (string, error) {
	doc := Document{
		ExportedAt: exportedAt,
		Total:      len(rows),
		Groups:     rows,
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal json: %w", err)
	}
	return string(b), nil
}

// Filename is groups-<format>-<YYYY-MM-DD>.<ext>.
func Filename(format Format, t time.Time) string {
	return fmt.Sprintf("groups-%s-%s.%s", format, t.Format("2006-01-02"), format)
}
