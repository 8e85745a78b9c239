package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groups-exporter/internal/store"
)

var (
	scanned  = time.Date(2025, 10, 18, 9, 30, 0, 0, time.UTC)
	exported = time.Date(2025, 10, 19, 8, 0, 0, 0, time.UTC)
)

func sampleRecords() []store.Record {
	return []store.Record{
		{Key: "small", Name: "Small Group", MembersRaw: "850", MembersCount: 850, URL: "https://www.facebook.com/groups/small", FirstSeenAt: scanned, LastUpdatedAt: scanned},
		{Key: "big", Name: `Go, "Gophers" & Friends`, MembersRaw: "12.3K", MembersCount: 12300, LastActiveRaw: "3 days", URL: "https://www.facebook.com/groups/big", FirstSeenAt: scanned, LastUpdatedAt: scanned},
		{Key: "multi", Name: "Line one\nLine two", URL: "https://www.facebook.com/groups/multi", FirstSeenAt: scanned, LastUpdatedAt: scanned},
		{Key: "mid", Name: "Middle", MembersRaw: "3,241", MembersCount: 3241, LastActiveRaw: "2 hours", URL: "https://www.facebook.com/groups/mid", FirstSeenAt: scanned, LastUpdatedAt: scanned},
	}
}

func fixedNow() time.Time { return exported }

func parseCSV(t *testing.T, out string) [][]string {
	t.Helper()
	require.True(t, strings.HasPrefix(out, BOM), "csv must start with a BOM")
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, BOM))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(sampleRecords(), FormatCSV, Options{})
	require.NoError(t, err)

	assert.Contains(t, out, `"Go, ""Gophers"" & Friends"`)
	assert.Contains(t, out, "\"Line one\nLine two\"")

	rows := parseCSV(t, out)
	require.Len(t, rows, 5)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{`Go, "Gophers" & Friends`, "12.3K", "3 days", "https://www.facebook.com/groups/big", "2025-10-18T09:30:00Z"}, rows[1])
	assert.Equal(t, "Middle", rows[2][0])
	assert.Equal(t, "Small Group", rows[3][0])
	assert.Equal(t, "Line one\nLine two", rows[4][0])
}

func TestRenderCSVInsertionOrderAndLimit(t *testing.T) {
	out, err := Render(sampleRecords(), FormatCSV, Options{Order: OrderInsertion, Limit: 2})
	require.NoError(t, err)

	rows := parseCSV(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, "Small Group", rows[1][0])
	assert.Equal(t, `Go, "Gophers" & Friends`, rows[2][0])
}

func TestRenderJSON(t *testing.T) {
	out, err := Render(sampleRecords(), FormatJSON, Options{Now: fixedNow})
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"total\": 4,")

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.True(t, exported.Equal(doc.ExportedAt))
	assert.Equal(t, 4, doc.Total)
	require.Len(t, doc.Groups, 4)
	assert.Equal(t, "big", doc.Groups[0].Key)
	assert.Equal(t, int64(12300), doc.Groups[0].MembersCount)
	assert.True(t, scanned.Equal(doc.Groups[0].FirstSeenAt))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	group := raw["groups"].([]interface{})[0].(map[string]interface{})
	for _, field := range []string{"key", "name", "membersRaw", "membersCount", "lastActiveRaw", "url", "firstSeenAt", "lastUpdatedAt"} {
		assert.Contains(t, group, field)
	}
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render(nil, FormatCSV, Options{})
	require.NoError(t, err)
	rows := parseCSV(t, out)
	assert.Equal(t, [][]string{Header}, rows)

	out, err = Render(nil, FormatJSON, Options{Now: fixedNow})
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, float64(0), doc["total"])
	assert.Equal(t, []interface{}{}, doc["groups"])
}

func TestRenderDoesNotMutate(t *testing.T) {
	records := sampleRecords()
	_, err := Render(records, FormatCSV, Options{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records)
}

func TestRoundTripCSVMatchesJSON(t *testing.T) {
	records := sampleRecords()

	csvOut, err := Render(records, FormatCSV, Options{})
	require.NoError(t, err)
	jsonOut, err := Render(records, FormatJSON, Options{Now: fixedNow})
	require.NoError(t, err)

	rows := parseCSV(t, csvOut)[1:]
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(jsonOut), &doc))

	require.Len(t, rows, len(doc.Groups))
	for i, g := range doc.Groups {
		assert.Equal(t, Row(g), rows[i], "row %d", i)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render(sampleRecords(), Format("xml"), Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFilename(t *testing.T) {
	day := time.Date(2025, 10, 18, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "groups-csv-2025-10-18.csv", Filename(FormatCSV, day))
	assert.Equal(t, "groups-json-2025-10-18.json", Filename(FormatJSON, day))
}
