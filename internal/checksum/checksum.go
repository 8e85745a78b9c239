package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"groups-exporter/internal/store"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateRecordHash returns the SHA256 of the record's observable content:
// SHA256(key|name|members|last_active|url). Timestamps are excluded so a
// merge that changes nothing keeps the same hash.
func (g *Generator) GenerateRecordHash(r store.Record) string {
	content := strings.Join([]string{r.Key, r.Name, r.MembersRaw, r.LastActiveRaw, r.URL}, "|")
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// VerifyRecordHash reports whether r still matches expectedHash.
func (g *Generator) VerifyRecordHash(expectedHash string, r store.Record) bool {
	return g.GenerateRecordHash(r) == expectedHash
}
