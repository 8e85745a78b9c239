package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ageRe = regexp.MustCompile(`(?i)^(\d+)\s*(second|minute|hour|day|week|month|year)s?$`)

const day = 24 * time.Hour

var ageUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    day,
	"week":   7 * day,
	"month":  30 * day,
	"year":   365 * day,
}

// ParseAge converts a relative phrase such as "3 days" (the LastActive
// format) into a duration. Go duration syntax ("72h") is accepted too so
// thresholds can be configured either way.
func ParseAge(raw string) (time.Duration, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if m := ageRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		unit := ageUnits[strings.ToLower(m[2])]
		// Past ~292 years the product no longer fits a Duration.
		if n > math.MaxInt64/int64(unit) {
			return math.MaxInt64, true
		}
		return time.Duration(n) * unit, true
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d, true
	}
	return 0, false
}
