package feed

import (
	"fmt"
	"strconv"
	"time"
)

// Report is a single publicly disclosed report from the Hacktivity feed.
// Immutable once fetched.
type Report struct {
	// ID is HackerOne's numeric report id as a string. IDs are assigned
	// monotonically, so they double as the disclosure-order cursor.
	ID          string
	Program     string
	Severity    string
	Title       string
	URL         string
	DisclosedAt time.Time
}

// ParseID converts a report id to its numeric form for ordering.
func ParseID(id string) (uint64, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed report id %q: %w", id, err)
	}
	return n, nil
}
