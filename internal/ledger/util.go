package ledger

import (
	"strconv"
	"time"
)

func nowUTC() time.Time { return time.Now().UTC() }

// parseField parses a redis hash field that may be empty (field absent).
func parseField(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
