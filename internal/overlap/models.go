package overlap

import (
	"strings"
	"time"
)

const (
	profileLinkBaseURL  = "https://x.com/i/user/"
	seedLinkSeparator   = "/"
	registerDateDayOnly = "2006-01-02"
)

// registerDateLayouts lists the accepted register_date formats: the Ruby-style
// timestamps the follows API emits, and plain dates found in hand-edited snapshots.
var registerDateLayouts = []string{time.RubyDate, registerDateDayOnly}

// Account describes a followed account observed in a seed's follow list.
type Account struct {
	ID           string
	Name         string
	RegisterDate string
	Link         string
}

// OverlapRecord aggregates the seeds following a single target account.
// FollowedBy preserves first-observed order and never contains duplicates.
type OverlapRecord struct {
	Account    Account
	FollowedBy []string
}

// FollowersCount reports how many seeds follow the record's account.
func (record OverlapRecord) FollowersCount() int {
	return len(record.FollowedBy)
}

// SeedFailure captures a fetch failure for a single seed account.
type SeedFailure struct {
	Seed string
	Err  error
}

// ProfileLink derives the canonical profile URL for an account identifier.
func ProfileLink(accountID string) string {
	return profileLinkBaseURL + accountID
}

// SeedHandle extracts the seed identifier from a profile link. The identifier is
// the final path segment with any query string removed.
func SeedHandle(seedLink string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(seedLink), seedLinkSeparator)
	if queryIndex := strings.IndexRune(trimmed, '?'); queryIndex >= 0 {
		trimmed = trimmed[:queryIndex]
	}
	segments := strings.Split(trimmed, seedLinkSeparator)
	return segments[len(segments)-1]
}

// ParseRegisterDate parses a register_date value using the accepted layouts.
func ParseRegisterDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	var parseErr error
	for _, layout := range registerDateLayouts {
		parsed, layoutErr := time.Parse(layout, trimmed)
		if layoutErr == nil {
			return parsed, nil
		}
		parseErr = layoutErr
	}
	return time.Time{}, parseErr
}
