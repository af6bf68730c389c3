// Package reconcile merges dated new-tracking snapshots into one canonical
// latest-known record per account id.
package reconcile

import (
	"strings"
	"time"

	"github.com/follow-scope/fscope/internal/overlap"
	"github.com/follow-scope/fscope/internal/tracking"
)

// CanonicalRecord is the row chosen to represent an account across snapshots,
// together with its parsed registration timestamp.
type CanonicalRecord struct {
	Row          tracking.Row
	RegisterDate time.Time
}

// ParseFailure reports a snapshot row whose register_date could not be parsed.
// The row is excluded from grouping; the rest of the merge proceeds.
type ParseFailure struct {
	SnapshotIndex int
	AccountID     string
	RegisterDate  string
	Err           error
}

// MergeResult holds the canonical table and the rows excluded for parse errors.
type MergeResult struct {
	Canonical map[string]CanonicalRecord
	Failures  []ParseFailure
}

// Merge groups the snapshot rows by account id and keeps, per id, the row with
// the maximum register_date. A timestamp tie is broken by input order with the
// last-seen row winning. A blank link on the winning row is filled from the id.
func Merge(snapshots [][]tracking.Row) MergeResult {
	result := MergeResult{Canonical: make(map[string]CanonicalRecord)}

	for snapshotIndex, snapshotRows := range snapshots {
		for _, row := range snapshotRows {
			accountID := strings.TrimSpace(row.ID)
			if accountID == "" {
				continue
			}
			registerDate, parseErr := overlap.ParseRegisterDate(row.RegisterDate)
			if parseErr != nil {
				result.Failures = append(result.Failures, ParseFailure{
					SnapshotIndex: snapshotIndex,
					AccountID:     accountID,
					RegisterDate:  row.RegisterDate,
					Err:           parseErr,
				})
				continue
			}

			current, exists := result.Canonical[accountID]
			if exists && registerDate.Before(current.RegisterDate) {
				continue
			}
			candidate := CanonicalRecord{Row: row, RegisterDate: registerDate}
			if strings.TrimSpace(candidate.Row.Link) == "" {
				candidate.Row.Link = overlap.ProfileLink(accountID)
			}
			result.Canonical[accountID] = candidate
		}
	}

	return result
}
