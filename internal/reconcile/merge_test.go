package reconcile_test

import (
	"testing"
	"time"

	"github.com/follow-scope/fscope/internal/reconcile"
	"github.com/follow-scope/fscope/internal/tracking"
)

func snapshotRow(accountID, registerDate string, followersCount int) tracking.Row {
	return tracking.Row{
		ID:             accountID,
		Name:           "Account " + accountID,
		RegisterDate:   registerDate,
		FollowedBy:     []string{"alpha"},
		FollowersCount: followersCount,
		Link:           "https://x.com/i/user/" + accountID,
	}
}

func TestMergeLatestRegisterDateWins(t *testing.T) {
	snapshots := [][]tracking.Row{
		{snapshotRow("42", "2024-01-01", 3)},
		{snapshotRow("42", "2024-02-01", 1)},
	}

	result := reconcile.Merge(snapshots)

	if len(result.Failures) != 0 {
		t.Fatalf("failures = %v, want none", result.Failures)
	}
	canonical, exists := result.Canonical["42"]
	if !exists {
		t.Fatalf("account 42 missing from canonical table")
	}
	if canonical.Row.FollowersCount != 1 {
		t.Fatalf("FollowersCount = %d, want 1 from the later snapshot", canonical.Row.FollowersCount)
	}
	wantDate := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !canonical.RegisterDate.Equal(wantDate) {
		t.Fatalf("RegisterDate = %v, want %v", canonical.RegisterDate, wantDate)
	}
}

func TestMergeEarlierSnapshotNeverOverridesLater(t *testing.T) {
	snapshots := [][]tracking.Row{
		{snapshotRow("42", "2024-02-01", 1)},
		{snapshotRow("42", "2024-01-01", 3)},
	}

	result := reconcile.Merge(snapshots)

	if canonical := result.Canonical["42"]; canonical.Row.FollowersCount != 1 {
		t.Fatalf("FollowersCount = %d, want 1 regardless of snapshot order", canonical.Row.FollowersCount)
	}
}

func TestMergeTieBrokenByLastSeen(t *testing.T) {
	firstRow := snapshotRow("42", "2024-01-01", 3)
	secondRow := snapshotRow("42", "2024-01-01", 5)
	snapshots := [][]tracking.Row{{firstRow}, {secondRow}}

	result := reconcile.Merge(snapshots)

	if canonical := result.Canonical["42"]; canonical.Row.FollowersCount != 5 {
		t.Fatalf("FollowersCount = %d, want 5 from the last-seen tied row", canonical.Row.FollowersCount)
	}
}

func TestMergeFillsBlankLink(t *testing.T) {
	row := snapshotRow("42", "2024-01-01", 3)
	row.Link = ""

	result := reconcile.Merge([][]tracking.Row{{row}})

	wantLink := "https://x.com/i/user/42"
	if canonical := result.Canonical["42"]; canonical.Row.Link != wantLink {
		t.Fatalf("Link = %q, want %q", canonical.Row.Link, wantLink)
	}
}

func TestMergeReportsUnparseableRegisterDates(t *testing.T) {
	goodRow := snapshotRow("42", "2024-01-01", 3)
	badRow := snapshotRow("77", "not a date", 2)
	snapshots := [][]tracking.Row{{goodRow}, {badRow}}

	result := reconcile.Merge(snapshots)

	if _, exists := result.Canonical["77"]; exists {
		t.Fatalf("row with unparseable register_date entered the canonical table")
	}
	if _, exists := result.Canonical["42"]; !exists {
		t.Fatalf("valid row missing from canonical table")
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failure count = %d, want 1", len(result.Failures))
	}
	failure := result.Failures[0]
	if failure.AccountID != "77" || failure.SnapshotIndex != 1 {
		t.Fatalf("failure = %+v, want account 77 in snapshot 1", failure)
	}
	if failure.Err == nil {
		t.Fatalf("failure carries no parse error")
	}
}

func TestMergeAcceptsAPITimestamps(t *testing.T) {
	row := snapshotRow("42", "Sat Mar 01 12:00:00 +0000 2025", 4)

	result := reconcile.Merge([][]tracking.Row{{row}})

	canonical, exists := result.Canonical["42"]
	if !exists {
		t.Fatalf("account 42 missing from canonical table")
	}
	wantDate := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	if !canonical.RegisterDate.Equal(wantDate) {
		t.Fatalf("RegisterDate = %v, want %v", canonical.RegisterDate, wantDate)
	}
}
