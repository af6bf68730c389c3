package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/follow-scope/fscope/internal/livematch"
	"github.com/follow-scope/fscope/internal/reconcile"
	"github.com/follow-scope/fscope/internal/tracking"
)

var errSnapshotUnreadable = errors.New("snapshot unreadable")

func snapshotRow(accountID, registerDate string) tracking.Row {
	return tracking.Row{
		ID:           accountID,
		Name:         "Account " + accountID,
		RegisterDate: registerDate,
		FollowedBy:   []string{"alpha"},
		Link:         "https://x.com/i/user/" + accountID,
	}
}

func mergeConfiguration() MergeConfiguration {
	return MergeConfiguration{
		SeedsPath: "followed_accounts.txt",
		RunDate:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMergeNoSnapshotsIsFirstRun(t *testing.T) {
	stdout := &bytes.Buffer{}
	rematchCalls := 0
	application := NewMergeApplication(MergeDependencies{
		DiscoverSnapshots: func() ([]string, error) { return nil, nil },
		Rematch: func(context.Context, map[string]reconcile.CanonicalRecord, []string) (livematch.Result, error) {
			rematchCalls++
			return livematch.Result{}, nil
		},
		Stdout: stdout,
	})

	if runErr := application.Run(context.Background(), mergeConfiguration()); runErr != nil {
		t.Fatalf("Run returned error: %v", runErr)
	}

	if rematchCalls != 0 {
		t.Fatalf("rematch called %d times, want 0 without snapshots", rematchCalls)
	}
	if !strings.Contains(stdout.String(), noSnapshotsMessage) {
		t.Fatalf("stdout = %q, want the first-run message", stdout.String())
	}
}

func TestMergeSkipsUnreadableSnapshots(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	var writtenRows []tracking.Row
	application := NewMergeApplication(MergeDependencies{
		DiscoverSnapshots: func() ([]string, error) {
			return []string{"new_tracking_2025-02-01.csv", "new_tracking_2025-03-01.csv"}, nil
		},
		ReadSnapshot: func(snapshotPath string) ([]tracking.Row, error) {
			if snapshotPath == "new_tracking_2025-02-01.csv" {
				return nil, errSnapshotUnreadable
			}
			return []tracking.Row{snapshotRow("1", "2024-01-01")}, nil
		},
		LoadSeeds: func(string) ([]string, error) {
			return []string{"https://x.com/alpha"}, nil
		},
		Rematch: func(_ context.Context, canonical map[string]reconcile.CanonicalRecord, _ []string) (livematch.Result, error) {
			if len(canonical) != 1 {
				t.Errorf("canonical size = %d, want 1 from the readable snapshot", len(canonical))
			}
			return livematch.Result{Rows: []tracking.Row{snapshotRow("1", "2024-01-01")}}, nil
		},
		WriteMergedOutput: func(rows []tracking.Row, _ time.Time) (string, error) {
			writtenRows = rows
			return "merged_tracking_following_2025-03-01.csv", nil
		},
		Stdout: stdout,
		Stderr: stderr,
	})

	if runErr := application.Run(context.Background(), mergeConfiguration()); runErr != nil {
		t.Fatalf("Run returned error: %v", runErr)
	}

	if !strings.Contains(stderr.String(), "new_tracking_2025-02-01.csv") {
		t.Fatalf("stderr = %q, want the unreadable snapshot reported", stderr.String())
	}
	if len(writtenRows) != 1 {
		t.Fatalf("written rows = %v, want the rematch output persisted", writtenRows)
	}
}

func TestMergeReportsParseFailures(t *testing.T) {
	stderr := &bytes.Buffer{}
	application := NewMergeApplication(MergeDependencies{
		DiscoverSnapshots: func() ([]string, error) {
			return []string{"new_tracking_2025-03-01.csv"}, nil
		},
		ReadSnapshot: func(string) ([]tracking.Row, error) {
			return []tracking.Row{snapshotRow("1", "2024-01-01"), snapshotRow("77", "not a date")}, nil
		},
		LoadSeeds: func(string) ([]string, error) {
			return []string{"https://x.com/alpha"}, nil
		},
		Rematch: func(context.Context, map[string]reconcile.CanonicalRecord, []string) (livematch.Result, error) {
			return livematch.Result{Rows: []tracking.Row{snapshotRow("1", "2024-01-01")}}, nil
		},
		WriteMergedOutput: func(rows []tracking.Row, _ time.Time) (string, error) {
			return "merged_tracking_following_2025-03-01.csv", nil
		},
		Stdout: &bytes.Buffer{},
		Stderr: stderr,
	})

	if runErr := application.Run(context.Background(), mergeConfiguration()); runErr != nil {
		t.Fatalf("Run returned error: %v", runErr)
	}

	if !strings.Contains(stderr.String(), "77") {
		t.Fatalf("stderr = %q, want the unparseable row reported", stderr.String())
	}
}

func TestMergeZeroMatchesWritesNothing(t *testing.T) {
	stdout := &bytes.Buffer{}
	writeCalls := 0
	application := NewMergeApplication(MergeDependencies{
		DiscoverSnapshots: func() ([]string, error) {
			return []string{"new_tracking_2025-03-01.csv"}, nil
		},
		ReadSnapshot: func(string) ([]tracking.Row, error) {
			return []tracking.Row{snapshotRow("1", "2024-01-01")}, nil
		},
		LoadSeeds: func(string) ([]string, error) {
			return []string{"https://x.com/alpha"}, nil
		},
		Rematch: func(context.Context, map[string]reconcile.CanonicalRecord, []string) (livematch.Result, error) {
			return livematch.Result{}, nil
		},
		WriteMergedOutput: func([]tracking.Row, time.Time) (string, error) {
			writeCalls++
			return "", nil
		},
		Stdout: stdout,
	})

	if runErr := application.Run(context.Background(), mergeConfiguration()); runErr != nil {
		t.Fatalf("Run returned error: %v", runErr)
	}

	if writeCalls != 0 {
		t.Fatalf("merged output written %d times, want 0 with no matches", writeCalls)
	}
	if !strings.Contains(stdout.String(), noMatchesMessage) {
		t.Fatalf("stdout = %q, want the no-matches message", stdout.String())
	}
}
