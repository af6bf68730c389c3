package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/follow-scope/fscope/internal/livematch"
	"github.com/follow-scope/fscope/internal/reconcile"
	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	discoverErrorFormat         = "discover tracking snapshots: %w"
	loadSeedsErrorFormat        = "load seeds from %s: %w"
	writeOutputErrorFormat      = "write merged output: %w"
	snapshotReadFailureFormat   = "skipping unreadable snapshot %s: %v\n"
	snapshotParseFailureFormat  = "excluded row %s (snapshot %d): unparseable register_date %q: %v\n"
	seedFailureMessageFormat    = "seed %s failed: %v\n"
	noSnapshotsMessage          = "No tracking snapshots found. This is the first run for tracking accounts."
	noMatchesMessage            = "No matches found between seed accounts and tracking snapshots."
	snapshotsReadMessageFormat  = "Read %d snapshots covering %d unique accounts.\n"
	outputWrittenMessageFormat  = "Live rematch wrote %d accounts to %s.\n"
	snapshotRecordCountLogLabel = "Read %d records from %s\n"
)

// MergeConfiguration carries the per-run inputs of a merge.
type MergeConfiguration struct {
	SeedsPath string
	RunDate   time.Time
}

// MergeDependencies captures the collaborators a merge run needs.
type MergeDependencies struct {
	DiscoverSnapshots func() ([]string, error)
	ReadSnapshot      func(string) ([]tracking.Row, error)
	LoadSeeds         func(string) ([]string, error)
	Rematch           func(context.Context, map[string]reconcile.CanonicalRecord, []string) (livematch.Result, error)
	WriteMergedOutput func([]tracking.Row, time.Time) (string, error)
	Stdout            io.Writer
	Stderr            io.Writer
}

// MergeApplication reconciles dated snapshots and re-verifies them live.
type MergeApplication struct {
	dependencies MergeDependencies
}

// NewMergeApplication constructs a MergeApplication from explicit dependencies.
func NewMergeApplication(dependencies MergeDependencies) MergeApplication {
	if dependencies.ReadSnapshot == nil {
		dependencies.ReadSnapshot = tracking.ReadSnapshot
	}
	if dependencies.LoadSeeds == nil {
		dependencies.LoadSeeds = tracking.LoadSeedLinks
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = os.Stdout
	}
	if dependencies.Stderr == nil {
		dependencies.Stderr = os.Stderr
	}
	return MergeApplication{dependencies: dependencies}
}

// Run merges every dated tracking snapshot into one canonical record per
// account, re-fetches each seed's live follow list, and writes the dated
// rematch output. Unreadable snapshots and unparseable rows are reported and
// skipped; they never abort the rest of the merge.
func (application MergeApplication) Run(executionContext context.Context, configuration MergeConfiguration) error {
	snapshotPaths, discoverErr := application.dependencies.DiscoverSnapshots()
	if discoverErr != nil {
		return fmt.Errorf(discoverErrorFormat, discoverErr)
	}
	if len(snapshotPaths) == 0 {
		fmt.Fprintln(application.dependencies.Stdout, noSnapshotsMessage)
		return nil
	}

	var snapshots [][]tracking.Row
	for _, snapshotPath := range snapshotPaths {
		rows, readErr := application.dependencies.ReadSnapshot(snapshotPath)
		if readErr != nil {
			fmt.Fprintf(application.dependencies.Stderr, snapshotReadFailureFormat, snapshotPath, readErr)
			continue
		}
		fmt.Fprintf(application.dependencies.Stdout, snapshotRecordCountLogLabel, len(rows), snapshotPath)
		snapshots = append(snapshots, rows)
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(application.dependencies.Stdout, noSnapshotsMessage)
		return nil
	}

	mergeResult := reconcile.Merge(snapshots)
	for _, parseFailure := range mergeResult.Failures {
		fmt.Fprintf(application.dependencies.Stderr, snapshotParseFailureFormat,
			parseFailure.AccountID, parseFailure.SnapshotIndex, parseFailure.RegisterDate, parseFailure.Err)
	}
	fmt.Fprintf(application.dependencies.Stdout, snapshotsReadMessageFormat, len(snapshots), len(mergeResult.Canonical))

	seedLinks, loadSeedsErr := application.dependencies.LoadSeeds(configuration.SeedsPath)
	if loadSeedsErr != nil {
		return fmt.Errorf(loadSeedsErrorFormat, configuration.SeedsPath, loadSeedsErr)
	}

	rematchResult, rematchErr := application.dependencies.Rematch(executionContext, mergeResult.Canonical, seedLinks)
	if rematchErr != nil {
		return rematchErr
	}
	for _, seedFailure := range rematchResult.Failures {
		fmt.Fprintf(application.dependencies.Stderr, seedFailureMessageFormat, seedFailure.Seed, seedFailure.Err)
	}

	if len(rematchResult.Rows) == 0 {
		fmt.Fprintln(application.dependencies.Stdout, noMatchesMessage)
		return nil
	}

	outputPath, writeErr := application.dependencies.WriteMergedOutput(rematchResult.Rows, configuration.RunDate)
	if writeErr != nil {
		return fmt.Errorf(writeOutputErrorFormat, writeErr)
	}
	fmt.Fprintf(application.dependencies.Stdout, outputWrittenMessageFormat, len(rematchResult.Rows), outputPath)
	return nil
}
