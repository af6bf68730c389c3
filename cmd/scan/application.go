package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/follow-scope/fscope/internal/notify"
	"github.com/follow-scope/fscope/internal/overlap"
	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	loadSeedsErrorFormat        = "load seeds from %s: %w"
	loadStoreErrorFormat        = "load persisted store: %w"
	replaceStoreErrorFormat     = "replace persisted store: %w"
	writeTrackingErrorFormat    = "write dated tracking file: %w"
	seedFailureMessageFormat    = "seed %s failed: %v\n"
	notifyFailureMessageFormat  = "notification for account %s failed: %v\n"
	firstRunNoticeFailureFormat = "first-run notification failed: %v\n"
	noQualifyingMessage         = "No accounts met the support threshold this run."
	scanSummaryFormat           = "Processed %d seeds (%d failed): %d qualifying accounts, %d common follows, %d new tracking.\n"
	storeSavedMessageFormat     = "All qualifying accounts saved to %s for next run.\n"
	trackingSavedMessageFormat  = "New tracking accounts saved to %s.\n"
)

// ScanConfiguration carries the per-run inputs of a scan.
type ScanConfiguration struct {
	SeedsPath         string
	ThresholdFraction float64
	RunDate           time.Time
}

// ScanDependencies captures the collaborators a scan run needs. Zero-valued
// fields are filled with the production defaults.
type ScanDependencies struct {
	LoadSeeds          func(string) ([]string, error)
	Aggregate          func(context.Context, []string) (overlap.AggregationResult, error)
	LoadStore          func() ([]tracking.Row, bool, error)
	ReplaceStore       func([]tracking.Row) error
	WriteDatedTracking func([]tracking.Row, time.Time) (string, error)
	StorePath          func() string
	Sink               notify.Sink
	Stdout             io.Writer
	Stderr             io.Writer
}

// ScanApplication runs one aggregation, classification, and persistence pass.
type ScanApplication struct {
	dependencies ScanDependencies
}

// NewScanApplication constructs a ScanApplication from explicit dependencies.
// Missing collaborators that have safe defaults are filled in; the data-touching
// ones must be provided by the caller.
func NewScanApplication(dependencies ScanDependencies) ScanApplication {
	if dependencies.LoadSeeds == nil {
		dependencies.LoadSeeds = tracking.LoadSeedLinks
	}
	if dependencies.Sink == nil {
		dependencies.Sink = notify.NopSink{}
	}
	if dependencies.StorePath == nil {
		dependencies.StorePath = func() string { return "" }
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = os.Stdout
	}
	if dependencies.Stderr == nil {
		dependencies.Stderr = os.Stderr
	}
	return ScanApplication{dependencies: dependencies}
}

// Run executes the scan: fetch every seed's follow list, classify qualifying
// targets against the previous store, notify about genuinely new accounts, then
// rewrite the store in full and write the dated new-tracking file.
func (application ScanApplication) Run(executionContext context.Context, configuration ScanConfiguration) error {
	seedLinks, loadSeedsErr := application.dependencies.LoadSeeds(configuration.SeedsPath)
	if loadSeedsErr != nil {
		return fmt.Errorf(loadSeedsErrorFormat, configuration.SeedsPath, loadSeedsErr)
	}

	aggregation, aggregateErr := application.dependencies.Aggregate(executionContext, seedLinks)
	if aggregateErr != nil {
		return aggregateErr
	}
	for _, seedFailure := range aggregation.Failures {
		fmt.Fprintf(application.dependencies.Stderr, seedFailureMessageFormat, seedFailure.Seed, seedFailure.Err)
	}

	previousRows, storeExists, loadStoreErr := application.dependencies.LoadStore()
	if loadStoreErr != nil {
		return fmt.Errorf(loadStoreErrorFormat, loadStoreErr)
	}
	previousIDs := make(map[string]struct{}, len(previousRows))
	for _, previousRow := range previousRows {
		previousIDs[previousRow.ID] = struct{}{}
	}

	qualifying := overlap.SelectQualifying(aggregation.Records, aggregation.SeedCount, configuration.ThresholdFraction)
	classification := overlap.Classify(qualifying, previousIDs)

	combinedRows := tracking.RowsFromRecords(classification.CommonFollows)
	combinedRows = append(combinedRows, tracking.RowsFromRecords(classification.NewTracking)...)
	newTrackingRows := tracking.RowsFromRecords(classification.NewTracking)

	application.deliverNotifications(executionContext, combinedRows, previousIDs, storeExists)

	if len(combinedRows) == 0 {
		fmt.Fprintln(application.dependencies.Stdout, noQualifyingMessage)
	}

	if replaceErr := application.dependencies.ReplaceStore(combinedRows); replaceErr != nil {
		return fmt.Errorf(replaceStoreErrorFormat, replaceErr)
	}
	trackingPath, writeTrackingErr := application.dependencies.WriteDatedTracking(newTrackingRows, configuration.RunDate)
	if writeTrackingErr != nil {
		return fmt.Errorf(writeTrackingErrorFormat, writeTrackingErr)
	}

	fmt.Fprintf(application.dependencies.Stdout, scanSummaryFormat,
		aggregation.SeedCount, len(aggregation.Failures), len(qualifying),
		len(classification.CommonFollows), len(classification.NewTracking))
	fmt.Fprintf(application.dependencies.Stdout, storeSavedMessageFormat, application.dependencies.StorePath())
	fmt.Fprintf(application.dependencies.Stdout, trackingSavedMessageFormat, trackingPath)
	return nil
}

func (application ScanApplication) deliverNotifications(executionContext context.Context, combinedRows []tracking.Row, previousIDs map[string]struct{}, storeExists bool) {
	if !storeExists {
		if noticeErr := application.dependencies.Sink.NotifyFirstRun(executionContext); noticeErr != nil {
			fmt.Fprintf(application.dependencies.Stderr, firstRunNoticeFailureFormat, noticeErr)
		}
		return
	}
	for _, newRow := range tracking.NewSincePrevious(combinedRows, previousIDs) {
		if notifyErr := application.dependencies.Sink.NotifyNewCommonFollow(executionContext, newRow); notifyErr != nil {
			fmt.Fprintf(application.dependencies.Stderr, notifyFailureMessageFormat, newRow.ID, notifyErr)
		}
	}
}
