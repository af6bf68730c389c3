package tests

import (
	"context"
	"testing"
	"time"

	"github.com/follow-scope/fscope/internal/livematch"
	"github.com/follow-scope/fscope/internal/overlap"
	"github.com/follow-scope/fscope/internal/reconcile"
	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	pipelineSeedLinkAlpha   = "https://x.com/alpha"
	pipelineSeedLinkBravo   = "https://x.com/bravo"
	pipelineSeedLinkCharlie = "https://x.com/charlie"
	pipelineThreshold       = 0.5
)

type pipelineFollowSource struct {
	followingBySeed map[string][]overlap.Account
}

func (source *pipelineFollowSource) FetchFollowing(_ context.Context, seedLink string) ([]overlap.Account, error) {
	return source.followingBySeed[seedLink], nil
}

func pipelineAccount(accountID, name string) overlap.Account {
	return overlap.Account{ID: accountID, Name: name, RegisterDate: "Sat Mar 01 12:00:00 +0000 2025"}
}

func runScanPass(t *testing.T, store *tracking.Store, source overlap.FollowListSource, seedLinks []string, runDate time.Time) {
	t.Helper()

	aggregator, aggregatorErr := overlap.NewAggregator(overlap.AggregatorConfig{Source: source})
	if aggregatorErr != nil {
		t.Fatalf("NewAggregator returned error: %v", aggregatorErr)
	}
	aggregation, aggregateErr := aggregator.Aggregate(context.Background(), seedLinks)
	if aggregateErr != nil {
		t.Fatalf("Aggregate returned error: %v", aggregateErr)
	}
	if len(aggregation.Failures) != 0 {
		t.Fatalf("aggregation failures = %v, want none", aggregation.Failures)
	}

	previousIDs, idsErr := store.LoadConfirmedIDs()
	if idsErr != nil {
		t.Fatalf("LoadConfirmedIDs returned error: %v", idsErr)
	}

	qualifying := overlap.SelectQualifying(aggregation.Records, aggregation.SeedCount, pipelineThreshold)
	classification := overlap.Classify(qualifying, previousIDs)

	combinedRows := tracking.RowsFromRecords(classification.CommonFollows)
	combinedRows = append(combinedRows, tracking.RowsFromRecords(classification.NewTracking)...)

	if replaceErr := store.Replace(combinedRows); replaceErr != nil {
		t.Fatalf("Replace returned error: %v", replaceErr)
	}
	if _, writeErr := store.WriteDatedTracking(tracking.RowsFromRecords(classification.NewTracking), runDate); writeErr != nil {
		t.Fatalf("WriteDatedTracking returned error: %v", writeErr)
	}
}

func TestScanThenMergePipeline(t *testing.T) {
	store := tracking.NewStore(tracking.StoreConfig{DataDir: t.TempDir()})
	seedLinks := []string{pipelineSeedLinkAlpha, pipelineSeedLinkBravo, pipelineSeedLinkCharlie}

	firstRunSource := &pipelineFollowSource{followingBySeed: map[string][]overlap.Account{
		pipelineSeedLinkAlpha: {pipelineAccount("100", "Widely Followed")},
		pipelineSeedLinkBravo: {pipelineAccount("100", "Widely Followed"), pipelineAccount("200", "Rarely Followed")},
	}}
	runScanPass(t, store, firstRunSource, seedLinks, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))

	firstStoreRows, storeExists, loadErr := store.LoadStore()
	if loadErr != nil {
		t.Fatalf("LoadStore returned error: %v", loadErr)
	}
	if !storeExists {
		t.Fatalf("store missing after the first scan pass")
	}
	if len(firstStoreRows) != 1 || firstStoreRows[0].ID != "100" {
		t.Fatalf("first store = %v, want only account 100 above the threshold", firstStoreRows)
	}

	secondRunSource := &pipelineFollowSource{followingBySeed: map[string][]overlap.Account{
		pipelineSeedLinkAlpha:   {pipelineAccount("100", "Widely Followed"), pipelineAccount("300", "Newcomer")},
		pipelineSeedLinkBravo:   {pipelineAccount("100", "Widely Followed"), pipelineAccount("300", "Newcomer")},
		pipelineSeedLinkCharlie: {pipelineAccount("300", "Newcomer")},
	}}
	runScanPass(t, store, secondRunSource, seedLinks, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC))

	secondStoreRows, _, secondLoadErr := store.LoadStore()
	if secondLoadErr != nil {
		t.Fatalf("LoadStore returned error: %v", secondLoadErr)
	}
	if len(secondStoreRows) != 2 {
		t.Fatalf("second store = %v, want accounts 100 and 300", secondStoreRows)
	}

	snapshotPaths, discoverErr := store.DiscoverTrackingSnapshots()
	if discoverErr != nil {
		t.Fatalf("DiscoverTrackingSnapshots returned error: %v", discoverErr)
	}
	if len(snapshotPaths) != 2 {
		t.Fatalf("snapshot count = %d, want one per scan pass", len(snapshotPaths))
	}

	var snapshots [][]tracking.Row
	for _, snapshotPath := range snapshotPaths {
		rows, readErr := tracking.ReadSnapshot(snapshotPath)
		if readErr != nil {
			t.Fatalf("ReadSnapshot(%s) returned error: %v", snapshotPath, readErr)
		}
		snapshots = append(snapshots, rows)
	}

	mergeResult := reconcile.Merge(snapshots)
	if len(mergeResult.Failures) != 0 {
		t.Fatalf("merge failures = %v, want none", mergeResult.Failures)
	}
	if len(mergeResult.Canonical) != 2 {
		t.Fatalf("canonical size = %d, want accounts 100 and 300", len(mergeResult.Canonical))
	}

	matcher, matcherErr := livematch.NewMatcher(livematch.Config{Source: secondRunSource})
	if matcherErr != nil {
		t.Fatalf("NewMatcher returned error: %v", matcherErr)
	}
	rematchResult, rematchErr := matcher.Rematch(context.Background(), mergeResult.Canonical, seedLinks)
	if rematchErr != nil {
		t.Fatalf("Rematch returned error: %v", rematchErr)
	}
	if len(rematchResult.Rows) != 2 {
		t.Fatalf("rematch rows = %v, want accounts 100 and 300", rematchResult.Rows)
	}
	if rematchResult.Rows[0].ID != "300" || rematchResult.Rows[0].FollowersCount != 3 {
		t.Fatalf("top rematch row = %+v, want account 300 followed by all seeds", rematchResult.Rows[0])
	}

	outputPath, outputErr := store.WriteMergedOutput(rematchResult.Rows, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC))
	if outputErr != nil {
		t.Fatalf("WriteMergedOutput returned error: %v", outputErr)
	}
	persistedRows, persistedErr := tracking.ReadSnapshot(outputPath)
	if persistedErr != nil {
		t.Fatalf("ReadSnapshot(%s) returned error: %v", outputPath, persistedErr)
	}
	if len(persistedRows) != len(rematchResult.Rows) {
		t.Fatalf("persisted rows = %v, want the full rematch output", persistedRows)
	}
}
