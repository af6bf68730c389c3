package overlap

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	errMessageMissingSource = "aggregator requires a follow list source"
	logMessageSeedFetched   = "seed follow list fetched"
	logMessageSeedFailed    = "seed follow list fetch failed"
	logFieldSeed            = "seed"
	logFieldEdgeCount       = "edgeCount"
)

// ErrMissingSource indicates that an Aggregator was constructed without a source.
var ErrMissingSource = errors.New(errMessageMissingSource)

// FollowListSource returns the accounts followed by the supplied seed link.
// An account with no follows yields an empty slice, not an error.
type FollowListSource interface {
	FetchFollowing(ctx context.Context, seedLink string) ([]Account, error)
}

// AggregatorConfig configures an Aggregator instance.
type AggregatorConfig struct {
	Source FollowListSource
	Pacing SeedPacingConfig
	Logger *zap.Logger
}

// Aggregator builds per-target overlap records from seed follow lists.
type Aggregator struct {
	source FollowListSource
	pacer  *SeedPacer
	logger *zap.Logger
}

// AggregationResult holds the outcome of one aggregation pass.
type AggregationResult struct {
	Records   []OverlapRecord
	Failures  []SeedFailure
	SeedCount int
}

// NewAggregator constructs an Aggregator from configuration values.
func NewAggregator(configuration AggregatorConfig) (*Aggregator, error) {
	if configuration.Source == nil {
		return nil, ErrMissingSource
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	aggregator := &Aggregator{
		source: configuration.Source,
		pacer:  NewSeedPacer(configuration.Pacing),
		logger: logger,
	}
	return aggregator, nil
}

// Aggregate fetches every seed's follow list sequentially and merges the results
// into overlap records keyed by target account. A single seed's fetch failure is
// recorded and skipped; edges already accumulated from other seeds are kept.
// Records preserve the order in which target accounts were first observed.
func (aggregator *Aggregator) Aggregate(ctx context.Context, seedLinks []string) (AggregationResult, error) {
	uniqueSeedLinks := dedupeSeedLinks(seedLinks)
	result := AggregationResult{SeedCount: len(uniqueSeedLinks)}

	recordsByID := make(map[string]*OverlapRecord)
	seenSeedsByID := make(map[string]map[string]struct{})
	var observationOrder []string

	for index, seedLink := range uniqueSeedLinks {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		seedHandle := SeedHandle(seedLink)
		followedAccounts, fetchErr := aggregator.source.FetchFollowing(ctx, seedLink)
		if fetchErr != nil {
			aggregator.logger.Warn(logMessageSeedFailed, zap.String(logFieldSeed, seedHandle), zap.Error(fetchErr))
			result.Failures = append(result.Failures, SeedFailure{Seed: seedHandle, Err: fetchErr})
		} else {
			aggregator.logger.Info(logMessageSeedFetched, zap.String(logFieldSeed, seedHandle), zap.Int(logFieldEdgeCount, len(followedAccounts)))
			for _, followedAccount := range followedAccounts {
				if strings.TrimSpace(followedAccount.ID) == "" || strings.TrimSpace(followedAccount.Name) == "" {
					continue
				}
				record, exists := recordsByID[followedAccount.ID]
				if !exists {
					record = &OverlapRecord{Account: followedAccount}
					record.Account.Link = ProfileLink(followedAccount.ID)
					recordsByID[followedAccount.ID] = record
					seenSeedsByID[followedAccount.ID] = make(map[string]struct{})
					observationOrder = append(observationOrder, followedAccount.ID)
				}
				if _, alreadyFollowing := seenSeedsByID[followedAccount.ID][seedHandle]; alreadyFollowing {
					continue
				}
				seenSeedsByID[followedAccount.ID][seedHandle] = struct{}{}
				record.FollowedBy = append(record.FollowedBy, seedHandle)
			}
		}

		if index == len(uniqueSeedLinks)-1 {
			continue
		}
		if waitErr := aggregator.pacer.WaitBeforeNext(ctx); waitErr != nil {
			return result, waitErr
		}
	}

	result.Records = make([]OverlapRecord, 0, len(observationOrder))
	for _, accountID := range observationOrder {
		result.Records = append(result.Records, *recordsByID[accountID])
	}
	return result, nil
}

func dedupeSeedLinks(seedLinks []string) []string {
	unique := make([]string, 0, len(seedLinks))
	seen := make(map[string]struct{}, len(seedLinks))
	for _, seedLink := range seedLinks {
		trimmed := strings.TrimSpace(seedLink)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}
	return unique
}
