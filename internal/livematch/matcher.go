// Package livematch re-verifies canonical records against the live follow
// source and recomputes authoritative follower counts per account.
package livematch

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/follow-scope/fscope/internal/overlap"
	"github.com/follow-scope/fscope/internal/reconcile"
	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	errMessageMissingSource = "matcher requires a follow list source"
	logMessageSeedMatched   = "seed follow list matched against canonical table"
	logMessageSeedFailed    = "seed follow list fetch failed"
	logFieldSeed            = "seed"
	logFieldMatchCount      = "matchCount"
)

// ErrMissingSource indicates that a Matcher was constructed without a source.
var ErrMissingSource = errors.New(errMessageMissingSource)

// Config configures a Matcher instance.
type Config struct {
	Source overlap.FollowListSource
	Pacing overlap.SeedPacingConfig
	Logger *zap.Logger
}

// Matcher intersects live seed follow lists with a canonical account table.
type Matcher struct {
	source overlap.FollowListSource
	pacer  *overlap.SeedPacer
	logger *zap.Logger
}

// Result holds the rematch output rows and the per-seed fetch failures.
type Result struct {
	Rows     []tracking.Row
	Failures []overlap.SeedFailure
}

// NewMatcher constructs a Matcher from configuration values.
func NewMatcher(configuration Config) (*Matcher, error) {
	if configuration.Source == nil {
		return nil, ErrMissingSource
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	matcher := &Matcher{
		source: configuration.Source,
		pacer:  overlap.NewSeedPacer(configuration.Pacing),
		logger: logger,
	}
	return matcher, nil
}

// Rematch fetches every seed's current follow list and, for each followed
// target present in the canonical table, appends the seed to that target's
// followed-by list. Counts come entirely from the live fetches, never from the
// stale snapshot columns. Only targets matched by at least one seed appear in
// the output, ordered by follower count descending with ties broken by id
// ascending.
func (matcher *Matcher) Rematch(ctx context.Context, canonical map[string]reconcile.CanonicalRecord, seedLinks []string) (Result, error) {
	result := Result{}
	followersByID := make(map[string][]string)
	seenSeedsByID := make(map[string]map[string]struct{})

	uniqueSeedLinks := dedupeSeedLinks(seedLinks)
	for index, seedLink := range uniqueSeedLinks {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		seedHandle := overlap.SeedHandle(seedLink)
		followedAccounts, fetchErr := matcher.source.FetchFollowing(ctx, seedLink)
		if fetchErr != nil {
			matcher.logger.Warn(logMessageSeedFailed, zap.String(logFieldSeed, seedHandle), zap.Error(fetchErr))
			result.Failures = append(result.Failures, overlap.SeedFailure{Seed: seedHandle, Err: fetchErr})
		} else {
			matchCount := 0
			for _, followedAccount := range followedAccounts {
				accountID := strings.TrimSpace(followedAccount.ID)
				if accountID == "" {
					continue
				}
				if _, isCanonical := canonical[accountID]; !isCanonical {
					continue
				}
				if seenSeedsByID[accountID] == nil {
					seenSeedsByID[accountID] = make(map[string]struct{})
				}
				if _, alreadyMatched := seenSeedsByID[accountID][seedHandle]; alreadyMatched {
					continue
				}
				seenSeedsByID[accountID][seedHandle] = struct{}{}
				followersByID[accountID] = append(followersByID[accountID], seedHandle)
				matchCount++
			}
			matcher.logger.Info(logMessageSeedMatched, zap.String(logFieldSeed, seedHandle), zap.Int(logFieldMatchCount, matchCount))
		}

		if index == len(uniqueSeedLinks)-1 {
			continue
		}
		if waitErr := matcher.pacer.WaitBeforeNext(ctx); waitErr != nil {
			return result, waitErr
		}
	}

	result.Rows = buildMatchedRows(canonical, followersByID)
	return result, nil
}

func buildMatchedRows(canonical map[string]reconcile.CanonicalRecord, followersByID map[string][]string) []tracking.Row {
	rows := make([]tracking.Row, 0, len(followersByID))
	for accountID, followers := range followersByID {
		canonicalRecord := canonical[accountID]
		row := tracking.Row{
			ID:             accountID,
			Name:           canonicalRecord.Row.Name,
			RegisterDate:   canonicalRecord.Row.RegisterDate,
			FollowedBy:     followers,
			FollowersCount: len(followers),
			Link:           canonicalRecord.Row.Link,
		}
		if strings.TrimSpace(row.Link) == "" {
			row.Link = overlap.ProfileLink(accountID)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(firstIndex, secondIndex int) bool {
		if rows[firstIndex].FollowersCount != rows[secondIndex].FollowersCount {
			return rows[firstIndex].FollowersCount > rows[secondIndex].FollowersCount
		}
		return rows[firstIndex].ID < rows[secondIndex].ID
	})
	return rows
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
