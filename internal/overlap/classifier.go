package overlap

import "strings"

// Classification partitions qualifying overlap records by prior confirmation.
// CommonFollows holds records whose account was already present in the persisted
// store; NewTracking holds records qualifying for the first time. The two slices
// are disjoint and together cover every qualifying record.
type Classification struct {
	CommonFollows []OverlapRecord
	NewTracking   []OverlapRecord
}

// QualifyingThreshold computes the minimum follower count a target needs before it
// is tracked. A target qualifies when its count is greater than or equal to the
// returned value.
func QualifyingThreshold(seedCount int, supportFraction float64) float64 {
	return float64(seedCount) * supportFraction
}

// SelectQualifying filters the records whose follower count meets the support
// threshold for the supplied seed population.
func SelectQualifying(records []OverlapRecord, seedCount int, supportFraction float64) []OverlapRecord {
	threshold := QualifyingThreshold(seedCount, supportFraction)
	qualifying := make([]OverlapRecord, 0, len(records))
	for _, record := range records {
		if float64(record.FollowersCount()) >= threshold {
			qualifying = append(qualifying, record)
		}
	}
	return qualifying
}

// Classify splits qualifying records by membership in previouslyConfirmedIDs.
// Records with an empty account name are excluded even when numerically
// qualifying; upstream filtering should already guarantee a name, but the split
// re-checks. Classify performs no I/O and is deterministic for fixed inputs.
func Classify(qualifying []OverlapRecord, previouslyConfirmedIDs map[string]struct{}) Classification {
	classification := Classification{}
	for _, record := range qualifying {
		if strings.TrimSpace(record.Account.Name) == "" {
			continue
		}
		if _, confirmed := previouslyConfirmedIDs[record.Account.ID]; confirmed {
			classification.CommonFollows = append(classification.CommonFollows, record)
			continue
		}
		classification.NewTracking = append(classification.NewTracking, record)
	}
	return classification
}
