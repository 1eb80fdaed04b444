package matchhub

import (
	"time"

	"unichat/backend/internal/config"
	"unichat/backend/internal/models"
)

// SharedInterests returns the tags declared by both entries, exact-match.
func SharedInterests(a, b models.QueueEntry) []string {
	if len(a.Interests) == 0 || len(b.Interests) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a.Interests))
	for _, tag := range a.Interests {
		set[tag] = struct{}{}
	}
	var shared []string
	for _, tag := range b.Interests {
		if _, ok := set[tag]; ok {
			shared = append(shared, tag)
		}
	}
	return shared
}

// MutualGenderMatch reports whether both sides' seeking preference is
// satisfied by the other's gender.
func MutualGenderMatch(a, b models.QueueEntry) bool {
	return seekSatisfied(a.Seeking, b.Gender) && seekSatisfied(b.Seeking, a.Gender)
}

func seekSatisfied(seeking, gender string) bool {
	return seeking == models.SeekAny || seeking == gender
}

// Compatible is the hard pre-scoring filter. A free seeking preference is
// soft (it only feeds the score), but a paid gender filter is a constraint:
// a pair where either side's paid filter is unsatisfied never reaches the
// scorer.
func Compatible(a, b models.QueueEntry) bool {
	if a.UserID == b.UserID {
		return false
	}
	if a.UsesGenderFilter && !seekSatisfied(a.Seeking, b.Gender) {
		return false
	}
	if b.UsesGenderFilter && !seekSatisfied(b.Seeking, a.Gender) {
		return false
	}
	return true
}

// Score rates a compatible candidate pair. The formula is symmetric in its
// compatibility and aging terms, so both sides independently compute the
// same value for a given pair; the tie-break protocol depends on that.
//
// Tiers: shared tags with a mutual gender match score highest, then "both
// declared interests" with a mutual gender match, then a mutual gender match
// alone, then mere compatibility. Either side's paid filter adds a flat
// bonus, and every second the pair has waited (averaged) adds one point so
// long-waiting pairs eventually overtake fresher, better-fitting ones.
func Score(a, b models.QueueEntry, now time.Time) float64 {
	shared := SharedInterests(a, b)
	mutual := MutualGenderMatch(a, b)

	var score float64
	switch {
	case len(shared) > 0 && mutual:
		score = config.SharedInterestBase + config.SharedInterestStep*float64(len(shared))
	case a.HasInterests() && b.HasInterests() && mutual:
		score = config.BothInterestedScore
	case mutual:
		score = config.GenderMatchScore
	default:
		score = config.CompatibleScore
	}

	if a.UsesGenderFilter || b.UsesGenderFilter {
		score += config.GenderFilterBonus
	}

	avgQueuedAt := (a.QueuedAt + b.QueuedAt) / 2
	waited := float64(now.UnixMilli()-avgQueuedAt) / 1000.0
	if waited > 0 {
		score += waited
	}
	return score
}
