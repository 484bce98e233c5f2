package triage

import (
	"time"

	"triage_server/core/domain"
)

// =============================================================================
// Thread Priority Scoring
// =============================================================================
//
// Two independent scores feed the morning brief and inbox ordering:
//   1. Importance score: direct map from the classifier's importance.
//   2. Deal score: deal side + deal state + idle-time nudge.
// The thread keeps the higher of its current score and the new one.

const (
	dealBaseBuyer  = 2
	dealBaseSeller = 3

	dealBonusClosing     = 3
	dealBonusNegotiating = 2
	dealBonusOther       = 1

	idleNudgeAfterDays = 2
)

// DealScore ranks a deal thread. Seller-side deals outrank buyer-side
// at equal state; threads idle for more than two days get a nudge so
// they resurface before going cold.
func DealScore(dealType domain.DealType, dealState domain.DealState, lastUpdated time.Time, now time.Time) int {
	score := dealBaseBuyer
	if dealType == domain.DealTypeSeller {
		score = dealBaseSeller
	}

	switch dealState {
	case domain.DealStateClosing:
		score += dealBonusClosing
	case domain.DealStateNegotiating:
		score += dealBonusNegotiating
	default:
		score += dealBonusOther
	}

	if daysIdle(lastUpdated, now) > idleNudgeAfterDays {
		score++
	}
	return score
}

// ImportanceScore maps the classifier's importance class onto the
// thread priority scale.
func ImportanceScore(imp domain.Importance) int {
	return domain.PriorityFromImportance(imp)
}

// CombinedScore is the priority written to the thread: the larger of
// the importance and deal signals, never lowering an existing score.
func CombinedScore(current int, verdict domain.TriageVerdict, lastUpdated, now time.Time) int {
	score := ImportanceScore(verdict.Importance)
	if verdict.Relevance == domain.RelevanceSales || verdict.Relevance == domain.RelevanceOpportunity {
		if ds := DealScore(verdict.DealType, verdict.DealState, lastUpdated, now); ds > score {
			score = ds
		}
	}
	if current > score {
		return current
	}
	return score
}

func daysIdle(lastUpdated, now time.Time) int {
	if lastUpdated.IsZero() || !lastUpdated.Before(now) {
		return 0
	}
	return int(now.Sub(lastUpdated).Hours() / 24)
}
