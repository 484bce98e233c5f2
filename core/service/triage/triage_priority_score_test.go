package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"triage_server/core/domain"
)

func TestDealScore(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-1 * time.Hour)
	stale := now.AddDate(0, 0, -3)

	tests := []struct {
		name        string
		dealType    domain.DealType
		dealState   domain.DealState
		lastUpdated time.Time
		want        int
	}{
		{"buyer lead fresh", domain.DealTypeBuyer, domain.DealStateLead, fresh, 3},
		{"seller lead fresh", domain.DealTypeSeller, domain.DealStateLead, fresh, 4},
		{"buyer negotiating fresh", domain.DealTypeBuyer, domain.DealStateNegotiating, fresh, 4},
		{"seller closing fresh", domain.DealTypeSeller, domain.DealStateClosing, fresh, 6},
		{"seller closing stale gets idle nudge", domain.DealTypeSeller, domain.DealStateClosing, stale, 7},
		{"buyer idle stale", domain.DealTypeBuyer, domain.DealStateIdle, stale, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DealScore(tt.dealType, tt.dealState, tt.lastUpdated, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDealScoreMonotonicity(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Hour)

	sellerClosing := DealScore(domain.DealTypeSeller, domain.DealStateClosing, fresh, now)
	buyerLead := DealScore(domain.DealTypeBuyer, domain.DealStateLead, fresh, now)
	assert.Greater(t, sellerClosing, buyerLead)

	stale := now.AddDate(0, 0, -5)
	assert.Greater(t,
		DealScore(domain.DealTypeSeller, domain.DealStateClosing, stale, now),
		sellerClosing)
}

func TestImportanceScore(t *testing.T) {
	assert.Equal(t, 10, ImportanceScore(domain.ImportanceCritical))
	assert.Equal(t, 8, ImportanceScore(domain.ImportanceHigh))
	assert.Equal(t, 5, ImportanceScore(domain.ImportanceRegular))
	assert.Equal(t, 1, ImportanceScore(domain.ImportanceLow))
}

func TestCombinedScoreNeverLowers(t *testing.T) {
	now := time.Now()
	verdict := domain.TriageVerdict{
		Relevance:  domain.RelevanceBusiness,
		Importance: domain.ImportanceLow,
	}
	assert.Equal(t, 9, CombinedScore(9, verdict, now, now))
}

func TestCombinedScorePrefersDealSignal(t *testing.T) {
	now := time.Now()
	verdict := domain.TriageVerdict{
		Relevance:  domain.RelevanceSales,
		Importance: domain.ImportanceRegular,
		DealType:   domain.DealTypeSeller,
		DealState:  domain.DealStateClosing,
	}
	// deal score 6 beats importance score 5
	assert.Equal(t, 6, CombinedScore(0, verdict, now.Add(-time.Hour), now))
}
