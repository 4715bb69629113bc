package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimator/pkg/estimate"
)

func ruleFixture() []estimate.Estimate {
	return []estimate.Estimate{
		{DeliverableName: "管理画面開発", PersonDays: 10, Amount: 400000},
		{DeliverableName: "結合テスト", PersonDays: 8, Amount: 320000},
		{DeliverableName: "認証機能", PersonDays: 5, Amount: 200000},
	}
}

func TestApplyRules_ExplicitPercent(t *testing.T) {
	eng := newTestEngine(t, nil)

	outcome := eng.applyRules(ruleFixture(), "管理画面を20%下げてください")
	require.True(t, outcome.changed)

	assert.Equal(t, 8.0, outcome.estimates[0].PersonDays)
	assert.Equal(t, 320000.0, outcome.estimates[0].Amount)
	// Unrelated items stay put. The auth item is untouched because neither
	// its category nor an apply-to-all phrase appears in the message.
	assert.Equal(t, 5.0, outcome.estimates[2].PersonDays)
	assert.Contains(t, outcome.note, "管理画面開発")
}

func TestApplyRules_IntensityPhrase(t *testing.T) {
	eng := newTestEngine(t, nil)

	// 「シンプル」 implies a 30% reduction.
	outcome := eng.applyRules(ruleFixture(), "管理画面をシンプルにしてください")
	require.True(t, outcome.changed)
	assert.Equal(t, 7.0, outcome.estimates[0].PersonDays)
	assert.Equal(t, 280000.0, outcome.estimates[0].Amount)
}

func TestApplyRules_ApplyToAll(t *testing.T) {
	eng := newTestEngine(t, nil)

	outcome := eng.applyRules(ruleFixture(), "全体を10%下げてください")
	require.True(t, outcome.changed)
	assert.Equal(t, 9.0, outcome.estimates[0].PersonDays)
	assert.Equal(t, 7.2, outcome.estimates[1].PersonDays)
	assert.Equal(t, 4.5, outcome.estimates[2].PersonDays)
}

func TestApplyRules_Exclusion(t *testing.T) {
	eng := newTestEngine(t, nil)

	outcome := eng.applyRules(ruleFixture(), "認証機能は今回は除外してください")
	require.True(t, outcome.changed)
	assert.Equal(t, 0.0, outcome.estimates[2].PersonDays)
	assert.Equal(t, 0.0, outcome.estimates[2].Amount)
	// Rows are zeroed, not dropped, so the caller still sees the item.
	assert.Len(t, outcome.estimates, 3)
}

func TestApplyRules_DefaultReductionWhenIntensityUnclear(t *testing.T) {
	eng := newTestEngine(t, nil)

	outcome := eng.applyRules(ruleFixture(), "テストについて調整をお願いします")
	require.True(t, outcome.changed)
	assert.Equal(t, 6.8, outcome.estimates[1].PersonDays)
	assert.Equal(t, 272000.0, outcome.estimates[1].Amount)
	assert.Contains(t, outcome.note, "15")
}

func TestApplyRules_NoMatchLeavesEstimatesUnchanged(t *testing.T) {
	eng := newTestEngine(t, nil)

	ests := ruleFixture()
	outcome := eng.applyRules(ests, "こんにちは")
	assert.False(t, outcome.changed)
	assert.Equal(t, ests, outcome.estimates)
	// The reply offers concrete example instructions instead of guessing.
	assert.NotEmpty(t, outcome.note)
}

func TestApplyRules_TinyDeltaDoesNotCountAsChange(t *testing.T) {
	eng := newTestEngine(t, nil)

	// 1% of 0.1 person-days rounds back to 0.1: below the 0.05 threshold.
	ests := []estimate.Estimate{{DeliverableName: "結合テスト", PersonDays: 0.1, Amount: 4000}}
	outcome := eng.applyRules(ests, "テストを1%下げてください")
	assert.False(t, outcome.changed)
	assert.Equal(t, 0.1, outcome.estimates[0].PersonDays)
}
