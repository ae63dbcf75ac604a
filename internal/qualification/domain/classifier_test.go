package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func classify(t *testing.T, catalog *Catalog, wrong ...string) Tier {
	t.Helper()
	score, err := ScoreSubmission(catalog, newSubmission(catalog, answersFor(catalog, wrong...)))
	require.NoError(t, err)
	return Classify(catalog.Version, score)
}

func TestClassify(t *testing.T) {
	catalog := DefaultCatalog(time.Now())

	tests := []struct {
		name  string
		wrong []string
		want  Tier
	}{
		{
			name: "all correct is advanced",
			want: TierAdvanced,
		},
		{
			// 16.5/18 = 91.7%，策略类 3 对、高阶类 4 对均达下限
			name:  "one strategy miss stays advanced",
			wrong: []string{"q5"},
			want:  TierAdvanced,
		},
		{
			// 16/18 = 88.9% 超过高级阈值，但高阶类仅 2 对，回落到中级
			name:  "advanced floor failure falls to intermediate",
			wrong: []string{"q9", "q10"},
			want:  TierIntermediate,
		},
		{
			// 14/18 = 77.8% 超过高级阈值，但基础类仅 2 对：下限不达标直接初级
			name:  "fundamentals floor failure is beginner regardless of score",
			wrong: []string{"q1", "q2"},
			want:  TierBeginner,
		},
		{
			// 3 基础 + 2 策略 + 0 高阶 = 9/18，恰好 50%：压线不越界
			name:  "exactly at intermediate threshold stays beginner",
			wrong: []string{"q1", "q7", "q8", "q9", "q10", "q11", "q12"},
			want:  TierBeginner,
		},
		{
			// 3 基础 + 2 策略 + 1 高阶 = 10/18 = 55.6%，策略类达下限
			name:  "just above intermediate threshold",
			wrong: []string{"q1", "q7", "q8", "q10", "q11", "q12"},
			want:  TierIntermediate,
		},
		{
			// 3 基础 + 3 策略 + 3 高阶 = 13.5/18，恰好 75%：压线停在中级
			name:  "exactly at advanced threshold stays intermediate",
			wrong: []string{"q1", "q5", "q9"},
			want:  TierIntermediate,
		},
		{
			// 12.5/18 = 69.4% 超过中级阈值，但策略类仅 1 对，回落到初级
			name:  "strategy floor failure falls to beginner",
			wrong: []string{"q5", "q6", "q7", "q12"},
			want:  TierBeginner,
		},
		{
			name:  "all wrong is beginner",
			wrong: []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9", "q10", "q11", "q12"},
			want:  TierBeginner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classify(t, catalog, tt.wrong...))
		})
	}
}

func TestClassify_NilInputs(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	require.Equal(t, TierBeginner, Classify(nil, &ScoreResult{}))
	require.Equal(t, TierBeginner, Classify(catalog.Version, nil))
}

// 高级分支只看总分阈值与高阶类下限；策略类下限属于中级分支的条件，
// 题量权重不同的问卷变体里两者可以独立成立
func TestClassify_AdvancedRuleIgnoresStrategyFloor(t *testing.T) {
	version := &CatalogVersionRecord{
		Version:               "synthetic.1",
		MinCorrectFundamental: 1,
		MinCorrectStrategy:    4,
		MinCorrectAdvanced:    1,
		IntermediatePct:       decimal.NewFromInt(50),
		AdvancedPct:           decimal.NewFromInt(60),
	}
	score := &ScoreResult{
		WeightedPct: decimal.NewFromInt(70),
		ByCategory: map[Category]CategoryScore{
			CategoryFundamental: {Correct: 2, Total: 2},
			CategoryStrategy:    {Correct: 1, Total: 4},
			CategoryAdvanced:    {Correct: 2, Total: 2},
		},
	}
	require.Equal(t, TierAdvanced, Classify(version, score))

	// 总分不过高级阈值时回到中级分支，策略类下限重新生效
	score.WeightedPct = decimal.NewFromInt(55)
	require.Equal(t, TierBeginner, Classify(version, score))
}
