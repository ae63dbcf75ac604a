package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qualWith(tier Tier, state SchedulerState) *UserQualification {
	q := NewUserQualification("user-1", time.Now())
	q.Tier = tier
	q.SchedulerState = state
	q.InitFSM()
	return q
}

func TestEvaluate(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	paper := catalog.PolicyFor(ClassPaper)
	basic := catalog.PolicyFor(ClassBasic)
	intermediate := catalog.PolicyFor(ClassIntermediate)
	complexRule := catalog.PolicyFor(ClassComplex)
	unlimited := catalog.PolicyFor(ClassUnlimitedRisk)

	frac := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name        string
		rule        *PolicyRule
		tier        Tier
		state       SchedulerState
		fraction    decimal.Decimal
		wantOutcome DecisionOutcome
		wantReason  ReasonCode
	}{
		{
			name: "beginner within basic policy", rule: basic,
			tier: TierBeginner, state: SchedulerStateCurrent, fraction: frac("0.01"),
			wantOutcome: DecisionAllow, wantReason: ReasonWithinPolicy,
		},
		{
			name: "beginner oversize basic position", rule: basic,
			tier: TierBeginner, state: SchedulerStateCurrent, fraction: frac("0.05"),
			wantOutcome: DecisionAllowWithAck, wantReason: ReasonPositionSizeExceeded,
		},
		{
			name: "beginner blocked from intermediate class", rule: intermediate,
			tier: TierBeginner, state: SchedulerStateCurrent, fraction: frac("0.01"),
			wantOutcome: DecisionBlock, wantReason: ReasonTierInsufficient,
		},
		{
			name: "intermediate blocked from complex class", rule: complexRule,
			tier: TierIntermediate, state: SchedulerStateCurrent, fraction: frac("0.01"),
			wantOutcome: DecisionBlock, wantReason: ReasonTierInsufficient,
		},
		{
			name: "advanced allowed for complex class", rule: complexRule,
			tier: TierAdvanced, state: SchedulerStateCurrent, fraction: frac("0.10"),
			wantOutcome: DecisionAllow, wantReason: ReasonWithinPolicy,
		},
		{
			// 无上限风险永远不会无条件放行，分级再高也要逐项确认
			name: "advanced still acknowledges unlimited risk", rule: unlimited,
			tier: TierAdvanced, state: SchedulerStateCurrent, fraction: frac("0.01"),
			wantOutcome: DecisionAllowWithAck, wantReason: ReasonUnlimitedRisk,
		},
		{
			name: "beginner acknowledges unlimited risk", rule: unlimited,
			tier: TierBeginner, state: SchedulerStateCurrent, fraction: frac("0.01"),
			wantOutcome: DecisionAllowWithAck, wantReason: ReasonUnlimitedRisk,
		},
		{
			// 强制重测期内高于初级权限的请求一律拒绝，分级不作数
			name: "required state blocks advanced user", rule: complexRule,
			tier: TierAdvanced, state: SchedulerStateRequired, fraction: frac("0.01"),
			wantOutcome: DecisionBlock, wantReason: ReasonReassessmentRequired,
		},
		{
			name: "required state blocks unlimited risk", rule: unlimited,
			tier: TierAdvanced, state: SchedulerStateRequired, fraction: frac("0.01"),
			wantOutcome: DecisionBlock, wantReason: ReasonReassessmentRequired,
		},
		{
			// 初级权限的类别在强制重测期内仍可用
			name: "required state keeps basic class open", rule: basic,
			tier: TierAdvanced, state: SchedulerStateRequired, fraction: frac("0.01"),
			wantOutcome: DecisionAllow, wantReason: ReasonWithinPolicy,
		},
		{
			name: "suggested state does not restrict", rule: complexRule,
			tier: TierAdvanced, state: SchedulerStateSuggested, fraction: frac("0.01"),
			wantOutcome: DecisionAllow, wantReason: ReasonWithinPolicy,
		},
		{
			// 模拟盘不动真实资金，初级满仓也无条件放行
			name: "paper trading uncapped for beginner", rule: paper,
			tier: TierBeginner, state: SchedulerStateCurrent, fraction: frac("1.00"),
			wantOutcome: DecisionAllow, wantReason: ReasonWithinPolicy,
		},
		{
			name: "paper trading stays open during required reassessment", rule: paper,
			tier: TierBeginner, state: SchedulerStateRequired, fraction: frac("0.50"),
			wantOutcome: DecisionAllow, wantReason: ReasonWithinPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, reason, _ := Evaluate(tt.rule, qualWith(tt.tier, tt.state), tt.fraction)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestEvaluate_SuggestedFraction(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	basic := catalog.PolicyFor(ClassBasic)

	outcome, reason, suggested := Evaluate(basic, qualWith(TierBeginner, SchedulerStateCurrent), decimal.NewFromFloat(0.08))
	assert.Equal(t, DecisionAllowWithAck, outcome)
	assert.Equal(t, ReasonPositionSizeExceeded, reason)
	assert.True(t, suggested.Equal(basic.MaxPositionFraction))
}

func TestDecide(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	now := time.Now()

	t.Run("allow is final", func(t *testing.T) {
		rule := catalog.PolicyFor(ClassBasic)
		req := &GatingRequest{RequestID: "req-1", UserID: "user-1", Class: ClassBasic, PositionFraction: decimal.NewFromFloat(0.01)}
		d := Decide("GD1", rule, nil, qualWith(TierBeginner, SchedulerStateCurrent), req, now)

		assert.Equal(t, DecisionStatusFinal, d.Status)
		assert.Empty(t, d.ChecklistItems())
		assert.Equal(t, TierBeginner, d.TierAtDecision)
		// 无条件放行不解释任何缺口
		assert.Empty(t, d.StrategyDescription)
		assert.Empty(t, d.NextStepItems())
	})

	t.Run("ack outcome carries checklist", func(t *testing.T) {
		rule := catalog.PolicyFor(ClassUnlimitedRisk)
		def := catalog.StrategyByName("naked_options")
		req := &GatingRequest{RequestID: "req-2", UserID: "user-1", Strategy: "naked_options", Class: ClassUnlimitedRisk, PositionFraction: decimal.NewFromFloat(0.01)}
		d := Decide("GD2", rule, def, qualWith(TierAdvanced, SchedulerStateCurrent), req, now)

		assert.Equal(t, DecisionStatusPendingAck, d.Status)
		assert.Equal(t, rule.ChecklistItems(), d.ChecklistItems())
		assert.Equal(t, "naked_options", d.Strategy)
	})

	t.Run("block carries strategy description and next steps", func(t *testing.T) {
		rule := catalog.PolicyFor(ClassComplex)
		def := catalog.StrategyByName("iron_condor")
		req := &GatingRequest{RequestID: "req-3", UserID: "user-1", Strategy: "iron_condor", Class: ClassComplex, PositionFraction: decimal.NewFromFloat(0.01)}
		d := Decide("GD3", rule, def, qualWith(TierBeginner, SchedulerStateCurrent), req, now)

		require.Equal(t, DecisionBlock, d.Outcome)
		assert.Equal(t, def.Description, d.StrategyDescription)

		steps := d.NextStepItems()
		require.Len(t, steps, 3)
		assert.Equal(t, "learn_more", steps[0].Action)
		assert.Contains(t, steps[0].Label, "iron_condor")
		assert.Equal(t, "take_assessment", steps[1].Action)
		// 初级用户被引导到中级测评
		assert.Contains(t, steps[1].Label, "intermediate")
		assert.Equal(t, "paper_trading", steps[2].Action)
	})

	t.Run("intermediate user is pointed at the advanced assessment", func(t *testing.T) {
		rule := catalog.PolicyFor(ClassComplex)
		def := catalog.StrategyByName("butterfly")
		req := &GatingRequest{RequestID: "req-4", UserID: "user-1", Strategy: "butterfly", Class: ClassComplex, PositionFraction: decimal.NewFromFloat(0.01)}
		d := Decide("GD4", rule, def, qualWith(TierIntermediate, SchedulerStateCurrent), req, now)

		require.Equal(t, DecisionBlock, d.Outcome)
		steps := d.NextStepItems()
		require.Len(t, steps, 3)
		assert.Contains(t, steps[1].Label, "advanced")
	})
}

func TestAcknowledge(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	rule := catalog.PolicyFor(ClassUnlimitedRisk)
	now := time.Now()
	req := &GatingRequest{RequestID: "req-1", UserID: "user-1", Class: ClassUnlimitedRisk, PositionFraction: decimal.NewFromFloat(0.01)}

	t.Run("requires every item", func(t *testing.T) {
		d := Decide("GD1", rule, nil, qualWith(TierAdvanced, SchedulerStateCurrent), req, now)
		items := d.ChecklistItems()
		require.NotEmpty(t, items)

		err := d.Acknowledge(items[:len(items)-1], now)
		assert.ErrorIs(t, err, ErrAcknowledgementIncomplete)
		assert.Equal(t, DecisionStatusPendingAck, d.Status)
	})

	t.Run("complete checklist settles the decision", func(t *testing.T) {
		d := Decide("GD2", rule, nil, qualWith(TierAdvanced, SchedulerStateCurrent), req, now)
		err := d.Acknowledge(d.ChecklistItems(), now)
		require.NoError(t, err)

		assert.Equal(t, DecisionStatusAcknowledged, d.Status)
		require.NotNil(t, d.AcknowledgedAt)
		assert.Equal(t, now, *d.AcknowledgedAt)

		// 已落定的决策不可重复确认
		err = d.Acknowledge(d.ChecklistItems(), now)
		assert.ErrorIs(t, err, ErrDecisionNotPending)
	})

	t.Run("final decision cannot be acknowledged", func(t *testing.T) {
		basic := catalog.PolicyFor(ClassBasic)
		allowReq := &GatingRequest{RequestID: "req-3", UserID: "user-1", Class: ClassBasic, PositionFraction: decimal.NewFromFloat(0.01)}
		d := Decide("GD3", basic, nil, qualWith(TierBeginner, SchedulerStateCurrent), allowReq, now)

		err := d.Acknowledge(nil, now)
		assert.ErrorIs(t, err, ErrDecisionNotPending)
	})
}
