package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTrigger_Transitions(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("first trigger suggests reassessment", func(t *testing.T) {
		q := NewUserQualification("user-1", now)
		changed, err := q.RecordTrigger(ctx, TriggerRealizedLoss, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, SchedulerStateSuggested, q.SchedulerState)
	})

	t.Run("same trigger kind does not stack", func(t *testing.T) {
		q := NewUserQualification("user-1", now)
		_, err := q.RecordTrigger(ctx, TriggerRealizedLoss, now)
		require.NoError(t, err)

		changed, err := q.RecordTrigger(ctx, TriggerRealizedLoss, now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, SchedulerStateSuggested, q.SchedulerState)
	})

	t.Run("second independent trigger escalates to required", func(t *testing.T) {
		q := NewUserQualification("user-1", now)
		_, err := q.RecordTrigger(ctx, TriggerRealizedLoss, now)
		require.NoError(t, err)

		changed, err := q.RecordTrigger(ctx, TriggerElapsedTime, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, SchedulerStateRequired, q.SchedulerState)
	})

	t.Run("compliance flag goes straight to required", func(t *testing.T) {
		q := NewUserQualification("user-1", now)
		changed, err := q.RecordTrigger(ctx, TriggerComplianceFlag, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, SchedulerStateRequired, q.SchedulerState)

		// 已在强制重测期，重复标记不再迁移
		changed, err = q.RecordTrigger(ctx, TriggerComplianceFlag, now)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("state change emits event", func(t *testing.T) {
		q := NewUserQualification("user-1", now)
		_, err := q.RecordTrigger(ctx, TriggerRealizedLoss, now)
		require.NoError(t, err)

		events := q.GetDomainEvents()
		require.Len(t, events, 1)
		stateEvent, ok := events[0].(*ReassessmentStateChangedEvent)
		require.True(t, ok)
		assert.Equal(t, string(SchedulerStateCurrent), stateEvent.From)
		assert.Equal(t, string(SchedulerStateSuggested), stateEvent.To)
		assert.Equal(t, string(TriggerRealizedLoss), stateEvent.Trigger)
	})
}

func TestEvaluateTimeTrigger(t *testing.T) {
	ctx := context.Background()
	start := time.Now()

	q := NewUserQualification("user-1", start)
	changed, err := q.EvaluateTimeTrigger(ctx, start.Add(ReassessmentInterval-time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, SchedulerStateCurrent, q.SchedulerState)

	changed, err = q.EvaluateTimeTrigger(ctx, start.Add(ReassessmentInterval+time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SchedulerStateSuggested, q.SchedulerState)
}

func TestRegisterDecisionOutcome_ConsecutiveAcks(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := NewUserQualification("user-1", now)

	for i := 0; i < ConsecutiveAckLimit-1; i++ {
		changed, err := q.RegisterDecisionOutcome(ctx, DecisionAllowWithAck, now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)
	}

	changed, err := q.RegisterDecisionOutcome(ctx, DecisionAllowWithAck, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SchedulerStateSuggested, q.SchedulerState)
}

func TestRegisterDecisionOutcome_AllowResetsWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := NewUserQualification("user-1", now)

	for i := 0; i < ConsecutiveAckLimit-1; i++ {
		_, err := q.RegisterDecisionOutcome(ctx, DecisionAllowWithAck, now)
		require.NoError(t, err)
	}
	_, err := q.RegisterDecisionOutcome(ctx, DecisionAllow, now)
	require.NoError(t, err)
	assert.Equal(t, 0, q.ConsecutiveAcks)

	// 重新计数，再来两次不触发
	for i := 0; i < ConsecutiveAckLimit-1; i++ {
		changed, err := q.RegisterDecisionOutcome(ctx, DecisionAllowWithAck, now)
		require.NoError(t, err)
		assert.False(t, changed)
	}
	assert.Equal(t, SchedulerStateCurrent, q.SchedulerState)
}

func TestRegisterDecisionOutcome_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := NewUserQualification("user-1", now)

	_, err := q.RegisterDecisionOutcome(ctx, DecisionAllowWithAck, now)
	require.NoError(t, err)
	_, err = q.RegisterDecisionOutcome(ctx, DecisionAllowWithAck, now)
	require.NoError(t, err)

	// 窗口过期后计数重新开始
	later := now.Add(OverrideWindow + time.Hour)
	changed, err := q.RegisterDecisionOutcome(ctx, DecisionAllowWithAck, later)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, q.ConsecutiveAcks)
}

func TestApplyScore(t *testing.T) {
	ctx := context.Background()
	catalog := DefaultCatalog(time.Now())
	start := time.Now()

	t.Run("clears reassessment state and triggers", func(t *testing.T) {
		q := NewUserQualification("user-1", start)
		_, err := q.RecordTrigger(ctx, TriggerComplianceFlag, start)
		require.NoError(t, err)
		q.ClearDomainEvents()

		score, err := ScoreSubmission(catalog, newSubmission(catalog, answersFor(catalog)))
		require.NoError(t, err)
		tier := Classify(catalog.Version, score)

		now := start.Add(time.Hour)
		require.NoError(t, q.ApplyScore(ctx, "SUB1", score, tier, now))

		assert.Equal(t, SchedulerStateCurrent, q.SchedulerState)
		assert.Empty(t, q.FiredTriggers)
		assert.Equal(t, 0, q.ConsecutiveAcks)
		assert.Nil(t, q.AckWindowStart)
		assert.Equal(t, TierAdvanced, q.Tier)
		assert.Equal(t, now, q.TierEffectiveSince)
		assert.Equal(t, "SUB1", q.LastSubmissionID)

		events := q.GetDomainEvents()
		require.Len(t, events, 2)
		_, isClassified := events[0].(*UserClassifiedEvent)
		assert.True(t, isClassified)
		stateEvent, isStateChange := events[1].(*ReassessmentStateChangedEvent)
		require.True(t, isStateChange)
		assert.Equal(t, "ASSESSMENT_COMPLETED", stateEvent.Trigger)
	})

	t.Run("unchanged tier keeps effective since", func(t *testing.T) {
		q := NewUserQualification("user-1", start)
		score, err := ScoreSubmission(catalog, newSubmission(catalog, answersFor(catalog, "q1", "q2", "q3", "q4")))
		require.NoError(t, err)
		tier := Classify(catalog.Version, score)
		require.Equal(t, TierBeginner, tier)

		now := start.Add(time.Hour)
		require.NoError(t, q.ApplyScore(ctx, "SUB1", score, tier, now))

		assert.Equal(t, TierBeginner, q.Tier)
		assert.Equal(t, start, q.TierEffectiveSince)
	})
}

func TestForceDowngrade(t *testing.T) {
	ctx := context.Background()
	start := time.Now()

	t.Run("downgrades below previous tier", func(t *testing.T) {
		q := NewUserQualification("user-1", start)
		q.Tier = TierAdvanced
		q.InitFSM()

		now := start.Add(time.Hour)
		require.NoError(t, q.ForceDowngrade(ctx, TierIntermediate, "regulatory order", now))

		assert.Equal(t, TierIntermediate, q.Tier)
		assert.Equal(t, now, q.TierEffectiveSince)
		assert.Equal(t, SchedulerStateRequired, q.SchedulerState)

		events := q.GetDomainEvents()
		require.Len(t, events, 2)
		classified, ok := events[0].(*UserClassifiedEvent)
		require.True(t, ok)
		assert.True(t, classified.Forced)
		assert.Equal(t, "regulatory order", classified.Reason)
	})

	t.Run("target at or above current falls to beginner", func(t *testing.T) {
		q := NewUserQualification("user-1", start)
		q.Tier = TierIntermediate
		q.InitFSM()

		require.NoError(t, q.ForceDowngrade(ctx, TierAdvanced, "bad target", start))
		assert.Equal(t, TierBeginner, q.Tier)
	})
}

func TestNextAuditSeq(t *testing.T) {
	q := NewUserQualification("user-1", time.Now())
	assert.Equal(t, uint64(1), q.NextAuditSeq())
	assert.Equal(t, uint64(2), q.NextAuditSeq())
	assert.Equal(t, uint64(3), q.NextAuditSeq())
	assert.Equal(t, uint64(3), q.AuditSeq)
}

func TestSnapshot(t *testing.T) {
	now := time.Now()
	q := NewUserQualification("user-1", now)
	q.Tier = TierIntermediate
	q.OverrideCount = 2
	q.Version = 5

	later := now.Add(time.Hour)
	snap := q.Snapshot(later)

	assert.Equal(t, q.UserID, snap.UserID)
	assert.Equal(t, TierIntermediate, snap.Tier)
	assert.Equal(t, 2, snap.OverrideCount)
	assert.Equal(t, uint64(5), snap.RecordVersion)
	assert.Equal(t, later, snap.SupersededAt)
}
