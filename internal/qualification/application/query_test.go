package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

func TestGetQualification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.query.GetQualification(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrQualificationNotFound)

	_, err = f.cmd.SubmitAssessment(ctx, SubmitAssessmentCommand{
		UserID:         "user-1",
		CatalogVersion: domain.DefaultCatalogVersion,
		Answers:        answersFor(f.catalog),
	})
	require.NoError(t, err)

	dto, err := f.query.GetQualification(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ADVANCED", dto.Tier)
	assert.Equal(t, domain.DefaultCatalogVersion, dto.CatalogVersion)
}

func TestGetScoreBreakdown_Reproducible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submitted, err := f.cmd.SubmitAssessment(ctx, SubmitAssessmentCommand{
		UserID:         "user-1",
		CatalogVersion: domain.DefaultCatalogVersion,
		Answers:        answersFor(f.catalog, "q5", "q9"),
	})
	require.NoError(t, err)

	// 评分结果不独立存储，由答卷 + 题库版本重算，必须与提交时完全一致
	recomputed, err := f.query.GetScoreBreakdown(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, submitted.SubmissionID, recomputed.SubmissionID)
	assert.Equal(t, submitted.WeightedPct, recomputed.WeightedPct)
	assert.Equal(t, submitted.RawCorrect, recomputed.RawCorrect)
	assert.Equal(t, submitted.Tier, recomputed.Tier)
	assert.Equal(t, submitted.ByCategory, recomputed.ByCategory)
	assert.Equal(t, submitted.Details, recomputed.Details)
}

func TestListStrategies_AnnotatesAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 未测评用户按初级标注
	list, err := f.query.ListStrategies(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, len(f.catalog.Strategies))

	byName := make(map[string]*StrategyAccessDTO, len(list))
	for _, s := range list {
		byName[s.Name] = s
	}

	assert.Equal(t, string(domain.DecisionAllow), byName["buy_calls_puts"].Outcome)
	assert.Equal(t, string(domain.DecisionBlock), byName["covered_calls"].Outcome)
	assert.Equal(t, string(domain.DecisionBlock), byName["iron_condor"].Outcome)
	// 无上限风险永远带确认，不会标注为无条件可用
	assert.Equal(t, string(domain.DecisionAllowWithAck), byName["naked_options"].Outcome)
	assert.Equal(t, string(domain.ReasonUnlimitedRisk), byName["naked_options"].Reason)

	// 定级后标注随之变化
	_, err = f.cmd.SubmitAssessment(ctx, SubmitAssessmentCommand{
		UserID:         "user-1",
		CatalogVersion: domain.DefaultCatalogVersion,
		Answers:        answersFor(f.catalog),
	})
	require.NoError(t, err)

	list, err = f.query.ListStrategies(ctx, "user-1")
	require.NoError(t, err)
	for _, s := range list {
		byName[s.Name] = s
	}
	assert.Equal(t, string(domain.DecisionAllow), byName["covered_calls"].Outcome)
	assert.Equal(t, string(domain.DecisionAllow), byName["iron_condor"].Outcome)
	assert.Equal(t, string(domain.DecisionAllowWithAck), byName["naked_options"].Outcome)
}

func TestListAudit_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	answers := answersFor(f.catalog)
	for i := 0; i < 3; i++ {
		_, err := f.cmd.SubmitAssessment(ctx, SubmitAssessmentCommand{
			UserID: "user-1", CatalogVersion: domain.DefaultCatalogVersion, Answers: answers,
		})
		require.NoError(t, err)
	}

	page, err := f.query.ListAudit(ctx, "user-1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(1), page[0].Seq)
	assert.Equal(t, uint64(2), page[1].Seq)

	rest, err := f.query.ListAudit(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, uint64(3), rest[0].Seq)
}

func TestGetDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.cmd.CheckGating(ctx, CheckGatingCommand{
		RequestID: "req-1", UserID: "user-1", Strategy: "naked_options", PositionFraction: "0.01",
	})
	require.NoError(t, err)

	loaded, err := f.query.GetDecision(ctx, dto.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, dto.Outcome, loaded.Outcome)
	assert.Equal(t, dto.Checklist, loaded.Checklist)

	_, err = f.query.GetDecision(ctx, "GD-missing")
	assert.ErrorIs(t, err, domain.ErrDecisionNotFound)
}
