package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answersFor 按内置题库构造答卷：wrong 中的题选错误选项，其余选正确选项
func answersFor(catalog *Catalog, wrong ...string) map[string]string {
	wrongSet := make(map[string]bool, len(wrong))
	for _, id := range wrong {
		wrongSet[id] = true
	}
	answers := make(map[string]string, len(catalog.Questions))
	for _, q := range catalog.Questions {
		if wrongSet[q.QuestionID] {
			if q.CorrectOption == "A" {
				answers[q.QuestionID] = "D"
			} else {
				answers[q.QuestionID] = "A"
			}
		} else {
			answers[q.QuestionID] = q.CorrectOption
		}
	}
	return answers
}

func newSubmission(catalog *Catalog, answers map[string]string) *AssessmentSubmission {
	return &AssessmentSubmission{
		SubmissionID:   "SUB1",
		UserID:         "user-1",
		CatalogVersion: catalog.Version.Version,
		Answers:        answers,
		SubmittedAt:    time.Now(),
	}
}

func TestScoreSubmission_AllCorrect(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	score, err := ScoreSubmission(catalog, newSubmission(catalog, answersFor(catalog)))
	require.NoError(t, err)

	assert.Equal(t, 12, score.RawCorrect)
	assert.Equal(t, 12, score.TotalQuestions)
	assert.True(t, score.WeightedPct.Equal(decimal.NewFromInt(100)),
		"expected 100, got %s", score.WeightedPct)

	for _, cat := range Categories {
		cs := score.ByCategory[cat]
		assert.Equal(t, 4, cs.Correct)
		assert.Equal(t, 4, cs.Total)
		assert.True(t, cs.WeightedPct.Equal(decimal.NewFromInt(100)))
	}
	assert.Len(t, score.Details, 12)
}

func TestScoreSubmission_WeightedMath(t *testing.T) {
	catalog := DefaultCatalog(time.Now())

	// 错一道基础题（权重 2）：得分 16/18
	score, err := ScoreSubmission(catalog, newSubmission(catalog, answersFor(catalog, "q1")))
	require.NoError(t, err)

	expected := decimal.NewFromInt(16).Div(decimal.NewFromInt(18)).Mul(decimal.NewFromInt(100))
	assert.True(t, score.WeightedPct.Equal(expected),
		"expected %s, got %s", expected, score.WeightedPct)
	assert.Equal(t, 11, score.RawCorrect)
	assert.Equal(t, 3, score.CategoryCorrect(CategoryFundamental))

	// 类别内加权：基础类 6/8
	fundPct := decimal.NewFromInt(6).Div(decimal.NewFromInt(8)).Mul(decimal.NewFromInt(100))
	assert.True(t, score.ByCategory[CategoryFundamental].WeightedPct.Equal(fundPct))
}

func TestScoreSubmission_Deterministic(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	submission := newSubmission(catalog, answersFor(catalog, "q3", "q7", "q12"))

	first, err := ScoreSubmission(catalog, submission)
	require.NoError(t, err)
	second, err := ScoreSubmission(catalog, submission)
	require.NoError(t, err)

	assert.True(t, first.WeightedPct.Equal(second.WeightedPct))
	assert.Equal(t, first.RawCorrect, second.RawCorrect)
	assert.Equal(t, first.ByCategory, second.ByCategory)
	assert.Equal(t, first.Details, second.Details)
}

func TestScoreSubmission_RejectsIncomplete(t *testing.T) {
	catalog := DefaultCatalog(time.Now())

	t.Run("missing answer", func(t *testing.T) {
		answers := answersFor(catalog)
		delete(answers, "q5")
		_, err := ScoreSubmission(catalog, newSubmission(catalog, answers))
		assert.ErrorIs(t, err, ErrIncompleteSubmission)
	})

	t.Run("empty answer", func(t *testing.T) {
		answers := answersFor(catalog)
		answers["q5"] = ""
		_, err := ScoreSubmission(catalog, newSubmission(catalog, answers))
		assert.ErrorIs(t, err, ErrIncompleteSubmission)
	})

	t.Run("unknown question substituted", func(t *testing.T) {
		answers := answersFor(catalog)
		delete(answers, "q5")
		answers["q99"] = "A"
		_, err := ScoreSubmission(catalog, newSubmission(catalog, answers))
		assert.ErrorIs(t, err, ErrIncompleteSubmission)
	})
}

func TestScoreSubmission_RejectsVersionMismatch(t *testing.T) {
	catalog := DefaultCatalog(time.Now())
	submission := newSubmission(catalog, answersFor(catalog))
	submission.CatalogVersion = "1999.1"

	_, err := ScoreSubmission(catalog, submission)
	assert.ErrorIs(t, err, ErrUnknownCatalogVersion)
}
