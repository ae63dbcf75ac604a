package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssessmentSubmission 一次完整的答卷提交
// 题库版本内每道题必须且只能有一个选项；缺题直接拒绝，不做部分评分
type AssessmentSubmission struct {
	ID             uint      `gorm:"primarykey" json:"-"`
	SubmissionID   string    `gorm:"column:submission_id;type:varchar(32);uniqueIndex;not null" json:"submission_id"`
	UserID         string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	CatalogVersion string    `gorm:"column:catalog_version;type:varchar(32);not null" json:"catalog_version"`
	AnswersJSON    string    `gorm:"column:answers;type:text;not null" json:"-"`
	SubmittedAt    time.Time `gorm:"column:submitted_at;not null" json:"submitted_at"`

	// 题目 ID -> 所选选项，持久化为 AnswersJSON
	Answers map[string]string `gorm:"-" json:"answers"`
}

// TableName 表名
func (AssessmentSubmission) TableName() string {
	return "assessment_submissions"
}

// CategoryScore 单类别得分
type CategoryScore struct {
	Correct     int             `json:"correct"`      // 答对数
	Total       int             `json:"total"`        // 题目数
	WeightedPct decimal.Decimal `json:"weighted_pct"` // 类别加权百分比
}

// ScoreResult 评分结果，纯派生值：同一答卷 + 同一题库版本永远得到相同结果
type ScoreResult struct {
	CatalogVersion string                     `json:"catalog_version"`
	RawCorrect     int                        `json:"raw_correct"`
	TotalQuestions int                        `json:"total_questions"`
	WeightedPct    decimal.Decimal            `json:"weighted_pct"`
	ByCategory     map[Category]CategoryScore `json:"by_category"`
	// 每题判定，供 UI 协作方做概念级教育引导
	Details []QuestionOutcome `json:"details"`
}

// QuestionOutcome 单题判定
type QuestionOutcome struct {
	QuestionID   string   `json:"question_id"`
	Category     Category `json:"category"`
	Selected     string   `json:"selected"`
	Correct      bool     `json:"correct"`
	ConceptLabel string   `json:"concept_label"`
}

// CategoryCorrect 类别答对数
func (s *ScoreResult) CategoryCorrect(cat Category) int {
	return s.ByCategory[cat].Correct
}

// ScoreSubmission 对完整答卷评分，无副作用、确定性
// 类别加权分 = 类别内答对题权重合计 / 类别权重合计；
// 总加权分 = 全部答对题权重合计 / 全部权重合计。
func ScoreSubmission(catalog *Catalog, submission *AssessmentSubmission) (*ScoreResult, error) {
	if catalog == nil || catalog.Version == nil {
		return nil, ErrUnknownCatalogVersion
	}
	if submission.CatalogVersion != catalog.Version.Version {
		return nil, ErrUnknownCatalogVersion
	}
	if len(submission.Answers) != len(catalog.Questions) {
		return nil, ErrIncompleteSubmission
	}

	earnedByCat := map[Category]decimal.Decimal{}
	totalByCat := map[Category]decimal.Decimal{}
	correctByCat := map[Category]int{}
	totalCountByCat := map[Category]int{}
	earned := decimal.Zero
	total := decimal.Zero
	rawCorrect := 0
	details := make([]QuestionOutcome, 0, len(catalog.Questions))

	for _, q := range catalog.Questions {
		selected, ok := submission.Answers[q.QuestionID]
		if !ok || selected == "" {
			return nil, ErrIncompleteSubmission
		}
		correct := selected == q.CorrectOption

		total = total.Add(q.Weight)
		totalByCat[q.Category] = totalByCat[q.Category].Add(q.Weight)
		totalCountByCat[q.Category]++
		if correct {
			earned = earned.Add(q.Weight)
			earnedByCat[q.Category] = earnedByCat[q.Category].Add(q.Weight)
			correctByCat[q.Category]++
			rawCorrect++
		}

		details = append(details, QuestionOutcome{
			QuestionID:   q.QuestionID,
			Category:     q.Category,
			Selected:     selected,
			Correct:      correct,
			ConceptLabel: q.ConceptLabel,
		})
	}

	hundred := decimal.NewFromInt(100)
	byCategory := make(map[Category]CategoryScore, len(totalByCat))
	for cat, catTotal := range totalByCat {
		pct := decimal.Zero
		if !catTotal.IsZero() {
			pct = earnedByCat[cat].Div(catTotal).Mul(hundred)
		}
		byCategory[cat] = CategoryScore{
			Correct:     correctByCat[cat],
			Total:       totalCountByCat[cat],
			WeightedPct: pct,
		}
	}

	weightedPct := decimal.Zero
	if !total.IsZero() {
		weightedPct = earned.Div(total).Mul(hundred)
	}

	return &ScoreResult{
		CatalogVersion: catalog.Version.Version,
		RawCorrect:     rawCorrect,
		TotalQuestions: len(catalog.Questions),
		WeightedPct:    weightedPct,
		ByCategory:     byCategory,
		Details:        details,
	}, nil
}
