// Package application 资质分级与策略准入服务的用例逻辑、DTO、事务边界与重试策略
package application

import (
	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// CategoryScoreDTO 类别得分
type CategoryScoreDTO struct {
	Category    string `json:"category"`
	Correct     int    `json:"correct"`
	Total       int    `json:"total"`
	WeightedPct string `json:"weighted_pct"`
}

// QuestionOutcomeDTO 单题判定
type QuestionOutcomeDTO struct {
	QuestionID   string `json:"question_id"`
	Category     string `json:"category"`
	Selected     string `json:"selected"`
	Correct      bool   `json:"correct"`
	ConceptLabel string `json:"concept_label"`
}

// AssessmentResultDTO 测评结果
type AssessmentResultDTO struct {
	SubmissionID   string               `json:"submission_id"`
	UserID         string               `json:"user_id"`
	CatalogVersion string               `json:"catalog_version"`
	Tier           string               `json:"tier"`
	RawCorrect     int                  `json:"raw_correct"`
	TotalQuestions int                  `json:"total_questions"`
	WeightedPct    string               `json:"weighted_pct"`
	ByCategory     []CategoryScoreDTO   `json:"by_category"`
	Details        []QuestionOutcomeDTO `json:"details"`
	SchedulerState string               `json:"scheduler_state"`
}

// QualificationDTO 用户资质
type QualificationDTO struct {
	UserID             string `json:"user_id"`
	Tier               string `json:"tier"`
	TierEffectiveSince int64  `json:"tier_effective_since"`
	LastSubmissionID   string `json:"last_submission_id,omitempty"`
	CatalogVersion     string `json:"catalog_version,omitempty"`
	OverrideCount      int    `json:"override_count"`
	WarningsIgnored    int    `json:"warnings_ignored"`
	SchedulerState     string `json:"scheduler_state"`
}

// NextStepDTO 决策附带的补救动作建议
type NextStepDTO struct {
	Action      string `json:"action"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// GatingDecisionDTO 准入决策
type GatingDecisionDTO struct {
	DecisionID        string   `json:"decision_id"`
	RequestID         string   `json:"request_id"`
	UserID            string   `json:"user_id"`
	Strategy          string   `json:"strategy,omitempty"`
	Class             string   `json:"class"`
	Outcome           string   `json:"outcome"`
	Reason            string   `json:"reason"`
	TierAtDecision    string   `json:"tier_at_decision"`
	RequiredTier      string   `json:"required_tier"`
	RequestedFraction string   `json:"requested_fraction"`
	SuggestedFraction string   `json:"suggested_fraction,omitempty"`
	Status            string   `json:"status"`
	Checklist         []string `json:"checklist,omitempty"`
	// StrategyDescription 与 NextSteps 解释知识缺口并给出补救动作，仅拒绝与带确认放行携带
	StrategyDescription string        `json:"strategy_description,omitempty"`
	NextSteps           []NextStepDTO `json:"next_steps,omitempty"`
	DecidedAt           int64         `json:"decided_at"`
}

// StrategyAccessDTO 策略目录条目与当前用户的准入标注
type StrategyAccessDTO struct {
	Name        string `json:"name"`
	Class       string `json:"class"`
	Legs        int    `json:"legs"`
	Description string `json:"description"`
	MinTier     string `json:"min_tier"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason"`
}

// AuditRecordDTO 审计记录
type AuditRecordDTO struct {
	Seq        uint64 `json:"seq"`
	EventType  string `json:"event_type"`
	Payload    string `json:"payload"`
	RecordedAt int64  `json:"recorded_at"`
}

func toQualificationDTO(q *domain.UserQualification) *QualificationDTO {
	return &QualificationDTO{
		UserID:             q.UserID,
		Tier:               q.Tier.String(),
		TierEffectiveSince: q.TierEffectiveSince.Unix(),
		LastSubmissionID:   q.LastSubmissionID,
		CatalogVersion:     q.CatalogVersion,
		OverrideCount:      q.OverrideCount,
		WarningsIgnored:    q.WarningsIgnored,
		SchedulerState:     string(q.SchedulerState),
	}
}

func toDecisionDTO(d *domain.GatingDecision) *GatingDecisionDTO {
	dto := &GatingDecisionDTO{
		DecisionID:        d.DecisionID,
		RequestID:         d.RequestID,
		UserID:            d.UserID,
		Strategy:          d.Strategy,
		Class:             string(d.Class),
		Outcome:           string(d.Outcome),
		Reason:            string(d.Reason),
		TierAtDecision:    d.TierAtDecision.String(),
		RequiredTier:      d.RequiredTier.String(),
		RequestedFraction: d.RequestedFraction.String(),
		Status:            string(d.Status),
		DecidedAt:         d.DecidedAt.Unix(),
	}
	if !d.SuggestedFraction.IsZero() {
		dto.SuggestedFraction = d.SuggestedFraction.String()
	}
	if d.Status == domain.DecisionStatusPendingAck {
		dto.Checklist = d.ChecklistItems()
	}
	dto.StrategyDescription = d.StrategyDescription
	for _, step := range d.NextStepItems() {
		dto.NextSteps = append(dto.NextSteps, NextStepDTO{
			Action:      step.Action,
			Label:       step.Label,
			Description: step.Description,
		})
	}
	return dto
}

func toScoreDTO(submissionID, userID string, score *domain.ScoreResult, tier domain.Tier, state domain.SchedulerState) *AssessmentResultDTO {
	byCategory := make([]CategoryScoreDTO, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		cs, ok := score.ByCategory[cat]
		if !ok {
			continue
		}
		byCategory = append(byCategory, CategoryScoreDTO{
			Category:    string(cat),
			Correct:     cs.Correct,
			Total:       cs.Total,
			WeightedPct: cs.WeightedPct.StringFixed(1),
		})
	}
	details := make([]QuestionOutcomeDTO, 0, len(score.Details))
	for _, d := range score.Details {
		details = append(details, QuestionOutcomeDTO{
			QuestionID:   d.QuestionID,
			Category:     string(d.Category),
			Selected:     d.Selected,
			Correct:      d.Correct,
			ConceptLabel: d.ConceptLabel,
		})
	}
	return &AssessmentResultDTO{
		SubmissionID:   submissionID,
		UserID:         userID,
		CatalogVersion: score.CatalogVersion,
		Tier:           tier.String(),
		RawCorrect:     score.RawCorrect,
		TotalQuestions: score.TotalQuestions,
		WeightedPct:    score.WeightedPct.StringFixed(1),
		ByCategory:     byCategory,
		Details:        details,
		SchedulerState: string(state),
	}
}
