package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DecisionOutcome 准入决策结论
type DecisionOutcome string

const (
	DecisionAllow        DecisionOutcome = "ALLOW"
	DecisionAllowWithAck DecisionOutcome = "ALLOW_WITH_ACK"
	DecisionBlock        DecisionOutcome = "BLOCK"
)

// ReasonCode 决策原因码
type ReasonCode string

const (
	ReasonWithinPolicy         ReasonCode = "WithinPolicy"         // 正常放行
	ReasonTierInsufficient     ReasonCode = "TierInsufficient"     // 分级不足
	ReasonReassessmentRequired ReasonCode = "ReassessmentRequired" // 强制重测期内
	ReasonUnlimitedRisk        ReasonCode = "UnlimitedRisk"        // 无上限风险类别，无条件逐项确认
	ReasonPositionSizeExceeded ReasonCode = "PositionSizeExceeded" // 超出分级仓位上限
	ReasonAuditWriteFailure    ReasonCode = "AuditWriteFailure"    // 审计写入失败，失败关闭
)

// DecisionStatus 决策生命周期状态
// 决策本体不可变；确认是追加的不可变修订，不是回溯编辑
type DecisionStatus string

const (
	DecisionStatusFinal        DecisionStatus = "FINAL"        // ALLOW / BLOCK，即时落定
	DecisionStatusPendingAck   DecisionStatus = "PENDING_ACK"  // 待逐项确认
	DecisionStatusAcknowledged DecisionStatus = "ACKNOWLEDGED" // 确认完成
)

// GatingRequest 策略执行准入请求
type GatingRequest struct {
	RequestID string
	UserID    string
	// Strategy 具名策略（可选），存在时由策略目录解析类别
	Strategy string
	Class    StrategyClass
	// PositionFraction 请求仓位占组合比例
	PositionFraction decimal.Decimal
}

// GatingDecision 准入决策记录，写入后不可变
type GatingDecision struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	DecisionID string `gorm:"column:decision_id;type:varchar(32);uniqueIndex;not null" json:"decision_id"`
	RequestID  string `gorm:"column:request_id;type:varchar(64);index;not null" json:"request_id"`
	UserID     string `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`

	Strategy string          `gorm:"column:strategy;type:varchar(64)" json:"strategy,omitempty"`
	Class    StrategyClass   `gorm:"column:class;type:varchar(20);not null" json:"class"`
	Outcome  DecisionOutcome `gorm:"column:outcome;type:varchar(20);not null" json:"outcome"`
	Reason   ReasonCode      `gorm:"column:reason;type:varchar(40);not null" json:"reason"`

	TierAtDecision    Tier            `gorm:"column:tier_at_decision;type:tinyint;not null" json:"tier_at_decision"`
	RequiredTier      Tier            `gorm:"column:required_tier;type:tinyint;not null" json:"required_tier"`
	RequestedFraction decimal.Decimal `gorm:"column:requested_fraction;type:decimal(6,4)" json:"requested_fraction"`
	// SuggestedFraction 超限时随带确认放行给出的建议缩减仓位
	SuggestedFraction decimal.Decimal `gorm:"column:suggested_fraction;type:decimal(6,4)" json:"suggested_fraction"`

	// StrategyDescription 决策时的策略说明快照，向用户解释知识缺口
	StrategyDescription string `gorm:"column:strategy_description;type:varchar(255)" json:"strategy_description,omitempty"`
	// NextSteps 建议的补救动作，JSON 数组；仅拒绝与带确认放行携带
	NextSteps string `gorm:"column:next_steps;type:text" json:"-"`

	Status    DecisionStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Checklist string         `gorm:"column:checklist;type:text" json:"-"`
	// AckItems 确认时逐项勾选的条目快照，JSON 数组
	AckItems       string     `gorm:"column:ack_items;type:text" json:"-"`
	DecidedAt      time.Time  `gorm:"column:decided_at;not null" json:"decided_at"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
}

// TableName 表名
func (GatingDecision) TableName() string {
	return "gating_decisions"
}

// ChecklistItems 反序列化确认清单
func (d *GatingDecision) ChecklistItems() []string {
	if d.Checklist == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(d.Checklist), &items); err != nil {
		return nil
	}
	return items
}

// NextStepItems 反序列化建议动作
func (d *GatingDecision) NextStepItems() []NextStep {
	if d.NextSteps == "" {
		return nil
	}
	var steps []NextStep
	if err := json.Unmarshal([]byte(d.NextSteps), &steps); err != nil {
		return nil
	}
	return steps
}

// NextStep 随拒绝或带确认放行返回的补救动作建议
type NextStep struct {
	Action      string `json:"action"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// BuildNextSteps 针对知识缺口构造建议动作：阅读指南、参加下一级测评、先在模拟盘练习
func BuildNextSteps(label string, current Tier) []NextStep {
	next := "intermediate"
	if current.AtLeast(TierIntermediate) {
		next = "advanced"
	}
	return []NextStep{
		{
			Action:      "learn_more",
			Label:       fmt.Sprintf("Learn about %s", label),
			Description: fmt.Sprintf("Read a guide on how %s works, including real examples and risk/reward tradeoffs.", label),
		},
		{
			Action:      "take_assessment",
			Label:       fmt.Sprintf("Take the %s assessment", next),
			Description: fmt.Sprintf("Complete the %s-level knowledge check (~5 minutes). It gives you a clearer picture of where your gaps are.", next),
		},
		{
			Action:      "paper_trading",
			Label:       "Try it in paper trading first",
			Description: "Practice this strategy on an exact replica of your portfolio with no real money at risk.",
		},
	}
}

// Evaluate 纯决策函数：按决策表对请求求值，不产生副作用
// 求值顺序：
//  1. 强制重测期内任何高于初级权限的请求 -> BLOCK(ReassessmentRequired)
//  2. 无上限风险类别 -> 无论分级 ALLOW_WITH_ACK（逐项确认清单）
//  3. 类别最低分级高于用户分级 -> BLOCK(TierInsufficient)
//  4. 仓位超出分级上限 -> ALLOW_WITH_ACK，附建议缩减仓位
//  5. 其余 -> ALLOW
func Evaluate(rule *PolicyRule, qual *UserQualification, fraction decimal.Decimal) (DecisionOutcome, ReasonCode, decimal.Decimal) {
	if qual.SchedulerState == SchedulerStateRequired &&
		(rule.MinTier > TierBeginner || rule.Class == ClassUnlimitedRisk) {
		return DecisionBlock, ReasonReassessmentRequired, decimal.Zero
	}

	if rule.Class == ClassUnlimitedRisk || rule.RequiresAck {
		return DecisionAllowWithAck, ReasonUnlimitedRisk, decimal.Zero
	}

	if !qual.Tier.AtLeast(rule.MinTier) {
		return DecisionBlock, ReasonTierInsufficient, decimal.Zero
	}

	if fraction.GreaterThan(rule.MaxPositionFraction) {
		return DecisionAllowWithAck, ReasonPositionSizeExceeded, rule.MaxPositionFraction
	}

	return DecisionAllow, ReasonWithinPolicy, decimal.Zero
}

// Decide 对请求求值并构造待提交的决策记录
// def 为具名策略的目录条目，类别直连请求时为 nil
func Decide(decisionID string, rule *PolicyRule, def *StrategyDefinition, qual *UserQualification, req *GatingRequest, now time.Time) *GatingDecision {
	outcome, reason, suggested := Evaluate(rule, qual, req.PositionFraction)

	d := &GatingDecision{
		DecisionID:        decisionID,
		RequestID:         req.RequestID,
		UserID:            req.UserID,
		Strategy:          req.Strategy,
		Class:             rule.Class,
		Outcome:           outcome,
		Reason:            reason,
		TierAtDecision:    qual.Tier,
		RequiredTier:      rule.MinTier,
		RequestedFraction: req.PositionFraction,
		SuggestedFraction: suggested,
		Status:            DecisionStatusFinal,
		DecidedAt:         now,
	}
	// 非无条件放行附带知识缺口解释输入与建议动作
	if outcome != DecisionAllow {
		label := req.Strategy
		if def != nil {
			d.StrategyDescription = def.Description
			label = def.Name
		}
		if label == "" {
			label = strings.ToLower(string(rule.Class))
		}
		if steps, err := json.Marshal(BuildNextSteps(label, qual.Tier)); err == nil {
			d.NextSteps = string(steps)
		}
	}
	if outcome == DecisionAllowWithAck {
		d.Status = DecisionStatusPendingAck
		d.Checklist = rule.Checklist
	}
	return d
}

// Acknowledge 落定一条待确认决策
// 清单必须逐项勾选；确认是追加修订，原字段保持不变
func (d *GatingDecision) Acknowledge(confirmed []string, now time.Time) error {
	if d.Status != DecisionStatusPendingAck {
		return ErrDecisionNotPending
	}
	required := d.ChecklistItems()
	set := make(map[string]bool, len(confirmed))
	for _, item := range confirmed {
		set[item] = true
	}
	for _, item := range required {
		if !set[item] {
			return ErrAcknowledgementIncomplete
		}
	}

	data, err := json.Marshal(confirmed)
	if err != nil {
		return err
	}
	d.AckItems = string(data)
	d.Status = DecisionStatusAcknowledged
	d.AcknowledgedAt = &now
	return nil
}
