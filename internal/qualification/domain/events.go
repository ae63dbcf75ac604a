package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DomainEvent 领域事件
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// UserClassifiedEvent 用户定级事件（含强制降级）
type UserClassifiedEvent struct {
	UserID         string          `json:"user_id"`
	SubmissionID   string          `json:"submission_id,omitempty"`
	CatalogVersion string          `json:"catalog_version,omitempty"`
	PreviousTier   string          `json:"previous_tier"`
	Tier           string          `json:"tier"`
	WeightedPct    decimal.Decimal `json:"weighted_pct"`
	Forced         bool            `json:"forced"`
	Reason         string          `json:"reason,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (e *UserClassifiedEvent) EventName() string     { return "qualification.classified" }
func (e *UserClassifiedEvent) OccurredAt() time.Time { return e.Timestamp }

// GatingDecidedEvent 准入决策事件
type GatingDecidedEvent struct {
	DecisionID string    `json:"decision_id"`
	RequestID  string    `json:"request_id"`
	UserID     string    `json:"user_id"`
	Strategy   string    `json:"strategy,omitempty"`
	Class      string    `json:"class"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	Tier       string    `json:"tier"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *GatingDecidedEvent) EventName() string     { return "qualification.gating.decided" }
func (e *GatingDecidedEvent) OccurredAt() time.Time { return e.Timestamp }

// OverrideAcceptedEvent 确认清单通过、决策落定事件
type OverrideAcceptedEvent struct {
	DecisionID string    `json:"decision_id"`
	UserID     string    `json:"user_id"`
	Class      string    `json:"class"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *OverrideAcceptedEvent) EventName() string     { return "qualification.gating.override_accepted" }
func (e *OverrideAcceptedEvent) OccurredAt() time.Time { return e.Timestamp }

// ReassessmentStateChangedEvent 重测状态机迁移事件
type ReassessmentStateChangedEvent struct {
	UserID    string    `json:"user_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ReassessmentStateChangedEvent) EventName() string {
	return "qualification.reassessment.state_changed"
}
func (e *ReassessmentStateChangedEvent) OccurredAt() time.Time { return e.Timestamp }

// CatalogPublishedEvent 题库版本发布事件
type CatalogPublishedEvent struct {
	Version   string    `json:"version"`
	Questions int       `json:"questions"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *CatalogPublishedEvent) EventName() string     { return "qualification.catalog.published" }
func (e *CatalogPublishedEvent) OccurredAt() time.Time { return e.Timestamp }

// EventPublisher 事件发布者端口，infrastructure 提供 Outbox 实现
type EventPublisher interface {
	// Publish 发布一个普通事件（非事务内）
	Publish(ctx context.Context, eventName string, key string, event any) error
	// PublishInTx 在既有数据库事务内写入事件，核心用于 Outbox 模式
	PublishInTx(ctx context.Context, tx any, eventName string, key string, event any) error
}
