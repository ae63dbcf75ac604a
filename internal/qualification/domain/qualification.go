package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"
)

// UserQualification 用户资质聚合根
// 每用户有且仅有一条在线记录；变更采用先追加历史快照再换入新值，旧记录永不原地修改。
// version 列做乐观锁，保证同一用户的写入串行；audit_seq 随同一次更新推进，
// 因此每用户审计序号严格递增且无空洞。
type UserQualification struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID             string    `gorm:"column:user_id;type:varchar(36);uniqueIndex;not null" json:"user_id"`
	Tier               Tier      `gorm:"column:tier;type:tinyint;not null" json:"tier"`
	TierEffectiveSince time.Time `gorm:"column:tier_effective_since;not null" json:"tier_effective_since"`
	LastSubmissionID   string    `gorm:"column:last_submission_id;type:varchar(32)" json:"last_submission_id"`
	CatalogVersion     string    `gorm:"column:catalog_version;type:varchar(32)" json:"catalog_version"`

	OverrideCount   int `gorm:"column:override_count;not null" json:"override_count"`
	WarningsIgnored int `gorm:"column:warnings_ignored;not null" json:"warnings_ignored"`

	SchedulerState  SchedulerState `gorm:"column:scheduler_state;type:varchar(32);not null" json:"scheduler_state"`
	FiredTriggers   string         `gorm:"column:fired_triggers;type:varchar(255)" json:"-"`
	ConsecutiveAcks int            `gorm:"column:consecutive_acks;not null" json:"-"`
	AckWindowStart  *time.Time     `gorm:"column:ack_window_start" json:"-"`

	AuditSeq uint64 `gorm:"column:audit_seq;not null" json:"-"`
	Version  uint64 `gorm:"column:version;not null" json:"-"`

	domainEvents []DomainEvent                `gorm:"-" json:"-"`
	machine      *fsm.Machine[string, string] `gorm:"-" json:"-"`
}

// TableName 表名
func (UserQualification) TableName() string {
	return "user_qualifications"
}

// NewUserQualification 创建用户资质记录，未测评用户按初级、资质有效处理
func NewUserQualification(userID string, now time.Time) *UserQualification {
	q := &UserQualification{
		UserID:             userID,
		Tier:               TierBeginner,
		TierEffectiveSince: now,
		SchedulerState:     SchedulerStateCurrent,
		Version:            1,
		domainEvents:       make([]DomainEvent, 0),
	}
	q.initFSM()
	return q
}

func (q *UserQualification) initFSM() {
	m := fsm.NewMachine[string, string](string(q.SchedulerState))
	m.AddTransition(string(SchedulerStateCurrent), schedulerEventSuggest, string(SchedulerStateSuggested))
	m.AddTransition(string(SchedulerStateSuggested), schedulerEventRequire, string(SchedulerStateRequired))
	m.AddTransition(string(SchedulerStateCurrent), schedulerEventRequire, string(SchedulerStateRequired))
	m.AddTransition(string(SchedulerStateCurrent), schedulerEventAssess, string(SchedulerStateCurrent))
	m.AddTransition(string(SchedulerStateSuggested), schedulerEventAssess, string(SchedulerStateCurrent))
	m.AddTransition(string(SchedulerStateRequired), schedulerEventAssess, string(SchedulerStateCurrent))
	q.machine = m
}

// InitFSM 从当前持久化状态重建状态机；仓储加载后 machine 为空，重建保证两者一致
func (q *UserQualification) InitFSM() {
	q.initFSM()
}

// ApplyScore 应用一次完成的测评：定级、清除重测状态、重置触发记忆
// 分级只会通过完成测评上调，时间流逝或交易表现永不自动升级。
func (q *UserQualification) ApplyScore(ctx context.Context, submissionID string, score *ScoreResult, tier Tier, now time.Time) error {
	q.InitFSM()
	previous := q.Tier

	if err := q.machine.Trigger(ctx, schedulerEventAssess); err != nil {
		return err
	}
	stateChanged := q.SchedulerState != SchedulerStateCurrent
	fromState := q.SchedulerState
	q.SchedulerState = SchedulerStateCurrent
	q.FiredTriggers = ""
	q.ConsecutiveAcks = 0
	q.AckWindowStart = nil
	q.LastSubmissionID = submissionID
	q.CatalogVersion = score.CatalogVersion

	if tier != previous {
		q.Tier = tier
		q.TierEffectiveSince = now
	}

	q.addEvent(&UserClassifiedEvent{
		UserID:         q.UserID,
		SubmissionID:   submissionID,
		CatalogVersion: score.CatalogVersion,
		PreviousTier:   previous.String(),
		Tier:           tier.String(),
		WeightedPct:    score.WeightedPct,
		Timestamp:      now,
	})
	if stateChanged {
		q.addEvent(&ReassessmentStateChangedEvent{
			UserID:    q.UserID,
			From:      string(fromState),
			To:        string(SchedulerStateCurrent),
			Trigger:   "ASSESSMENT_COMPLETED",
			Timestamp: now,
		})
	}
	return nil
}

// ForceDowngrade 非评分支撑的强制降级（合规协作方指令），转入强制重测
func (q *UserQualification) ForceDowngrade(ctx context.Context, to Tier, reason string, now time.Time) error {
	q.InitFSM()
	previous := q.Tier
	if to >= previous {
		to = TierBeginner
	}
	fromState := q.SchedulerState
	if q.SchedulerState != SchedulerStateRequired {
		if err := q.machine.Trigger(ctx, schedulerEventRequire); err != nil {
			return err
		}
		q.SchedulerState = SchedulerStateRequired
	}

	q.Tier = to
	q.TierEffectiveSince = now

	q.addEvent(&UserClassifiedEvent{
		UserID:       q.UserID,
		PreviousTier: previous.String(),
		Tier:         to.String(),
		WeightedPct:  decimal.Zero,
		Forced:       true,
		Reason:       reason,
		Timestamp:    now,
	})
	if fromState != SchedulerStateRequired {
		q.addEvent(&ReassessmentStateChangedEvent{
			UserID:    q.UserID,
			From:      string(fromState),
			To:        string(SchedulerStateRequired),
			Trigger:   string(TriggerComplianceFlag),
			Timestamp: now,
		})
	}
	return nil
}

// RecordTrigger 记录一次重测触发条件，返回状态是否发生迁移
// 首个触发：资质有效 -> 建议重测；建议重测期间出现第二个独立触发 -> 强制重测；
// 合规标记属硬触发，任何状态直达强制重测。同类触发重复出现不叠加。
func (q *UserQualification) RecordTrigger(ctx context.Context, kind TriggerKind, now time.Time) (bool, error) {
	q.InitFSM()
	fired := parseTriggers(q.FiredTriggers)

	if kind == TriggerComplianceFlag {
		if q.SchedulerState == SchedulerStateRequired {
			return false, nil
		}
		from := q.SchedulerState
		if err := q.machine.Trigger(ctx, schedulerEventRequire); err != nil {
			return false, err
		}
		q.SchedulerState = SchedulerStateRequired
		if !containsTrigger(fired, kind) {
			fired = append(fired, kind)
			q.FiredTriggers = joinTriggers(fired)
		}
		q.addEvent(&ReassessmentStateChangedEvent{
			UserID: q.UserID, From: string(from), To: string(SchedulerStateRequired),
			Trigger: string(kind), Timestamp: now,
		})
		return true, nil
	}

	if containsTrigger(fired, kind) || q.SchedulerState == SchedulerStateRequired {
		return false, nil
	}
	fired = append(fired, kind)
	q.FiredTriggers = joinTriggers(fired)

	from := q.SchedulerState
	switch q.SchedulerState {
	case SchedulerStateCurrent:
		if err := q.machine.Trigger(ctx, schedulerEventSuggest); err != nil {
			return false, err
		}
		q.SchedulerState = SchedulerStateSuggested
	case SchedulerStateSuggested:
		if err := q.machine.Trigger(ctx, schedulerEventRequire); err != nil {
			return false, err
		}
		q.SchedulerState = SchedulerStateRequired
	default:
		return false, nil
	}

	q.addEvent(&ReassessmentStateChangedEvent{
		UserID: q.UserID, From: string(from), To: string(q.SchedulerState),
		Trigger: string(kind), Timestamp: now,
	})
	return true, nil
}

// EvaluateTimeTrigger 惰性评估时间触发条件，在准入与查询路径进入时调用
func (q *UserQualification) EvaluateTimeTrigger(ctx context.Context, now time.Time) (bool, error) {
	if now.Sub(q.TierEffectiveSince) < ReassessmentInterval {
		return false, nil
	}
	return q.RecordTrigger(ctx, TriggerElapsedTime, now)
}

// RegisterDecisionOutcome 将一次准入决策计入行为统计
// 滚动窗口内连续 ConsecutiveAckLimit 次带确认放行触发重复越权模式；
// 普通放行重置窗口。返回是否引发状态迁移。
func (q *UserQualification) RegisterDecisionOutcome(ctx context.Context, outcome DecisionOutcome, now time.Time) (bool, error) {
	switch outcome {
	case DecisionAllow:
		q.ConsecutiveAcks = 0
		q.AckWindowStart = nil
		return false, nil
	case DecisionAllowWithAck:
		if q.AckWindowStart == nil || now.Sub(*q.AckWindowStart) > OverrideWindow {
			start := now
			q.AckWindowStart = &start
			q.ConsecutiveAcks = 0
		}
		q.ConsecutiveAcks++
		if q.ConsecutiveAcks >= ConsecutiveAckLimit {
			return q.RecordTrigger(ctx, TriggerRepeatedOverride, now)
		}
		return false, nil
	default:
		return false, nil
	}
}

// RegisterAcknowledgement 确认清单通过后的计数
func (q *UserQualification) RegisterAcknowledgement() {
	q.OverrideCount++
}

// RegisterWarningIgnored 收到警示后放弃确认的计数（UI 协作方回报）
func (q *UserQualification) RegisterWarningIgnored() {
	q.WarningsIgnored++
}

// NextAuditSeq 分配下一个审计序号，随本次状态更新一并提交
func (q *UserQualification) NextAuditSeq() uint64 {
	q.AuditSeq++
	return q.AuditSeq
}

// Snapshot 生成换入新值前的历史快照
func (q *UserQualification) Snapshot(now time.Time) *QualificationHistory {
	return &QualificationHistory{
		UserID:             q.UserID,
		Tier:               q.Tier,
		TierEffectiveSince: q.TierEffectiveSince,
		LastSubmissionID:   q.LastSubmissionID,
		CatalogVersion:     q.CatalogVersion,
		OverrideCount:      q.OverrideCount,
		WarningsIgnored:    q.WarningsIgnored,
		SchedulerState:     q.SchedulerState,
		RecordVersion:      q.Version,
		SupersededAt:       now,
	}
}

func (q *UserQualification) addEvent(event DomainEvent) {
	q.domainEvents = append(q.domainEvents, event)
}

// GetDomainEvents 获取未发布的领域事件
func (q *UserQualification) GetDomainEvents() []DomainEvent {
	return q.domainEvents
}

// ClearDomainEvents 清空领域事件
func (q *UserQualification) ClearDomainEvents() {
	q.domainEvents = make([]DomainEvent, 0)
}

// QualificationHistory 资质历史快照，只追加
type QualificationHistory struct {
	ID                 uint           `gorm:"primarykey" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UserID             string         `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	Tier               Tier           `gorm:"column:tier;type:tinyint;not null" json:"tier"`
	TierEffectiveSince time.Time      `gorm:"column:tier_effective_since;not null" json:"tier_effective_since"`
	LastSubmissionID   string         `gorm:"column:last_submission_id;type:varchar(32)" json:"last_submission_id"`
	CatalogVersion     string         `gorm:"column:catalog_version;type:varchar(32)" json:"catalog_version"`
	OverrideCount      int            `gorm:"column:override_count;not null" json:"override_count"`
	WarningsIgnored    int            `gorm:"column:warnings_ignored;not null" json:"warnings_ignored"`
	SchedulerState     SchedulerState `gorm:"column:scheduler_state;type:varchar(32);not null" json:"scheduler_state"`
	RecordVersion      uint64         `gorm:"column:record_version;not null" json:"record_version"`
	SupersededAt       time.Time      `gorm:"column:superseded_at;not null" json:"superseded_at"`
}

// TableName 表名
func (QualificationHistory) TableName() string {
	return "user_qualification_history"
}
