package domain

import (
	"encoding/json"
	"time"
)

// AuditEventType 审计事件类别
type AuditEventType string

const (
	AuditEventClassification     AuditEventType = "Classification"
	AuditEventGatingDecision     AuditEventType = "GatingDecision"
	AuditEventOverrideAccepted   AuditEventType = "OverrideAccepted"
	AuditEventReassessmentChange AuditEventType = "ReassessmentStateChanged"
)

// AuditRecord 审计记录，只追加，写入后永不更新或删除
// (user_id, seq) 唯一；seq 由资质记录的 audit_seq 在同一事务内分配，
// 单写者串行化保证严格递增且无空洞。
type AuditRecord struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	UserID    string         `gorm:"column:user_id;type:varchar(36);uniqueIndex:uk_user_seq;not null" json:"user_id"`
	Seq       uint64         `gorm:"column:seq;uniqueIndex:uk_user_seq;not null" json:"seq"`
	EventType AuditEventType `gorm:"column:event_type;type:varchar(40);not null" json:"event_type"`
	// Payload 决策/定级时刻的完整快照，JSON
	Payload    string    `gorm:"column:payload;type:text;not null" json:"payload"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null" json:"recorded_at"`
}

// TableName 表名
func (AuditRecord) TableName() string {
	return "audit_records"
}

// NewAuditRecord 构造审计记录，payload 序列化失败视为审计写入失败
func NewAuditRecord(userID string, seq uint64, eventType AuditEventType, payload any, now time.Time) (*AuditRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrAuditWriteFailure
	}
	return &AuditRecord{
		UserID:     userID,
		Seq:        seq,
		EventType:  eventType,
		Payload:    string(data),
		RecordedAt: now,
	}, nil
}
