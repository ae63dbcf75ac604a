// Package mysql 资质服务的 MySQL 仓储层，基于 GORM
package mysql

import (
	"context"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// QualificationRepository 用户资质仓储实现
// 状态更新、历史快照、答卷、决策、审计记录与 Outbox 事件在同一事务内提交
type QualificationRepository struct {
	db        *gorm.DB
	publisher domain.EventPublisher
}

// NewQualificationRepository 创建用户资质仓储
func NewQualificationRepository(db *gorm.DB, publisher domain.EventPublisher) *QualificationRepository {
	return &QualificationRepository{db: db, publisher: publisher}
}

// GetByUserID 加载在线资质记录
func (r *QualificationRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserQualification, error) {
	var qual domain.UserQualification
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&qual).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQualificationNotFound
		}
		return nil, err
	}
	return &qual, nil
}

// Commit 原子提交一次资质变更
// 乐观锁：UPDATE 带期望版本做谓词，影响行数为零即并发冲突；
// 新建记录的唯一键冲突同样按并发冲突上报，由应用层重试后走更新路径。
func (r *QualificationRepository) Commit(ctx context.Context, m *domain.QualificationMutation) error {
	q := m.Qualification
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.ExpectedVersion == 0 {
			q.Version = 1
			if err := tx.Create(q).Error; err != nil {
				if isDuplicateKey(err) {
					return domain.ErrConcurrentModification
				}
				return err
			}
		} else {
			q.Version = m.ExpectedVersion + 1
			res := tx.Model(&domain.UserQualification{}).
				Where("user_id = ? AND version = ?", q.UserID, m.ExpectedVersion).
				Updates(map[string]any{
					"tier":                 q.Tier,
					"tier_effective_since": q.TierEffectiveSince,
					"last_submission_id":   q.LastSubmissionID,
					"catalog_version":      q.CatalogVersion,
					"override_count":       q.OverrideCount,
					"warnings_ignored":     q.WarningsIgnored,
					"scheduler_state":      q.SchedulerState,
					"fired_triggers":       q.FiredTriggers,
					"consecutive_acks":     q.ConsecutiveAcks,
					"ack_window_start":     q.AckWindowStart,
					"audit_seq":            q.AuditSeq,
					"version":              q.Version,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrConcurrentModification
			}
		}

		if m.History != nil {
			if err := tx.Create(m.History).Error; err != nil {
				return err
			}
		}
		if m.Submission != nil {
			if err := tx.Create(m.Submission).Error; err != nil {
				return err
			}
		}
		if m.Decision != nil {
			if err := saveDecision(tx, m.Decision); err != nil {
				return err
			}
		}
		for _, record := range m.AuditRecords {
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		for _, event := range m.Events {
			if err := r.publisher.PublishInTx(ctx, tx, event.EventName(), q.UserID, event); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListHistory 读取资质历史快照，新者在前
func (r *QualificationRepository) ListHistory(ctx context.Context, userID string, limit int) ([]*domain.QualificationHistory, error) {
	var history []*domain.QualificationHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("superseded_at desc").
		Limit(limit).
		Find(&history).Error
	return history, err
}

// isDuplicateKey 识别唯一键冲突
// GORM 仅在开启 TranslateError 时给出 ErrDuplicatedKey，驱动原生的 1062 也要接住
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *gomysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// saveDecision 新决策插入；确认修订只补确认字段，决策本体不动
func saveDecision(tx *gorm.DB, d *domain.GatingDecision) error {
	if d.ID == 0 {
		return tx.Create(d).Error
	}
	return tx.Model(&domain.GatingDecision{}).
		Where("decision_id = ?", d.DecisionID).
		Updates(map[string]any{
			"status":          d.Status,
			"ack_items":       d.AckItems,
			"acknowledged_at": d.AcknowledgedAt,
		}).Error
}
