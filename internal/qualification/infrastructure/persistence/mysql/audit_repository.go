package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// AuditRepository 审计记录只读仓储
// 写入只发生在资质提交事务内，这里不提供任何修改入口
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建审计仓储
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ListByUser 按序号升序分页读取
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, afterSeq uint64, limit int) ([]*domain.AuditRecord, error) {
	var records []*domain.AuditRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND seq > ?", userID, afterSeq).
		Order("seq asc").
		Limit(limit).
		Find(&records).Error
	return records, err
}
