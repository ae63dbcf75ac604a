package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// DecisionRepository 准入决策只读仓储；写入随资质提交事务落库
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository 创建决策仓储
func NewDecisionRepository(db *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// GetByDecisionID 按决策 ID 读取
func (r *DecisionRepository) GetByDecisionID(ctx context.Context, decisionID string) (*domain.GatingDecision, error) {
	var decision domain.GatingDecision
	if err := r.db.WithContext(ctx).Where("decision_id = ?", decisionID).First(&decision).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDecisionNotFound
		}
		return nil, err
	}
	return &decision, nil
}

// ListByUser 按用户读取最近的决策，新者在前
func (r *DecisionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.GatingDecision, error) {
	var decisions []*domain.GatingDecision
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("decided_at desc").
		Limit(limit).
		Find(&decisions).Error
	return decisions, err
}
