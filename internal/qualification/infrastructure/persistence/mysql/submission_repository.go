package mysql

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// SubmissionRepository 答卷只读仓储；写入随资质提交事务落库
type SubmissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository 创建答卷仓储
func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// GetBySubmissionID 按答卷 ID 读取并还原答案映射
func (r *SubmissionRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.AssessmentSubmission, error) {
	var submission domain.AssessmentSubmission
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQualificationNotFound
		}
		return nil, err
	}
	if submission.AnswersJSON != "" {
		if err := json.Unmarshal([]byte(submission.AnswersJSON), &submission.Answers); err != nil {
			return nil, err
		}
	}
	return &submission, nil
}
