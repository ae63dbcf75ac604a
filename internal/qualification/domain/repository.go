package domain

import "context"

// CatalogRepository 题库/策略目录仓储，版本一经发布即只读
type CatalogRepository interface {
	// Publish 发布新版本，版本号已存在返回 ErrCatalogVersionExists
	Publish(ctx context.Context, catalog *Catalog) error
	// GetByVersion 按版本取完整快照，不存在返回 ErrUnknownCatalogVersion
	GetByVersion(ctx context.Context, version string) (*Catalog, error)
	// GetLatest 取最新发布版本，准入路径使用
	GetLatest(ctx context.Context) (*Catalog, error)
}

// QualificationMutation 一次资质状态变更要原子提交的全部内容
// 状态更新与其审计记录同生共死：没有无状态变更的审计，也没有无审计的状态变更
type QualificationMutation struct {
	Qualification *UserQualification
	// ExpectedVersion 乐观锁期望版本；0 表示新建记录
	ExpectedVersion uint64
	History         *QualificationHistory
	Submission      *AssessmentSubmission
	Decision        *GatingDecision
	AuditRecords    []*AuditRecord
	Events          []DomainEvent
}

// QualificationRepository 用户资质仓储
type QualificationRepository interface {
	GetByUserID(ctx context.Context, userID string) (*UserQualification, error)
	// Commit 原子提交一次变更；版本冲突返回 ErrConcurrentModification
	Commit(ctx context.Context, mutation *QualificationMutation) error
	ListHistory(ctx context.Context, userID string, limit int) ([]*QualificationHistory, error)
}

// DecisionRepository 准入决策读取
type DecisionRepository interface {
	GetByDecisionID(ctx context.Context, decisionID string) (*GatingDecision, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*GatingDecision, error)
}

// AuditRepository 审计记录读取；写入只发生在 QualificationRepository.Commit 内
type AuditRepository interface {
	ListByUser(ctx context.Context, userID string, afterSeq uint64, limit int) ([]*AuditRecord, error)
}

// SubmissionRepository 答卷读取；写入随 Commit 落库，保证评分可复现
type SubmissionRepository interface {
	GetBySubmissionID(ctx context.Context, submissionID string) (*AssessmentSubmission, error)
}
