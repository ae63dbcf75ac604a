package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// QueryService 资质查询服务
type QueryService struct {
	catalogRepo    domain.CatalogRepository
	qualRepo       domain.QualificationRepository
	auditRepo      domain.AuditRepository
	decisionRepo   domain.DecisionRepository
	submissionRepo domain.SubmissionRepository
	cache          QualificationCache
	logger         *slog.Logger
}

// NewQueryService 创建查询服务
func NewQueryService(
	catalogRepo domain.CatalogRepository,
	qualRepo domain.QualificationRepository,
	auditRepo domain.AuditRepository,
	decisionRepo domain.DecisionRepository,
	submissionRepo domain.SubmissionRepository,
	cache QualificationCache,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		catalogRepo:    catalogRepo,
		qualRepo:       qualRepo,
		auditRepo:      auditRepo,
		decisionRepo:   decisionRepo,
		submissionRepo: submissionRepo,
		cache:          cache,
		logger:         logger,
	}
}

// GetQualification 查询用户资质（缓存旁路读）
func (s *QueryService) GetQualification(ctx context.Context, userID string) (*QualificationDTO, error) {
	qual, err := s.loadQualification(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toQualificationDTO(qual), nil
}

// GetScoreBreakdown 重算用户最近一次测评的评分明细
// 评分结果不独立存储，始终可由答卷 + 题库版本复现
func (s *QueryService) GetScoreBreakdown(ctx context.Context, userID string) (*AssessmentResultDTO, error) {
	qual, err := s.loadQualification(ctx, userID)
	if err != nil {
		return nil, err
	}
	if qual.LastSubmissionID == "" {
		return nil, domain.ErrQualificationNotFound
	}

	submission, err := s.submissionRepo.GetBySubmissionID(ctx, qual.LastSubmissionID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalogRepo.GetByVersion(ctx, submission.CatalogVersion)
	if err != nil {
		return nil, err
	}
	score, err := domain.ScoreSubmission(catalog, submission)
	if err != nil {
		return nil, err
	}
	return toScoreDTO(submission.SubmissionID, userID, score, qual.Tier, qual.SchedulerState), nil
}

// ListStrategies 列出最新题库的策略目录，并按当前用户资质标注准入结论
func (s *QueryService) ListStrategies(ctx context.Context, userID string) ([]*StrategyAccessDTO, error) {
	catalog, err := s.catalogRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}
	qual, err := s.loadQualification(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrQualificationNotFound) {
			return nil, err
		}
		// 未测评用户按初级标注
		qual = domain.NewUserQualification(userID, catalog.Version.PublishedAt)
	}

	out := make([]*StrategyAccessDTO, 0, len(catalog.Strategies))
	for _, def := range catalog.Strategies {
		rule := catalog.PolicyFor(def.Class)
		if rule == nil {
			continue
		}
		outcome, reason, _ := domain.Evaluate(rule, qual, decimal.Zero)
		out = append(out, &StrategyAccessDTO{
			Name:        def.Name,
			Class:       string(def.Class),
			Legs:        def.Legs,
			Description: def.Description,
			MinTier:     rule.MinTier.String(),
			Outcome:     string(outcome),
			Reason:      string(reason),
		})
	}
	return out, nil
}

// ListAudit 分页读取用户审计记录，按序号升序
func (s *QueryService) ListAudit(ctx context.Context, userID string, afterSeq uint64, limit int) ([]*AuditRecordDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	records, err := s.auditRepo.ListByUser(ctx, userID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*AuditRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, &AuditRecordDTO{
			Seq:        r.Seq,
			EventType:  string(r.EventType),
			Payload:    r.Payload,
			RecordedAt: r.RecordedAt.Unix(),
		})
	}
	return out, nil
}

// GetDecision 查询准入决策
func (s *QueryService) GetDecision(ctx context.Context, decisionID string) (*GatingDecisionDTO, error) {
	decision, err := s.decisionRepo.GetByDecisionID(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	return toDecisionDTO(decision), nil
}

// GetCatalog 查询题库版本快照
func (s *QueryService) GetCatalog(ctx context.Context, version string) (*domain.Catalog, error) {
	return s.catalogRepo.GetByVersion(ctx, version)
}

// loadQualification 缓存旁路读：先缓存，未命中回源并回填
func (s *QueryService) loadQualification(ctx context.Context, userID string) (*domain.UserQualification, error) {
	if s.cache != nil {
		if qual, err := s.cache.Get(ctx, userID); err == nil && qual != nil {
			return qual, nil
		}
	}
	qual, err := s.qualRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, qual); err != nil {
			s.logger.WarnContext(ctx, "failed to backfill qualification cache",
				"user_id", userID,
				"error", err)
		}
	}
	return qual, nil
}
