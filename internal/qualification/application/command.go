package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// maxCommitRetries 乐观锁冲突的最大透明重试次数，超出后向调用方暴露冲突
const maxCommitRetries = 3

// QualificationCache 资质读缓存端口，写路径负责失效
type QualificationCache interface {
	Get(ctx context.Context, userID string) (*domain.UserQualification, error)
	Set(ctx context.Context, qualification *domain.UserQualification) error
	Invalidate(ctx context.Context, userID string) error
}

// CommandService 资质命令服务
type CommandService struct {
	catalogRepo  domain.CatalogRepository
	qualRepo     domain.QualificationRepository
	decisionRepo domain.DecisionRepository
	publisher    domain.EventPublisher
	cache        QualificationCache
	logger       *slog.Logger
}

// NewCommandService 创建命令服务
func NewCommandService(
	catalogRepo domain.CatalogRepository,
	qualRepo domain.QualificationRepository,
	decisionRepo domain.DecisionRepository,
	publisher domain.EventPublisher,
	cache QualificationCache,
	logger *slog.Logger,
) *CommandService {
	return &CommandService{
		catalogRepo:  catalogRepo,
		qualRepo:     qualRepo,
		decisionRepo: decisionRepo,
		publisher:    publisher,
		cache:        cache,
		logger:       logger,
	}
}

// SubmitAssessmentCommand 提交测评命令
type SubmitAssessmentCommand struct {
	UserID         string
	CatalogVersion string
	Answers        map[string]string
}

// SubmitAssessment 提交测评：评分、定级、原子提交资质与审计
func (s *CommandService) SubmitAssessment(ctx context.Context, cmd SubmitAssessmentCommand) (*AssessmentResultDTO, error) {
	start := time.Now()

	catalog, err := s.catalogRepo.GetByVersion(ctx, cmd.CatalogVersion)
	if err != nil {
		return nil, err
	}

	answersJSON, err := json.Marshal(cmd.Answers)
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	submission := &domain.AssessmentSubmission{
		SubmissionID:   fmt.Sprintf("SUB%d", idgen.GenID()),
		UserID:         cmd.UserID,
		CatalogVersion: cmd.CatalogVersion,
		AnswersJSON:    string(answersJSON),
		Answers:        cmd.Answers,
		SubmittedAt:    start,
	}

	// 评分与定级是纯函数，放在重试循环外
	score, err := domain.ScoreSubmission(catalog, submission)
	if err != nil {
		return nil, err
	}
	tier := domain.Classify(catalog.Version, score)

	var qual *domain.UserQualification
	err = s.withRetry(ctx, func() error {
		now := time.Now()
		loaded, expected, history, err := s.loadOrCreate(ctx, cmd.UserID, now)
		if err != nil {
			return err
		}
		qual = loaded

		if err := qual.ApplyScore(ctx, submission.SubmissionID, score, tier, now); err != nil {
			return err
		}

		payload := toScoreDTO(submission.SubmissionID, cmd.UserID, score, tier, qual.SchedulerState)
		records, err := s.auditFromEvents(qual, payload, now)
		if err != nil {
			return err
		}

		return s.qualRepo.Commit(ctx, &domain.QualificationMutation{
			Qualification:   qual,
			ExpectedVersion: expected,
			History:         history,
			Submission:      submission,
			AuditRecords:    records,
			Events:          qual.GetDomainEvents(),
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "assessment submission failed",
			"user_id", cmd.UserID,
			"catalog_version", cmd.CatalogVersion,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}
	qual.ClearDomainEvents()
	s.invalidate(ctx, cmd.UserID)

	s.logger.InfoContext(ctx, "assessment scored",
		"user_id", cmd.UserID,
		"submission_id", submission.SubmissionID,
		"tier", tier.String(),
		"weighted_pct", score.WeightedPct.StringFixed(1),
		"duration", time.Since(start))

	return toScoreDTO(submission.SubmissionID, cmd.UserID, score, tier, qual.SchedulerState), nil
}

// CheckGatingCommand 策略准入检查命令
type CheckGatingCommand struct {
	RequestID string
	UserID    string
	// Strategy 具名策略，与 Class 二选一；同时给出时以策略目录解析结果为准
	Strategy         string
	Class            string
	PositionFraction string
}

// CheckGating 策略准入检查
// 决策先于返回写入审计；审计提交失败则整体失败关闭，返回 BLOCK 而非默认放行。
func (s *CommandService) CheckGating(ctx context.Context, cmd CheckGatingCommand) (*GatingDecisionDTO, error) {
	start := time.Now()

	fraction := decimal.Zero
	if cmd.PositionFraction != "" {
		var err error
		fraction, err = decimal.NewFromString(cmd.PositionFraction)
		if err != nil {
			return nil, fmt.Errorf("invalid position fraction: %w", err)
		}
	}

	catalog, err := s.catalogRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	rule, def, err := resolvePolicy(catalog, cmd.Strategy, cmd.Class)
	if err != nil {
		return nil, err
	}
	strategyName := ""
	if def != nil {
		strategyName = def.Name
	}

	req := &domain.GatingRequest{
		RequestID:        cmd.RequestID,
		UserID:           cmd.UserID,
		Strategy:         strategyName,
		Class:            rule.Class,
		PositionFraction: fraction,
	}
	decisionID := fmt.Sprintf("GD%d", idgen.GenID())

	var decision *domain.GatingDecision
	err = s.withRetry(ctx, func() error {
		now := time.Now()
		qual, expected, history, err := s.loadOrCreate(ctx, cmd.UserID, now)
		if err != nil {
			return err
		}

		// 时间触发条件在准入路径入口惰性评估
		if _, err := qual.EvaluateTimeTrigger(ctx, now); err != nil {
			return err
		}

		decision = domain.Decide(decisionID, rule, def, qual, req, now)
		if _, err := qual.RegisterDecisionOutcome(ctx, decision.Outcome, now); err != nil {
			return err
		}

		decidedEvent := &domain.GatingDecidedEvent{
			DecisionID: decision.DecisionID,
			RequestID:  decision.RequestID,
			UserID:     decision.UserID,
			Strategy:   decision.Strategy,
			Class:      string(decision.Class),
			Outcome:    string(decision.Outcome),
			Reason:     string(decision.Reason),
			Tier:       decision.TierAtDecision.String(),
			Timestamp:  now,
		}

		seq := qual.NextAuditSeq()
		decisionRecord, err := domain.NewAuditRecord(cmd.UserID, seq, domain.AuditEventGatingDecision, decision, now)
		if err != nil {
			return err
		}
		records := []*domain.AuditRecord{decisionRecord}
		stateRecords, err := s.auditFromEvents(qual, nil, now)
		if err != nil {
			return err
		}
		records = append(records, stateRecords...)

		events := append(qual.GetDomainEvents(), decidedEvent)
		return s.qualRepo.Commit(ctx, &domain.QualificationMutation{
			Qualification:   qual,
			ExpectedVersion: expected,
			History:         history,
			Decision:        decision,
			AuditRecords:    records,
			Events:          events,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, err
		}
		// 审计无法落库：失败关闭，拒绝而不是默认放行
		s.logger.ErrorContext(ctx, "gating decision could not be audited, failing closed",
			"user_id", cmd.UserID,
			"request_id", cmd.RequestID,
			"error", err)
		blocked := &GatingDecisionDTO{
			DecisionID:     decisionID,
			RequestID:      cmd.RequestID,
			UserID:         cmd.UserID,
			Strategy:       strategyName,
			Class:          string(rule.Class),
			Outcome:        string(domain.DecisionBlock),
			Reason:         string(domain.ReasonAuditWriteFailure),
			TierAtDecision: domain.TierBeginner.String(),
			RequiredTier:   rule.MinTier.String(),
			Status:         string(domain.DecisionStatusFinal),
			DecidedAt:      time.Now().Unix(),
		}
		return blocked, fmt.Errorf("%w: %v", domain.ErrAuditWriteFailure, err)
	}
	s.invalidate(ctx, cmd.UserID)

	s.logger.InfoContext(ctx, "gating decided",
		"user_id", cmd.UserID,
		"decision_id", decision.DecisionID,
		"class", string(decision.Class),
		"outcome", string(decision.Outcome),
		"reason", string(decision.Reason),
		"duration", time.Since(start))

	return toDecisionDTO(decision), nil
}

// AcknowledgeCommand 确认清单提交命令
type AcknowledgeCommand struct {
	DecisionID     string
	UserID         string
	ConfirmedItems []string
}

// Acknowledge 落定一条待确认决策
// 确认本身是追加的不可变修订：原决策字段不动，只补确认快照与时间
func (s *CommandService) Acknowledge(ctx context.Context, cmd AcknowledgeCommand) (*GatingDecisionDTO, error) {
	var decision *domain.GatingDecision
	err := s.withRetry(ctx, func() error {
		now := time.Now()

		// 冲突重试需要重新加载决策，避免把上一轮的内存状态带入
		loaded, err := s.decisionRepo.GetByDecisionID(ctx, cmd.DecisionID)
		if err != nil {
			return err
		}
		if loaded.UserID != cmd.UserID {
			return domain.ErrDecisionNotFound
		}
		decision = loaded
		if err := decision.Acknowledge(cmd.ConfirmedItems, now); err != nil {
			return err
		}

		qual, expected, history, err := s.loadOrCreate(ctx, cmd.UserID, now)
		if err != nil {
			return err
		}
		qual.RegisterAcknowledgement()

		record, err := domain.NewAuditRecord(cmd.UserID, qual.NextAuditSeq(), domain.AuditEventOverrideAccepted, decision, now)
		if err != nil {
			return err
		}

		event := &domain.OverrideAcceptedEvent{
			DecisionID: decision.DecisionID,
			UserID:     decision.UserID,
			Class:      string(decision.Class),
			Timestamp:  now,
		}
		return s.qualRepo.Commit(ctx, &domain.QualificationMutation{
			Qualification:   qual,
			ExpectedVersion: expected,
			History:         history,
			Decision:        decision,
			AuditRecords:    []*domain.AuditRecord{record},
			Events:          []domain.DomainEvent{event},
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cmd.UserID)

	s.logger.InfoContext(ctx, "override acknowledged",
		"user_id", cmd.UserID,
		"decision_id", cmd.DecisionID)

	return toDecisionDTO(decision), nil
}

// ReportRealizedLossCommand 组合监控协作方上报的已实现亏损事件
type ReportRealizedLossCommand struct {
	UserID string
	// LossPct 已实现亏损占期权资金的百分比
	LossPct string
}

// ReportRealizedLoss 处理已实现亏损事件，达阈值时触发重测建议
func (s *CommandService) ReportRealizedLoss(ctx context.Context, cmd ReportRealizedLossCommand) error {
	lossPct, err := decimal.NewFromString(cmd.LossPct)
	if err != nil {
		return fmt.Errorf("invalid loss pct: %w", err)
	}
	if lossPct.LessThan(decimal.NewFromInt(domain.RealizedLossThresholdPct)) {
		return nil
	}
	return s.applyTrigger(ctx, cmd.UserID, domain.TriggerRealizedLoss)
}

// ReportComplianceFlag 处理外部合规协作方的高风险标记，硬触发直达强制重测
func (s *CommandService) ReportComplianceFlag(ctx context.Context, userID string) error {
	return s.applyTrigger(ctx, userID, domain.TriggerComplianceFlag)
}

// ForceDowngradeCommand 合规强制降级命令
type ForceDowngradeCommand struct {
	UserID     string
	TargetTier string
	Reason     string
}

// ForceDowngrade 非评分支撑的强制降级，唯一允许的无评分定级迁移
func (s *CommandService) ForceDowngrade(ctx context.Context, cmd ForceDowngradeCommand) (*QualificationDTO, error) {
	var qual *domain.UserQualification
	err := s.withRetry(ctx, func() error {
		now := time.Now()
		loaded, expected, history, err := s.loadOrCreate(ctx, cmd.UserID, now)
		if err != nil {
			return err
		}
		qual = loaded

		if err := qual.ForceDowngrade(ctx, domain.TierFromString(cmd.TargetTier), cmd.Reason, now); err != nil {
			return err
		}
		records, err := s.auditFromEvents(qual, nil, now)
		if err != nil {
			return err
		}
		return s.qualRepo.Commit(ctx, &domain.QualificationMutation{
			Qualification:   qual,
			ExpectedVersion: expected,
			History:         history,
			AuditRecords:    records,
			Events:          qual.GetDomainEvents(),
		})
	})
	if err != nil {
		return nil, err
	}
	qual.ClearDomainEvents()
	s.invalidate(ctx, cmd.UserID)

	s.logger.InfoContext(ctx, "qualification force downgraded",
		"user_id", cmd.UserID,
		"tier", qual.Tier.String(),
		"reason", cmd.Reason)

	return toQualificationDTO(qual), nil
}

// PublishCatalogCommand 发布题库版本命令
type PublishCatalogCommand struct {
	Catalog *domain.Catalog
}

// PublishCatalog 发布新题库版本，版本一经发布不可变
func (s *CommandService) PublishCatalog(ctx context.Context, cmd PublishCatalogCommand) error {
	catalog := cmd.Catalog
	if catalog == nil || catalog.Version == nil || catalog.Version.Version == "" {
		return fmt.Errorf("catalog version is required")
	}
	if len(catalog.Questions) == 0 {
		return fmt.Errorf("catalog must define questions")
	}
	for _, q := range catalog.Questions {
		if q.Weight.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("question %s: weight must be positive", q.QuestionID)
		}
		if q.CorrectOption == "" {
			return fmt.Errorf("question %s: correct option is required", q.QuestionID)
		}
	}

	if err := s.catalogRepo.Publish(ctx, catalog); err != nil {
		return err
	}

	event := &domain.CatalogPublishedEvent{
		Version:   catalog.Version.Version,
		Questions: len(catalog.Questions),
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event.EventName(), catalog.Version.Version, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish catalog event",
			"version", catalog.Version.Version,
			"error", err)
	}

	s.logger.InfoContext(ctx, "catalog published",
		"version", catalog.Version.Version,
		"questions", len(catalog.Questions))
	return nil
}

// applyTrigger 调度器触发条件的通用提交路径
func (s *CommandService) applyTrigger(ctx context.Context, userID string, kind domain.TriggerKind) error {
	var changed bool
	err := s.withRetry(ctx, func() error {
		now := time.Now()
		qual, expected, history, err := s.loadOrCreate(ctx, userID, now)
		if err != nil {
			return err
		}

		changed, err = qual.RecordTrigger(ctx, kind, now)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		records, err := s.auditFromEvents(qual, nil, now)
		if err != nil {
			return err
		}
		return s.qualRepo.Commit(ctx, &domain.QualificationMutation{
			Qualification:   qual,
			ExpectedVersion: expected,
			History:         history,
			AuditRecords:    records,
			Events:          qual.GetDomainEvents(),
		})
	})
	if err != nil {
		return err
	}
	if changed {
		s.invalidate(ctx, userID)
		s.logger.InfoContext(ctx, "reassessment trigger recorded",
			"user_id", userID,
			"trigger", string(kind))
	}
	return nil
}

// loadOrCreate 加载用户资质；不存在时按初级新建（首次落库即有审计序号锚点）
func (s *CommandService) loadOrCreate(ctx context.Context, userID string, now time.Time) (*domain.UserQualification, uint64, *domain.QualificationHistory, error) {
	qual, err := s.qualRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrQualificationNotFound) {
			return domain.NewUserQualification(userID, now), 0, nil, nil
		}
		return nil, 0, nil, err
	}
	qual.InitFSM()
	return qual, qual.Version, qual.Snapshot(now), nil
}

// auditFromEvents 把聚合积累的领域事件映射为审计记录
// classificationPayload 非空时用作定级事件的审计快照（含完整评分明细）
func (s *CommandService) auditFromEvents(qual *domain.UserQualification, classificationPayload any, now time.Time) ([]*domain.AuditRecord, error) {
	events := qual.GetDomainEvents()
	records := make([]*domain.AuditRecord, 0, len(events))
	for _, event := range events {
		var (
			eventType domain.AuditEventType
			payload   any = event
		)
		switch event.(type) {
		case *domain.UserClassifiedEvent:
			eventType = domain.AuditEventClassification
			if classificationPayload != nil {
				payload = classificationPayload
			}
		case *domain.ReassessmentStateChangedEvent:
			eventType = domain.AuditEventReassessmentChange
		case *domain.GatingDecidedEvent:
			eventType = domain.AuditEventGatingDecision
		case *domain.OverrideAcceptedEvent:
			eventType = domain.AuditEventOverrideAccepted
		default:
			continue
		}
		record, err := domain.NewAuditRecord(qual.UserID, qual.NextAuditSeq(), eventType, payload, now)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// withRetry 乐观锁冲突的有界透明重试
func (s *CommandService) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		if err = fn(); !errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
	}
	return err
}

func (s *CommandService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate qualification cache",
			"user_id", userID,
			"error", err)
	}
}

// resolvePolicy 解析请求指向的准入规则：优先具名策略，其次直接给出的类别
// 具名策略命中时一并返回目录条目，供决策附带策略说明
func resolvePolicy(catalog *domain.Catalog, strategy, class string) (*domain.PolicyRule, *domain.StrategyDefinition, error) {
	if strategy != "" {
		def := catalog.StrategyByName(strategy)
		if def == nil {
			return nil, nil, domain.ErrStrategyUnknown
		}
		rule := catalog.PolicyFor(def.Class)
		if rule == nil {
			return nil, nil, domain.ErrStrategyUnknown
		}
		return rule, def, nil
	}
	rule := catalog.PolicyFor(domain.StrategyClass(class))
	if rule == nil {
		return nil, nil, domain.ErrStrategyUnknown
	}
	return rule, nil, nil
}
