// Package http 资质分级与策略准入服务的 HTTP 接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/competencygate/internal/qualification/application"
	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// QualificationHandler 负责处理资质与准入相关的 HTTP 请求
type QualificationHandler struct {
	cmd   *application.CommandService
	query *application.QueryService
}

// NewQualificationHandler 创建 HTTP 处理器
func NewQualificationHandler(cmd *application.CommandService, query *application.QueryService) *QualificationHandler {
	return &QualificationHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *QualificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/qualification")
	{
		api.POST("/assessments", h.SubmitAssessment)
		api.GET("/users/:user_id", h.GetQualification)
		api.GET("/users/:user_id/score", h.GetScoreBreakdown)
		api.GET("/users/:user_id/strategies", h.ListStrategies)
		api.GET("/users/:user_id/audit", h.ListAudit)
		api.POST("/users/:user_id/downgrade", h.ForceDowngrade)
		api.POST("/gating/check", h.CheckGating)
		api.POST("/gating/:decision_id/ack", h.Acknowledge)
		api.GET("/gating/:decision_id", h.GetDecision)
		api.POST("/catalogs", h.PublishCatalog)
		api.GET("/catalogs/:version", h.GetCatalog)
	}
}

// SubmitAssessmentRequest 提交测评请求
type SubmitAssessmentRequest struct {
	UserID         string            `json:"user_id" binding:"required"`
	CatalogVersion string            `json:"catalog_version" binding:"required"`
	Answers        map[string]string `json:"answers" binding:"required"`
}

// SubmitAssessment 提交测评答卷
func (h *QualificationHandler) SubmitAssessment(c *gin.Context) {
	var req SubmitAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.cmd.SubmitAssessment(c.Request.Context(), application.SubmitAssessmentCommand{
		UserID:         req.UserID,
		CatalogVersion: req.CatalogVersion,
		Answers:        req.Answers,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to submit assessment", "user_id", req.UserID, "error", err)
		h.writeError(c, err)
		return
	}
	response.Success(c, dto)
}

// GetQualification 查询用户资质
func (h *QualificationHandler) GetQualification(c *gin.Context) {
	userID := c.Param("user_id")
	dto, err := h.query.GetQualification(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, dto)
}

// GetScoreBreakdown 查询最近一次测评的评分明细
func (h *QualificationHandler) GetScoreBreakdown(c *gin.Context) {
	userID := c.Param("user_id")
	dto, err := h.query.GetScoreBreakdown(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, dto)
}

// ListStrategies 列出策略目录及当前用户的准入标注
func (h *QualificationHandler) ListStrategies(c *gin.Context) {
	userID := c.Param("user_id")
	dtos, err := h.query.ListStrategies(c.Request.Context(), userID)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to list strategies", "user_id", userID, "error", err)
		h.writeError(c, err)
		return
	}
	response.Success(c, dtos)
}

// ListAudit 分页读取用户审计记录
func (h *QualificationHandler) ListAudit(c *gin.Context) {
	userID := c.Param("user_id")
	afterSeq, err := strconv.ParseUint(c.DefaultQuery("after_seq", "0"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid after_seq", "")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
		return
	}

	records, err := h.query.ListAudit(c.Request.Context(), userID, afterSeq, limit)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to list audit records", "user_id", userID, "error", err)
		h.writeError(c, err)
		return
	}
	response.Success(c, records)
}

// ForceDowngradeRequest 强制降级请求
type ForceDowngradeRequest struct {
	TargetTier string `json:"target_tier"`
	Reason     string `json:"reason" binding:"required"`
}

// ForceDowngrade 合规强制降级
func (h *QualificationHandler) ForceDowngrade(c *gin.Context) {
	userID := c.Param("user_id")
	var req ForceDowngradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.cmd.ForceDowngrade(c.Request.Context(), application.ForceDowngradeCommand{
		UserID:     userID,
		TargetTier: req.TargetTier,
		Reason:     req.Reason,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to force downgrade", "user_id", userID, "error", err)
		h.writeError(c, err)
		return
	}
	response.Success(c, dto)
}

// CheckGatingRequest 策略准入检查请求
type CheckGatingRequest struct {
	RequestID        string `json:"request_id" binding:"required"`
	UserID           string `json:"user_id" binding:"required"`
	Strategy         string `json:"strategy"`
	Class            string `json:"class"`
	PositionFraction string `json:"position_fraction"`
}

// CheckGating 策略准入检查
// 审计写入失败时仍返回 BLOCK 决策体，状态码 503：失败关闭而非默认放行
func (h *QualificationHandler) CheckGating(c *gin.Context) {
	var req CheckGatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.Strategy == "" && req.Class == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "strategy or class is required", "")
		return
	}

	dto, err := h.cmd.CheckGating(c.Request.Context(), application.CheckGatingCommand{
		RequestID:        req.RequestID,
		UserID:           req.UserID,
		Strategy:         req.Strategy,
		Class:            req.Class,
		PositionFraction: req.PositionFraction,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuditWriteFailure) && dto != nil {
			logging.Error(c.Request.Context(), "Gating request failed closed", "user_id", req.UserID, "request_id", req.RequestID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": err.Error(), "data": dto})
			return
		}
		logging.Error(c.Request.Context(), "Failed to check gating", "user_id", req.UserID, "error", err)
		h.writeError(c, err)
		return
	}
	response.Success(c, dto)
}

// AcknowledgeRequest 确认清单提交请求
type AcknowledgeRequest struct {
	UserID         string   `json:"user_id" binding:"required"`
	ConfirmedItems []string `json:"confirmed_items" binding:"required"`
}

// Acknowledge 提交确认清单，落定待确认决策
func (h *QualificationHandler) Acknowledge(c *gin.Context) {
	decisionID := c.Param("decision_id")
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.cmd.Acknowledge(c.Request.Context(), application.AcknowledgeCommand{
		DecisionID:     decisionID,
		UserID:         req.UserID,
		ConfirmedItems: req.ConfirmedItems,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to acknowledge decision", "decision_id", decisionID, "error", err)
		h.writeError(c, err)
		return
	}
	response.Success(c, dto)
}

// GetDecision 查询准入决策
func (h *QualificationHandler) GetDecision(c *gin.Context) {
	dto, err := h.query.GetDecision(c.Request.Context(), c.Param("decision_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, dto)
}

// PublishCatalogRequest 发布题库版本请求
type PublishCatalogRequest struct {
	Version    *domain.CatalogVersionRecord `json:"version" binding:"required"`
	Questions  []*domain.QuestionDefinition `json:"questions" binding:"required"`
	Policies   []*domain.PolicyRule         `json:"policies"`
	Strategies []*domain.StrategyDefinition `json:"strategies"`
}

// PublishCatalog 发布新题库版本
func (h *QualificationHandler) PublishCatalog(c *gin.Context) {
	var req PublishCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	catalog := &domain.Catalog{
		Version:    req.Version,
		Questions:  req.Questions,
		Policies:   req.Policies,
		Strategies: req.Strategies,
	}
	if err := h.cmd.PublishCatalog(c.Request.Context(), application.PublishCatalogCommand{Catalog: catalog}); err != nil {
		logging.Error(c.Request.Context(), "Failed to publish catalog", "version", req.Version.Version, "error", err)
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"version": req.Version.Version})
}

// GetCatalog 查询题库版本快照
func (h *QualificationHandler) GetCatalog(c *gin.Context) {
	catalog, err := h.query.GetCatalog(c.Request.Context(), c.Param("version"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, catalog)
}

// writeError 领域错误到 HTTP 状态码的映射
func (h *QualificationHandler) writeError(c *gin.Context, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	status := http.StatusInternalServerError
	switch domainErr.Code {
	case "IncompleteSubmission", "AcknowledgementIncomplete":
		status = http.StatusBadRequest
	case "UnknownCatalogVersion", "StrategyUnknown", "QualificationNotFound", "DecisionNotFound":
		status = http.StatusNotFound
	case "ConcurrentModification", "DecisionNotPending", "CatalogVersionExists":
		status = http.StatusConflict
	case "AuditWriteFailure":
		status = http.StatusServiceUnavailable
	}
	response.ErrorWithStatus(c, status, err.Error(), domainErr.Code)
}
