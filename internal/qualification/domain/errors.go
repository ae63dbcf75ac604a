// Package domain 资质分级与策略准入服务的领域模型、实体、聚合、值对象、领域服务、仓储接口
package domain

import "fmt"

// DomainError 带机器可读原因码的领域错误
type DomainError struct {
	Code    string // 原因码，调用方据此做程序化处理
	Message string // 人类可读描述
}

// Error 实现 error 接口
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	// ErrIncompleteSubmission 答卷不完整，拒绝评分，不产生任何状态变更
	ErrIncompleteSubmission = &DomainError{Code: "IncompleteSubmission", Message: "submission does not answer every question in the catalog version"}
	// ErrUnknownCatalogVersion 引用了未发布或已下线的题库版本
	ErrUnknownCatalogVersion = &DomainError{Code: "UnknownCatalogVersion", Message: "catalog version is not published"}
	// ErrConcurrentModification 同一用户资质记录的并发写冲突
	ErrConcurrentModification = &DomainError{Code: "ConcurrentModification", Message: "qualification record was modified concurrently"}
	// ErrAuditWriteFailure 审计记录写入失败，调用整体失败关闭（fail closed）
	ErrAuditWriteFailure = &DomainError{Code: "AuditWriteFailure", Message: "audit record could not be committed"}
	// ErrDecisionNotPending 决策不处于待确认状态
	ErrDecisionNotPending = &DomainError{Code: "DecisionNotPending", Message: "gating decision is not pending acknowledgement"}
	// ErrAcknowledgementIncomplete 确认清单未逐项勾选
	ErrAcknowledgementIncomplete = &DomainError{Code: "AcknowledgementIncomplete", Message: "acknowledgement must confirm every checklist item"}
	// ErrCatalogVersionExists 题库版本已存在，发布后不可变
	ErrCatalogVersionExists = &DomainError{Code: "CatalogVersionExists", Message: "catalog version already published"}
	// ErrStrategyUnknown 请求的策略不在策略目录中
	ErrStrategyUnknown = &DomainError{Code: "StrategyUnknown", Message: "strategy is not defined in the catalog"}
	// ErrQualificationNotFound 用户资质记录不存在
	ErrQualificationNotFound = &DomainError{Code: "QualificationNotFound", Message: "no qualification record for user"}
	// ErrDecisionNotFound 准入决策不存在
	ErrDecisionNotFound = &DomainError{Code: "DecisionNotFound", Message: "gating decision not found"}
)
