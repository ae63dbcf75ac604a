// Package events 组合监控与合规协作方事件的 Kafka 消费入口
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wyfcoding/pkg/messagequeue/kafka"

	"github.com/wyfcoding/competencygate/internal/qualification/application"
)

// PortfolioEventHandler 消费组合事件流，驱动重测触发条件
type PortfolioEventHandler struct {
	cmd *application.CommandService
}

// NewPortfolioEventHandler 创建事件处理器
func NewPortfolioEventHandler(cmd *application.CommandService) *PortfolioEventHandler {
	return &PortfolioEventHandler{cmd: cmd}
}

// portfolioEvent 组合事件载荷
// type 取值 realized_loss / compliance_flag，其余类型忽略
type portfolioEvent struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id"`
	LossPct string `json:"loss_pct"`
	Reason  string `json:"reason"`
}

// HandlePortfolioEvent 处理单条组合事件
// 解析失败不重试：坏消息进日志后丢弃，避免阻塞分区
func (h *PortfolioEventHandler) HandlePortfolioEvent(ctx context.Context, msg kafkago.Message) error {
	var event portfolioEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		slog.Warn("Dropping malformed portfolio event", "offset", msg.Offset, "error", err)
		return nil
	}
	if event.UserID == "" {
		slog.Warn("Dropping portfolio event without user_id", "type", event.Type, "offset", msg.Offset)
		return nil
	}

	switch event.Type {
	case "realized_loss":
		slog.Info("Handling realized loss event", "user_id", event.UserID, "loss_pct", event.LossPct)
		return h.cmd.ReportRealizedLoss(ctx, application.ReportRealizedLossCommand{
			UserID:  event.UserID,
			LossPct: event.LossPct,
		})
	case "compliance_flag":
		slog.Info("Handling compliance flag event", "user_id", event.UserID, "reason", event.Reason)
		return h.cmd.ReportComplianceFlag(ctx, event.UserID)
	default:
		return nil
	}
}

// Subscribe 启动消费
func (h *PortfolioEventHandler) Subscribe(ctx context.Context, consumer *kafka.Consumer) {
	consumer.Start(ctx, 1, h.HandlePortfolioEvent)
}
