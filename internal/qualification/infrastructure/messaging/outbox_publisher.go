// Package messaging 领域事件的事务性 Outbox 发布与 Kafka 中继
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxMessage Outbox 消息记录
// 与业务状态同事务写入，由中继异步投递到 Kafka，保证事件不丢
type OutboxMessage struct {
	ID        string    `gorm:"type:varchar(36);primary_key"`
	EventID   string    `gorm:"type:varchar(36);index"`
	EventType string    `gorm:"type:varchar(100);index"`
	UserID    string    `gorm:"type:varchar(36);index"`
	Payload   string    `gorm:"type:text"`
	Status    string    `gorm:"type:varchar(20);index;default:'pending'"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "qualification_outbox_messages"
}

const (
	statusPending = "pending"
	statusSent    = "sent"
)

// OutboxEventPublisher 实现 EventPublisher 接口，使用 Outbox 模式
type OutboxEventPublisher struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewOutboxEventPublisher 创建 Outbox 事件发布器
func NewOutboxEventPublisher(db *gorm.DB, logger *slog.Logger) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: db, logger: logger}
}

// Publish 在独立事务中写入 Outbox 记录
func (p *OutboxEventPublisher) Publish(ctx context.Context, eventType, userID string, event any) error {
	return p.insert(ctx, p.db, eventType, userID, event)
}

// PublishInTx 在调用方事务内写入 Outbox 记录，与业务状态同生共死
func (p *OutboxEventPublisher) PublishInTx(ctx context.Context, tx any, eventType, userID string, event any) error {
	db, ok := tx.(*gorm.DB)
	if !ok {
		return p.insert(ctx, p.db, eventType, userID, event)
	}
	return p.insert(ctx, db, eventType, userID, event)
}

func (p *OutboxEventPublisher) insert(ctx context.Context, db *gorm.DB, eventType, userID string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	now := time.Now()
	message := OutboxMessage{
		ID:        uuid.NewString(),
		EventID:   uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Payload:   string(payload),
		Status:    statusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).Create(&message).Error
}

// Pusher 将一条消息投递到消息队列，main 里用 Kafka 生产者装配
type Pusher func(ctx context.Context, topic, key string, payload []byte) error

// OutboxRelay 将待投递的 Outbox 消息送往消息队列
// 消息以用户为键，同一用户的事件在主题内保持顺序
type OutboxRelay struct {
	db        *gorm.DB
	pusher    Pusher
	topic     string
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	retention time.Duration
}

// NewOutboxRelay 创建 Outbox 中继
func NewOutboxRelay(db *gorm.DB, pusher Pusher, topic string, logger *slog.Logger) *OutboxRelay {
	return &OutboxRelay{
		db:        db,
		pusher:    pusher,
		topic:     topic,
		logger:    logger,
		batchSize: 100,
		interval:  time.Second,
		retention: 24 * time.Hour,
	}
}

// Run 周期性投递，ctx 取消后退出
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "failed to relay outbox batch", "error", err)
			}
		case <-cleanup.C:
			if err := r.cleanupSent(ctx); err != nil {
				r.logger.WarnContext(ctx, "failed to cleanup sent outbox messages", "error", err)
			}
		}
	}
}

// relayBatch 投递一批待处理消息，逐条确认后标记已发送
func (r *OutboxRelay) relayBatch(ctx context.Context) error {
	var messages []OutboxMessage
	if err := r.db.WithContext(ctx).
		Where("status = ?", statusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error; err != nil {
		return err
	}

	for _, message := range messages {
		if err := r.pusher(ctx, r.topic, message.UserID, []byte(message.Payload)); err != nil {
			return err
		}
		if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
			Where("id = ?", message.ID).
			Updates(map[string]any{"status": statusSent, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
	}
	return nil
}

// cleanupSent 清理超过保留期的已投递消息
func (r *OutboxRelay) cleanupSent(ctx context.Context) error {
	before := time.Now().Add(-r.retention)
	return r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", statusSent, before).
		Delete(&OutboxMessage{}).Error
}
