// Package redis 资质读模型缓存
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// QualificationCache 基于 Redis 的用户资质缓存
// 只缓存在线记录，命中后仍以数据库为准绳：任何写路径提交成功即失效对应键
type QualificationCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewQualificationCache 创建资质缓存
func NewQualificationCache(client redis.UniversalClient) *QualificationCache {
	return &QualificationCache{
		client: client,
		prefix: "qualification:user:",
		ttl:    10 * time.Minute,
	}
}

// Get 读取缓存的资质记录，未命中返回 (nil, nil)
func (c *QualificationCache) Get(ctx context.Context, userID string) (*domain.UserQualification, error) {
	if userID == "" {
		return nil, nil
	}
	data, err := c.client.Get(ctx, c.prefix+userID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get qualification from redis: %w", err)
	}
	var qual domain.UserQualification
	if err := json.Unmarshal(data, &qual); err != nil {
		return nil, fmt.Errorf("failed to unmarshal qualification: %w", err)
	}
	return &qual, nil
}

// Set 写入缓存
func (c *QualificationCache) Set(ctx context.Context, qual *domain.UserQualification) error {
	if qual == nil {
		return nil
	}
	data, err := json.Marshal(qual)
	if err != nil {
		return fmt.Errorf("failed to marshal qualification: %w", err)
	}
	return c.client.Set(ctx, c.prefix+qual.UserID, data, c.ttl).Err()
}

// Invalidate 写路径提交成功后失效缓存键
func (c *QualificationCache) Invalidate(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+userID).Err()
}
