package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/competencygate/internal/qualification/domain"
)

// CatalogRepository 题库仓储实现，版本发布后只读
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建题库仓储
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Publish 在一个事务内落库版本记录、题目、准入规则与策略目录
func (r *CatalogRepository) Publish(ctx context.Context, catalog *domain.Catalog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.CatalogVersionRecord{}).
			Where("version = ?", catalog.Version.Version).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrCatalogVersionExists
		}
		if err := tx.Create(catalog.Version).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrCatalogVersionExists
			}
			return err
		}
		if len(catalog.Questions) > 0 {
			if err := tx.Create(catalog.Questions).Error; err != nil {
				return err
			}
		}
		if len(catalog.Policies) > 0 {
			if err := tx.Create(catalog.Policies).Error; err != nil {
				return err
			}
		}
		if len(catalog.Strategies) > 0 {
			if err := tx.Create(catalog.Strategies).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByVersion 按版本读取完整快照
func (r *CatalogRepository) GetByVersion(ctx context.Context, version string) (*domain.Catalog, error) {
	var record domain.CatalogVersionRecord
	if err := r.db.WithContext(ctx).Where("version = ?", version).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnknownCatalogVersion
		}
		return nil, err
	}
	return r.load(ctx, &record)
}

// GetLatest 取最新发布的版本，准入与目录查询路径使用
func (r *CatalogRepository) GetLatest(ctx context.Context) (*domain.Catalog, error) {
	var record domain.CatalogVersionRecord
	if err := r.db.WithContext(ctx).Order("published_at desc").First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnknownCatalogVersion
		}
		return nil, err
	}
	return r.load(ctx, &record)
}

func (r *CatalogRepository) load(ctx context.Context, record *domain.CatalogVersionRecord) (*domain.Catalog, error) {
	catalog := &domain.Catalog{Version: record}
	if err := r.db.WithContext(ctx).
		Where("catalog_version = ?", record.Version).
		Order("question_id").
		Find(&catalog.Questions).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("catalog_version = ?", record.Version).
		Find(&catalog.Policies).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("catalog_version = ?", record.Version).
		Order("name").
		Find(&catalog.Strategies).Error; err != nil {
		return nil, err
	}
	return catalog, nil
}
