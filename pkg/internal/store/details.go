package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/ingestvault/pkg/internal/model"
)

// DetailStore DetailRecord 的持久化.
type DetailStore struct {
	db *gorm.DB
}

// NewDetailStore 创建 DetailStore.
func NewDetailStore(db *gorm.DB) *DetailStore {
	return &DetailStore{db: db}
}

// Upsert 以 unique_key 插入或覆盖，后写者生效.
func (s *DetailStore) Upsert(ctx context.Context, rec *model.DetailRecord) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "unique_key"}},
			DoUpdates: clause.AssignmentColumns(model.UpsertColumns),
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert detail %q: %w", rec.UniqueKey, err)
	}

	return nil
}

// FindByKey 按 unique_key 查询并预加载来源文件.
func (s *DetailStore) FindByKey(ctx context.Context, key string) ([]model.DetailRecord, error) {
	var out []model.DetailRecord

	err := s.db.WithContext(ctx).
		Preload("FileRecord").
		Where("unique_key = ?", key).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find detail %q: %w", key, err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("detail %q: %w", key, ErrNotFound)
	}

	return out, nil
}

// CountByFile 统计最近由指定文件写入的明细数.
func (s *DetailStore) CountByFile(ctx context.Context, fileID uint) (int64, error) {
	var n int64

	err := s.db.WithContext(ctx).Model(&model.DetailRecord{}).
		Where("file_record_id = ?", fileID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count details of %d: %w", fileID, err)
	}

	return n, nil
}

// Migrate 创建或更新全部表结构.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(model.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
