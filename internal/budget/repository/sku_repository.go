package repository

import (
	"context"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"gorm.io/gorm"
)

type SkuRepository struct {
	db *gorm.DB
}

func NewSkuRepository(db *gorm.DB) *SkuRepository {
	return &SkuRepository{db: db}
}

func (r *SkuRepository) DB() *gorm.DB {
	return r.db
}

func (r *SkuRepository) ListBySession(ctx context.Context, sessionID string) ([]entity.SkuData, error) {
	var skus []entity.SkuData
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&skus).Error
	return skus, err
}

func (r *SkuRepository) ListDefinitions(ctx context.Context, sessionID string) ([]entity.HierarchyDefinition, error) {
	var defs []entity.HierarchyDefinition
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("level ASC").
		Find(&defs).Error
	return defs, err
}

// ReplaceImport 破坏性导入：在一个事务里删除会话的全部
// 层级定义、SKU和分配记录，再写入新的定义和SKU。
// 导入是整体替换而非增量合并，旧结构的路径必须全部清除。
func (r *SkuRepository) ReplaceImport(ctx context.Context, sessionID string, defs []entity.HierarchyDefinition, skus []entity.SkuData) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&entity.Allocation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&entity.SkuData{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&entity.HierarchyDefinition{}).Error; err != nil {
			return err
		}
		if len(defs) > 0 {
			if err := tx.Create(&defs).Error; err != nil {
				return err
			}
		}
		if len(skus) > 0 {
			if err := tx.CreateInBatches(&skus, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
