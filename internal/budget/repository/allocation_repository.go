package repository

import (
	"context"
	"errors"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"gorm.io/gorm"
)

type AllocationRepository struct {
	db *gorm.DB
}

func NewAllocationRepository(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) DB() *gorm.DB {
	return r.db
}

func (r *AllocationRepository) ListBySession(ctx context.Context, sessionID string) ([]entity.Allocation, error) {
	var allocs []entity.Allocation
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("level ASC, hierarchy_path ASC").
		Find(&allocs).Error
	return allocs, err
}

func (r *AllocationRepository) ListByPeriod(ctx context.Context, sessionID, period string) ([]entity.Allocation, error) {
	var allocs []entity.Allocation
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND period = ?", sessionID, period).
		Order("level ASC, hierarchy_path ASC").
		Find(&allocs).Error
	return allocs, err
}

func (r *AllocationRepository) CountByPeriod(ctx context.Context, sessionID, period string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Allocation{}).
		Where("session_id = ? AND period = ?", sessionID, period).
		Count(&count).Error
	return count, err
}

// ReplacePeriod 整体保存某期间的分配集合：先删后插，一个事务
func (r *AllocationRepository) ReplacePeriod(ctx context.Context, sessionID, period string, allocs []entity.Allocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND period = ?", sessionID, period).
			Delete(&entity.Allocation{}).Error; err != nil {
			return err
		}
		if len(allocs) > 0 {
			if err := tx.CreateInBatches(&allocs, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Upsert 单节点保存：存在则更新百分比/金额/数量，否则新建
func (r *AllocationRepository) Upsert(ctx context.Context, alloc *entity.Allocation) error {
	var existing entity.Allocation
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND hierarchy_path = ? AND period = ?",
			alloc.SessionID, alloc.HierarchyPath, alloc.Period).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(alloc).Error
		}
		return err
	}
	existing.Level = alloc.Level
	existing.Percentage = alloc.Percentage
	existing.Amount = alloc.Amount
	existing.Quantity = alloc.Quantity
	existing.UpdatedAt = alloc.UpdatedAt
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*alloc = existing
	return nil
}

func (r *AllocationRepository) CreateMany(ctx context.Context, allocs []entity.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&allocs, 500).Error
}

// RenamePeriod 期间改名：分配记录和期间预算在同一事务内整体改写
func (r *AllocationRepository) RenamePeriod(ctx context.Context, sessionID, from, to string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Allocation{}).
			Where("session_id = ? AND period = ?", sessionID, from).
			Update("period", to).Error; err != nil {
			return err
		}
		return tx.Model(&entity.PeriodBudget{}).
			Where("session_id = ? AND period = ?", sessionID, from).
			Update("period", to).Error
	})
}

// DeletePeriod 删除某期间的全部分配记录和预算记录，返回删除的分配行数
func (r *AllocationRepository) DeletePeriod(ctx context.Context, sessionID, period string) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("session_id = ? AND period = ?", sessionID, period).
			Delete(&entity.Allocation{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return tx.Where("session_id = ? AND period = ?", sessionID, period).
			Delete(&entity.PeriodBudget{}).Error
	})
	return removed, err
}

// ========== PeriodBudget ==========

func (r *AllocationRepository) ListBudgets(ctx context.Context, sessionID string) ([]entity.PeriodBudget, error) {
	var budgets []entity.PeriodBudget
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("period ASC").
		Find(&budgets).Error
	return budgets, err
}

func (r *AllocationRepository) FindBudget(ctx context.Context, sessionID, period string) (*entity.PeriodBudget, error) {
	var budget entity.PeriodBudget
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND period = ?", sessionID, period).
		First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &budget, nil
}

func (r *AllocationRepository) CreateBudget(ctx context.Context, budget *entity.PeriodBudget) error {
	return r.db.WithContext(ctx).Create(budget).Error
}

func (r *AllocationRepository) UpdateBudget(ctx context.Context, budget *entity.PeriodBudget) error {
	return r.db.WithContext(ctx).Save(budget).Error
}
