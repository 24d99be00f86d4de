package service

import (
	"context"
	"fmt"
	"time"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/hierarchy"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/repository"
	"gorm.io/gorm"
)

// PeriodService 期间管理：创建（可克隆）、改名、删除、预算变更。
// 期间从分配存储的视角只有 不存在→活跃→不存在 三态。
type PeriodService struct {
	sessionRepo *repository.SessionRepository
	skuRepo     *repository.SkuRepository
	allocRepo   *repository.AllocationRepository
	allocSvc    *AllocationService
}

func NewPeriodService(sessionRepo *repository.SessionRepository, skuRepo *repository.SkuRepository, allocRepo *repository.AllocationRepository, allocSvc *AllocationService) *PeriodService {
	return &PeriodService{
		sessionRepo: sessionRepo,
		skuRepo:     skuRepo,
		allocRepo:   allocRepo,
		allocSvc:    allocSvc,
	}
}

// ListPeriods 期间列表：默认期间在前，其余按字典序
func (s *PeriodService) ListPeriods(ctx context.Context, sessionID string) ([]entity.PeriodBudget, error) {
	data, err := s.allocSvc.loadData(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// ListBudgets 已按period升序返回，空键自然排最前
	return data.budgets, nil
}

type CreatePeriodInput struct {
	Period string `json:"period" binding:"required"`
	Budget string `json:"budget" binding:"required"`
	// CopyFrom 指定时从该期间克隆分配记录（源期间为空集时退化为占位合成）
	CopyFrom *string `json:"copy_from"`
}

// CreatePeriod 创建期间。键已存在时冲突。
// copy_from 源有记录则逐行克隆；否则为当前SKU可派生的每条路径合成占位：
// 父节点唯一子（含唯一根）记100%，其余0%，金额/数量一律0。
func (s *PeriodService) CreatePeriod(ctx context.Context, userID, sessionID string, input *CreatePeriodInput) (*entity.PeriodBudget, error) {
	data, err := s.allocSvc.loadData(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerDraft(data.session, userID); err != nil {
		return nil, err
	}

	if input.Period == entity.DefaultPeriod {
		return nil, validationf("期间键不能为空")
	}
	budget, err := parseAmount(input.Budget)
	if err != nil || budget <= 0 {
		return nil, validationf("预算必须是正整数: %s", input.Budget)
	}
	if _, exists := budgetMap(data.budgets)[input.Period]; exists {
		return nil, fmt.Errorf("%w: 期间已存在: %s", ErrConflict, input.Period)
	}

	now := time.Now()
	var rows []entity.Allocation
	if input.CopyFrom != nil {
		if _, ok := budgetMap(data.budgets)[*input.CopyFrom]; !ok {
			return nil, fmt.Errorf("%w: 复制来源期间不存在: %s", ErrNotFound, periodLabel(*input.CopyFrom))
		}
		rows = clonePeriodRows(data.allocs, *input.CopyFrom, input.Period, now)
	}
	if len(rows) == 0 {
		rows = synthesizePlaceholders(data.forest, sessionID, input.Period, now)
	}

	pb := &entity.PeriodBudget{
		ID:        newID(),
		SessionID: sessionID,
		Period:    input.Period,
		Budget:    budget,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.allocRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pb).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			return tx.CreateInBatches(&rows, 500).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("创建期间失败: %w", err)
	}
	s.allocSvc.invalidateTree(ctx, sessionID)
	return pb, nil
}

// clonePeriodRows 源期间的记录按 path/level/百分比/金额/数量 原样复制
func clonePeriodRows(allocs []entity.Allocation, from, to string, now time.Time) []entity.Allocation {
	var rows []entity.Allocation
	for _, a := range allocs {
		if a.Period != from {
			continue
		}
		rows = append(rows, entity.Allocation{
			ID:            newID(),
			SessionID:     a.SessionID,
			HierarchyPath: a.HierarchyPath,
			Level:         a.Level,
			Percentage:    a.Percentage,
			Amount:        a.Amount,
			Quantity:      a.Quantity,
			Period:        to,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return rows
}

// synthesizePlaceholders 为每条可派生路径落一行占位记录，
// 不只是用户碰过的路径。金额/数量留0，首次显式保存时才填充。
func synthesizePlaceholders(forest *hierarchy.Forest, sessionID, period string, now time.Time) []entity.Allocation {
	var rows []entity.Allocation
	forest.Walk(func(n *hierarchy.Node) {
		pct := 0
		if forest.SoleChild(n) {
			pct = hierarchy.MaxBasisPoints
		}
		rows = append(rows, entity.Allocation{
			ID:            newID(),
			SessionID:     sessionID,
			HierarchyPath: n.Key,
			Level:         n.Level,
			Percentage:    pct,
			Period:        period,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	})
	return rows
}

type RenamePeriodInput struct {
	From string `json:"from"`
	To   string `json:"to" binding:"required"`
}

// RenamePeriod 改名：分配行与预算行在同一事务内整体迁移，
// 要么全部移动要么全不移动。目标键已存在时冲突，不改任何行。
func (s *PeriodService) RenamePeriod(ctx context.Context, userID, sessionID string, input *RenamePeriodInput) error {
	data, err := s.allocSvc.loadData(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := requireOwnerDraft(data.session, userID); err != nil {
		return err
	}
	if input.From == input.To {
		return validationf("新旧期间键相同: %s", input.To)
	}
	budgets := budgetMap(data.budgets)
	if _, ok := budgets[input.From]; !ok {
		return fmt.Errorf("%w: 期间不存在: %s", ErrNotFound, periodLabel(input.From))
	}
	if _, exists := budgets[input.To]; exists {
		return fmt.Errorf("%w: 期间已存在: %s", ErrConflict, input.To)
	}

	if err := s.allocRepo.RenamePeriod(ctx, sessionID, input.From, input.To); err != nil {
		return fmt.Errorf("期间改名失败: %w", err)
	}
	s.allocSvc.invalidateTree(ctx, sessionID)
	return nil
}

// DeletePeriod 删除期间的全部分配行和预算行，返回删除的分配行数。
// 默认期间是旧版预算的迁移落点，不允许删除。
func (s *PeriodService) DeletePeriod(ctx context.Context, userID, sessionID, period string) (int64, error) {
	data, err := s.allocSvc.loadData(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := requireOwnerDraft(data.session, userID); err != nil {
		return 0, err
	}
	if period == entity.DefaultPeriod {
		return 0, validationf("默认期间不允许删除")
	}
	if _, ok := budgetMap(data.budgets)[period]; !ok {
		return 0, fmt.Errorf("%w: 期间不存在: %s", ErrNotFound, period)
	}

	removed, err := s.allocRepo.DeletePeriod(ctx, sessionID, period)
	if err != nil {
		return 0, fmt.Errorf("删除期间失败: %w", err)
	}
	s.allocSvc.invalidateTree(ctx, sessionID)
	return removed, nil
}

type UpdateBudgetInput struct {
	Period string `json:"period"`
	Budget string `json:"budget" binding:"required"`
}

// UpdateBudget 变更期间预算，然后按既存百分比自顶向下重算该期间全部金额
func (s *PeriodService) UpdateBudget(ctx context.Context, userID, sessionID string, input *UpdateBudgetInput) (*entity.PeriodBudget, error) {
	data, err := s.allocSvc.loadData(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerDraft(data.session, userID); err != nil {
		return nil, err
	}
	budget, err := parseAmount(input.Budget)
	if err != nil || budget <= 0 {
		return nil, validationf("预算必须是正整数: %s", input.Budget)
	}

	pb, err := s.allocRepo.FindBudget(ctx, sessionID, input.Period)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 期间不存在: %s", ErrNotFound, periodLabel(input.Period))
		}
		return nil, err
	}
	pb.Budget = budget
	pb.UpdatedAt = time.Now()
	if err := s.allocRepo.UpdateBudget(ctx, pb); err != nil {
		return nil, fmt.Errorf("更新预算失败: %w", err)
	}

	// 预算触发的整期重算
	for i := range data.budgets {
		if data.budgets[i].Period == input.Period {
			data.budgets[i].Budget = budget
		}
	}
	if _, err := s.allocSvc.recompute(ctx, data, input.Period, ""); err != nil {
		return nil, err
	}
	return pb, nil
}
