package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/hierarchy"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Services 服务集合
type Services struct {
	Session      *SessionService
	Allocation   *AllocationService
	Period       *PeriodService
	ImportExport *ImportExportService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client) *Services {
	sessionSvc := NewSessionService(repos.Category, repos.Session, rdb)
	allocSvc := NewAllocationService(repos.Session, repos.Sku, repos.Allocation, rdb)
	periodSvc := NewPeriodService(repos.Session, repos.Sku, repos.Allocation, allocSvc)
	importExportSvc := NewImportExportService(repos.Session, repos.Sku, repos.Allocation, allocSvc)

	return &Services{
		Session:      sessionSvc,
		Allocation:   allocSvc,
		Period:       periodSvc,
		ImportExport: importExportSvc,
	}
}

func newID() string {
	return uuid.New().String()[:32]
}

// requireOwnerDraft 变更类操作的权限门：仅草稿状态的会话所有者可改。
// 所有权判定本身是外部注入的布尔能力（JWT中间件解出的user_id）。
func requireOwnerDraft(session *entity.PlanSession, userID string) error {
	if session.CreatedBy != userID {
		return fmt.Errorf("%w: 只有会话创建者可以修改", ErrForbidden)
	}
	if session.Status != entity.SessionStatusDraft {
		return fmt.Errorf("%w: 只有草稿状态的会话可以修改", ErrForbidden)
	}
	return nil
}

// ensureDefaultPeriod 旧版schema迁移：会话带有单预算字段且尚无任何
// 期间预算记录时，以默认期间键落一条PeriodBudget。一次性、幂等。
func ensureDefaultPeriod(ctx context.Context, allocRepo *repository.AllocationRepository, session *entity.PlanSession) error {
	if session.TotalBudget <= 0 {
		return nil
	}
	budgets, err := allocRepo.ListBudgets(ctx, session.ID)
	if err != nil {
		return err
	}
	if len(budgets) > 0 {
		return nil
	}
	now := time.Now()
	return allocRepo.CreateBudget(ctx, &entity.PeriodBudget{
		ID:        newID(),
		SessionID: session.ID,
		Period:    entity.DefaultPeriod,
		Budget:    session.TotalBudget,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// sortedPeriods 期间显示顺序：默认键在前，其余按字典序升序
func sortedPeriods(budgets []entity.PeriodBudget) []string {
	periods := make([]string, 0, len(budgets))
	for _, b := range budgets {
		periods = append(periods, b.Period)
	}
	sort.Strings(periods)
	return periods
}

// allocSet 把分配记录装入级联引擎的快照结构
func allocSet(allocs []entity.Allocation) hierarchy.AllocationSet {
	set := make(hierarchy.AllocationSet)
	for _, a := range allocs {
		set.Set(a.HierarchyPath, a.Period, hierarchy.PerPeriod{
			Percentage: a.Percentage,
			Amount:     a.Amount,
			Quantity:   a.Quantity,
		})
	}
	return set
}

// budgetMap 期间 → 总预算
func budgetMap(budgets []entity.PeriodBudget) map[string]int64 {
	m := make(map[string]int64, len(budgets))
	for _, b := range budgets {
		m[b.Period] = b.Budget
	}
	return m
}

// toHierarchySkus entity层 → 纯计算层的输入转换
func toHierarchySkus(skus []entity.SkuData) []hierarchy.Sku {
	out := make([]hierarchy.Sku, len(skus))
	for i, s := range skus {
		out[i] = hierarchy.Sku{
			Code:      s.SkuCode,
			UnitPrice: s.UnitPrice,
			Values:    s.HierarchyValues,
		}
	}
	return out
}

func toHierarchyDefs(defs []entity.HierarchyDefinition) []hierarchy.Definition {
	out := make([]hierarchy.Definition, len(defs))
	for i, d := range defs {
		out[i] = hierarchy.Definition{Level: d.Level, ColumnName: d.ColumnName}
	}
	return out
}
