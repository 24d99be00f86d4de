package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/hierarchy"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const treeCacheTTL = 5 * time.Minute

func treeCacheKey(sessionID string) string {
	return "alloc:tree:" + sessionID
}

// AllocationService 分配保存、树读取和子树重算
type AllocationService struct {
	sessionRepo *repository.SessionRepository
	skuRepo     *repository.SkuRepository
	allocRepo   *repository.AllocationRepository
	rdb         *redis.Client
}

func NewAllocationService(sessionRepo *repository.SessionRepository, skuRepo *repository.SkuRepository, allocRepo *repository.AllocationRepository, rdb *redis.Client) *AllocationService {
	return &AllocationService{
		sessionRepo: sessionRepo,
		skuRepo:     skuRepo,
		allocRepo:   allocRepo,
		rdb:         rdb,
	}
}

// sessionData 一次读取的会话全量快照
type sessionData struct {
	session *entity.PlanSession
	skus    []entity.SkuData
	defs    []entity.HierarchyDefinition
	allocs  []entity.Allocation
	budgets []entity.PeriodBudget
	forest  *hierarchy.Forest
}

func (s *AllocationService) loadData(ctx context.Context, sessionID string) (*sessionData, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 会话不存在", ErrNotFound)
		}
		return nil, err
	}
	if err := ensureDefaultPeriod(ctx, s.allocRepo, session); err != nil {
		return nil, fmt.Errorf("迁移默认期间失败: %w", err)
	}

	skus, err := s.skuRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defs, err := s.skuRepo.ListDefinitions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	allocs, err := s.allocRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	budgets, err := s.allocRepo.ListBudgets(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &sessionData{
		session: session,
		skus:    skus,
		defs:    defs,
		allocs:  allocs,
		budgets: budgets,
		forest:  hierarchy.BuildTree(toHierarchySkus(skus), toHierarchyDefs(defs)),
	}, nil
}

// PeriodInfo 树响应中的期间概要
type PeriodInfo struct {
	Period string `json:"period"`
	Budget int64  `json:"budget,string"`
}

// TreeResult 派生树 + 同级超限警告。树每次读取时重建，从不持久化。
type TreeResult struct {
	SessionID string              `json:"session_id"`
	Periods   []PeriodInfo        `json:"periods"`
	Roots     []*hierarchy.Node   `json:"roots"`
	Warnings  []hierarchy.Overrun `json:"warnings,omitempty"`
}

// GetTree 重建并返回层级树。配置了redis时按会话缓存，
// 任何变更操作都会删除缓存键。
func (s *AllocationService) GetTree(ctx context.Context, sessionID string) (*TreeResult, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, treeCacheKey(sessionID)).Bytes(); err == nil {
			var cached TreeResult
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	data, err := s.loadData(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	set := allocSet(data.allocs)
	data.forest.Attach(set)

	periods := make([]PeriodInfo, 0, len(data.budgets))
	for _, p := range sortedPeriods(data.budgets) {
		periods = append(periods, PeriodInfo{Period: p, Budget: budgetMap(data.budgets)[p]})
	}

	result := &TreeResult{
		SessionID: sessionID,
		Periods:   periods,
		Roots:     data.forest.Roots,
		Warnings:  hierarchy.SiblingOverruns(data.forest, set),
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(result); err == nil {
			s.rdb.Set(ctx, treeCacheKey(sessionID), raw, treeCacheTTL)
		}
	}
	return result, nil
}

// AllocationEntry 保存输入：路径 + 百分比（百分数，最多两位小数）
type AllocationEntry struct {
	Path       string  `json:"path" binding:"required"`
	Percentage float64 `json:"percentage"`
}

// SaveResult 保存结果
type SaveResult struct {
	Saved    int                 `json:"saved"`
	Warnings []hierarchy.Overrun `json:"warnings,omitempty"`
}

// SaveAllocations 整体保存某期间的分配集合：该期间旧记录全删，
// 新记录按层级升序级联计算后插入（同一事务）。
// 同级百分比超100%仅作为警告返回，不拒绝保存。
func (s *AllocationService) SaveAllocations(ctx context.Context, userID, sessionID, period string, entries []AllocationEntry) (*SaveResult, error) {
	data, err := s.loadData(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerDraft(data.session, userID); err != nil {
		return nil, err
	}
	budget, ok := budgetMap(data.budgets)[period]
	if !ok {
		return nil, fmt.Errorf("%w: 期间不存在: %s", ErrNotFound, periodLabel(period))
	}

	type resolvedEntry struct {
		node *hierarchy.Node
		bp   int
	}
	resolved := make([]resolvedEntry, 0, len(entries))
	for _, e := range entries {
		node := data.forest.Node(e.Path)
		if node == nil {
			return nil, validationf("未知的层级路径: %s", e.Path)
		}
		bp, err := percentToBasisPoints(e.Percentage)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, resolvedEntry{node: node, bp: bp})
	}

	// 父节点先于子节点计算，金额取自本批次刚解析出的父金额
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].node.Level < resolved[j].node.Level
	})

	engine := &hierarchy.Engine{
		Budgets: map[string]int64{period: budget},
		Allocs:  make(hierarchy.AllocationSet),
	}

	now := time.Now()
	rows := make([]entity.Allocation, 0, len(resolved))
	for _, re := range resolved {
		v := engine.Resolve(re.node.Path, period, re.bp, data.forest.UnitPriceSum(re.node.Key))
		rows = append(rows, entity.Allocation{
			ID:            newID(),
			SessionID:     sessionID,
			HierarchyPath: re.node.Key,
			Level:         re.node.Level,
			Percentage:    v.Percentage,
			Amount:        v.Amount,
			Quantity:      v.Quantity,
			Period:        period,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.allocRepo.ReplacePeriod(ctx, sessionID, period, rows); err != nil {
		return nil, fmt.Errorf("保存分配失败: %w", err)
	}
	s.invalidateTree(ctx, sessionID)

	return &SaveResult{
		Saved:    len(rows),
		Warnings: hierarchy.SiblingOverruns(data.forest, engine.Allocs),
	}, nil
}

// UpsertOne 单节点重录百分比：只重算该节点自身。
// 后代金额不自动刷新（已知的一致性缺口），需要时由调用方发起子树重算。
func (s *AllocationService) UpsertOne(ctx context.Context, userID, sessionID, period, path string, percentage float64) (*entity.Allocation, []hierarchy.Overrun, error) {
	data, err := s.loadData(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOwnerDraft(data.session, userID); err != nil {
		return nil, nil, err
	}
	if _, ok := budgetMap(data.budgets)[period]; !ok {
		return nil, nil, fmt.Errorf("%w: 期间不存在: %s", ErrNotFound, periodLabel(period))
	}
	node := data.forest.Node(path)
	if node == nil {
		return nil, nil, validationf("未知的层级路径: %s", path)
	}
	bp, err := percentToBasisPoints(percentage)
	if err != nil {
		return nil, nil, err
	}

	engine := &hierarchy.Engine{
		Budgets: budgetMap(data.budgets),
		Allocs:  allocSet(data.allocs),
	}
	v := engine.Resolve(node.Path, period, bp, data.forest.UnitPriceSum(node.Key))

	now := time.Now()
	alloc := &entity.Allocation{
		ID:            newID(),
		SessionID:     sessionID,
		HierarchyPath: node.Key,
		Level:         node.Level,
		Percentage:    v.Percentage,
		Amount:        v.Amount,
		Quantity:      v.Quantity,
		Period:        period,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.allocRepo.Upsert(ctx, alloc); err != nil {
		return nil, nil, fmt.Errorf("保存分配失败: %w", err)
	}
	s.invalidateTree(ctx, sessionID)

	warnings := filterOverruns(hierarchy.SiblingOverruns(data.forest, engine.Allocs), period)
	return alloc, warnings, nil
}

// RecomputeSubtree 显式子树重算：从path（空串表示全部根）起自顶向下，
// 用已存储的百分比逐层重算金额/数量并回写。返回更新的行数。
// 祖先百分比变更后的刷新入口，预算变更也走这里。
func (s *AllocationService) RecomputeSubtree(ctx context.Context, userID, sessionID, period, path string) (int, error) {
	data, err := s.loadData(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := requireOwnerDraft(data.session, userID); err != nil {
		return 0, err
	}
	return s.recompute(ctx, data, period, path)
}

// recompute 权限校验后的重算本体（期间预算更新时由PeriodService复用）
func (s *AllocationService) recompute(ctx context.Context, data *sessionData, period, path string) (int, error) {
	if _, ok := budgetMap(data.budgets)[period]; !ok {
		return 0, fmt.Errorf("%w: 期间不存在: %s", ErrNotFound, periodLabel(period))
	}

	var starts []*hierarchy.Node
	if path == "" {
		starts = data.forest.Roots
	} else {
		node := data.forest.Node(path)
		if node == nil {
			return 0, validationf("未知的层级路径: %s", path)
		}
		starts = []*hierarchy.Node{node}
	}

	engine := &hierarchy.Engine{
		Budgets: budgetMap(data.budgets),
		Allocs:  allocSet(data.allocs),
	}

	now := time.Now()
	var updated []entity.Allocation
	var walk func(n *hierarchy.Node)
	walk = func(n *hierarchy.Node) {
		if prev, ok := engine.Allocs.Get(n.Key, period); ok {
			v := engine.Resolve(n.Path, period, prev.Percentage, data.forest.UnitPriceSum(n.Key))
			updated = append(updated, entity.Allocation{
				SessionID:     data.session.ID,
				HierarchyPath: n.Key,
				Level:         n.Level,
				Percentage:    v.Percentage,
				Amount:        v.Amount,
				Quantity:      v.Quantity,
				Period:        period,
				UpdatedAt:     now,
			})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, n := range starts {
		walk(n)
	}

	if len(updated) > 0 {
		err := s.allocRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, u := range updated {
				if err := tx.Model(&entity.Allocation{}).
					Where("session_id = ? AND hierarchy_path = ? AND period = ?", u.SessionID, u.HierarchyPath, u.Period).
					Updates(map[string]interface{}{
						"percentage": u.Percentage,
						"amount":     u.Amount,
						"quantity":   u.Quantity,
						"updated_at": u.UpdatedAt,
					}).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("重算分配失败: %w", err)
		}
	}
	s.invalidateTree(ctx, data.session.ID)
	return len(updated), nil
}

func (s *AllocationService) invalidateTree(ctx context.Context, sessionID string) {
	if s.rdb != nil {
		s.rdb.Del(ctx, treeCacheKey(sessionID))
	}
}

// ========== 共用转换 ==========

// percentToBasisPoints 百分数 → 万分比，四舍五入到两位小数精度
func percentToBasisPoints(p float64) (int, error) {
	bp := int(math.Round(p * 100))
	if bp < 0 || bp > hierarchy.MaxBasisPoints {
		return 0, validationf("百分比必须在0到100之间: %g", p)
	}
	return bp, nil
}

// parseAmount 边界上的金额是十进制字符串形式的整数（防大数精度丢失）
func parseAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid amount: %s", s)
	}
	return v, nil
}

func periodLabel(period string) string {
	if period == entity.DefaultPeriod {
		return "default"
	}
	return period
}

func filterOverruns(all []hierarchy.Overrun, period string) []hierarchy.Overrun {
	var out []hierarchy.Overrun
	for _, o := range all {
		if o.Period == period {
			out = append(out, o)
		}
	}
	return out
}
