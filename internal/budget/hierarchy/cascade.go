package hierarchy

import "sort"

// MaxBasisPoints 100% 对应的万分比
const MaxBasisPoints = 10000

// ResolveAmount 由父节点金额和万分比计算本节点金额。
// 整数向下取整，不做余数再分配：同级100%合计时子金额之和
// 通常不等于父金额，属接受行为。
func ResolveAmount(parentAmount int64, basisPoints int) int64 {
	if parentAmount <= 0 || basisPoints <= 0 {
		return 0
	}
	return parentAmount * int64(basisPoints) / MaxBasisPoints
}

// Quantity 数量 = floor(金额 / 关联SKU单价合计)。合计为0时返回0。
// 节点覆盖多个SKU时把单价合计当作名义捆绑单价，是近似值而非逐SKU拆分。
func Quantity(amount, unitPriceSum int64) int64 {
	if unitPriceSum <= 0 || amount <= 0 {
		return 0
	}
	return amount / unitPriceSum
}

// AllocationSet 既有分配记录：扁平路径 → 期间 → 值
type AllocationSet map[string]map[string]PerPeriod

// Get 取某路径某期间的记录
func (s AllocationSet) Get(key, period string) (PerPeriod, bool) {
	periods, ok := s[key]
	if !ok {
		return PerPeriod{}, false
	}
	v, ok := periods[period]
	return v, ok
}

// Set 写入某路径某期间的记录
func (s AllocationSet) Set(key, period string, v PerPeriod) {
	periods, ok := s[key]
	if !ok {
		periods = make(map[string]PerPeriod)
		s[key] = periods
	}
	periods[period] = v
}

// Engine 级联计算引擎：在一份既有分配快照上解析金额。
// 祖先百分比变更不会自动重算后代，后代金额只在重新录入时更新；
// 整树刷新由调用方显式发起（见 service 的 RecomputeSubtree）。
type Engine struct {
	// Budgets 期间 → 总预算
	Budgets map[string]int64
	// Allocs 既有分配快照
	Allocs AllocationSet
}

// ParentAmount 父节点金额：根节点取期间总预算；
// 非根节点取父路径既有分配的金额，缺失时宽松回退到期间总预算。
func (e *Engine) ParentAmount(p Path, period string) int64 {
	parent := p.Parent()
	if parent == nil {
		return e.Budgets[period]
	}
	if v, ok := e.Allocs.Get(parent.String(), period); ok {
		return v.Amount
	}
	return e.Budgets[period]
}

// Resolve 从百分比解析出完整的分配值并写回快照
func (e *Engine) Resolve(p Path, period string, basisPoints int, unitPriceSum int64) PerPeriod {
	amount := ResolveAmount(e.ParentAmount(p, period), basisPoints)
	v := PerPeriod{
		Percentage: basisPoints,
		Amount:     amount,
		Quantity:   Quantity(amount, unitPriceSum),
	}
	e.Allocs.Set(p.String(), period, v)
	return v
}

// Overrun 同级百分比超限警告（仅提示，不拒绝保存）
type Overrun struct {
	ParentPath string `json:"parent_path"`
	Period     string `json:"period"`
	// TotalPercentage 子节点百分比合计（万分比）
	TotalPercentage int `json:"total_percentage"`
}

// SiblingOverruns 检查每个父节点下子节点的百分比合计，
// 超过100%的以警告形式返回。根节点集合视作一组同级节点。
func SiblingOverruns(f *Forest, allocs AllocationSet) []Overrun {
	var out []Overrun
	check := func(parentKey string, children []*Node) {
		totals := make(map[string]int)
		for _, c := range children {
			if periods, ok := allocs[c.Key]; ok {
				for period, v := range periods {
					totals[period] += v.Percentage
				}
			}
		}
		periods := make([]string, 0, len(totals))
		for period := range totals {
			periods = append(periods, period)
		}
		sort.Strings(periods)
		for _, period := range periods {
			if totals[period] > MaxBasisPoints {
				out = append(out, Overrun{
					ParentPath:      parentKey,
					Period:          period,
					TotalPercentage: totals[period],
				})
			}
		}
	}

	check("", f.Roots)
	f.Walk(func(n *Node) {
		if len(n.Children) > 0 {
			check(n.Key, n.Children)
		}
	})
	return out
}
