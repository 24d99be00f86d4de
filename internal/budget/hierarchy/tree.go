package hierarchy

// Sku 树构建的输入记录
type Sku struct {
	Code      string
	UnitPrice int64
	Values    map[string]string
}

// PerPeriod 某期间在一个节点上的分配值。
// Percentage 为万分比（0..10000）。
type PerPeriod struct {
	Percentage int   `json:"percentage"`
	Amount     int64 `json:"amount,string"`
	Quantity   int64 `json:"quantity"`
}

// Node 派生的层级节点。每次读取时从SKU+分配记录重建，不落库。
type Node struct {
	Path        Path                 `json:"-"`
	Key         string               `json:"path"`
	Level       int                  `json:"level"`
	DisplayName string               `json:"display_name"`
	UnitPrice   int64                `json:"unitprice,string,omitempty"`
	IsSku       bool                 `json:"is_sku"`
	Children    []*Node              `json:"children,omitempty"`
	PerPeriod   map[string]PerPeriod `json:"per_period,omitempty"`
}

// Forest 节点森林及路径索引
type Forest struct {
	Roots []*Node

	index    map[string]*Node
	priceSum map[string]int64
}

// BuildTree 从SKU记录和层级定义构建节点森林。
// 节点按扁平路径去重，子节点顺序为首次出现顺序（不重排）。
// 缺失层级值的SKU只是路径段变少，从不拒绝。
func BuildTree(skus []Sku, defs []Definition) *Forest {
	f := &Forest{
		index:    make(map[string]*Node),
		priceSum: make(map[string]int64),
	}

	for _, sku := range skus {
		seen := make(map[string]bool)
		var deepest *Node
		for d := 1; d <= len(defs); d++ {
			p := BuildPath(sku.Values, defs, d)
			if len(p) == 0 {
				continue
			}
			key := p.String()
			node := f.ensureNode(p, key)
			if !seen[key] {
				seen[key] = true
				f.priceSum[key] += sku.UnitPrice
			}
			deepest = node
		}

		leafPath := SkuPath(sku.Values, defs, sku.Code)
		leafKey := leafPath.String()
		leaf, ok := f.index[leafKey]
		if !ok {
			leaf = &Node{
				Path:        leafPath,
				Key:         leafKey,
				Level:       len(leafPath),
				DisplayName: leafPath.Last(),
				UnitPrice:   sku.UnitPrice,
				IsSku:       true,
				PerPeriod:   make(map[string]PerPeriod),
			}
			f.index[leafKey] = leaf
			if deepest != nil {
				deepest.Children = append(deepest.Children, leaf)
			} else {
				f.Roots = append(f.Roots, leaf)
			}
		}
		f.priceSum[leafKey] += sku.UnitPrice
	}

	return f
}

func (f *Forest) ensureNode(p Path, key string) *Node {
	if node, ok := f.index[key]; ok {
		return node
	}
	node := &Node{
		Path:        p,
		Key:         key,
		Level:       len(p),
		DisplayName: p.Last(),
		PerPeriod:   make(map[string]PerPeriod),
	}
	f.index[key] = node
	if parent := p.Parent(); parent == nil {
		f.Roots = append(f.Roots, node)
	} else {
		// 中间层按深度递增创建，父节点必然已存在
		pn := f.index[parent.String()]
		pn.Children = append(pn.Children, node)
	}
	return node
}

// Node 按扁平路径查找节点，不存在返回nil。
func (f *Forest) Node(key string) *Node {
	return f.index[key]
}

// UnitPriceSum 该路径关联SKU（派生路径在此层级等于该路径的SKU）的单价合计
func (f *Forest) UnitPriceSum(key string) int64 {
	return f.priceSum[key]
}

// Walk 先序遍历全部节点
func (f *Forest) Walk(fn func(*Node)) {
	var rec func(*Node)
	rec = func(n *Node) {
		fn(n)
		for _, c := range n.Children {
			rec(c)
		}
	}
	for _, r := range f.Roots {
		rec(r)
	}
}

// Attach 把分配记录挂到对应节点上（path → period → 值）。
// 找不到节点的记录忽略（例如结构变更后的残留路径）。
func (f *Forest) Attach(allocs map[string]map[string]PerPeriod) {
	for key, periods := range allocs {
		node, ok := f.index[key]
		if !ok {
			continue
		}
		for period, v := range periods {
			node.PerPeriod[period] = v
		}
	}
}

// SoleChild 判断该节点是否为其父节点的唯一子节点（根节点：唯一根）。
// 期间占位分配的100%默认值依据此判定。
func (f *Forest) SoleChild(n *Node) bool {
	parent := n.Path.Parent()
	if parent == nil {
		return len(f.Roots) == 1
	}
	pn := f.index[parent.String()]
	if pn == nil {
		return false
	}
	return len(pn.Children) == 1
}
