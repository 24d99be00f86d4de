// Package hierarchy 层级预算分配的纯计算核心：
// 路径模型、树构建和百分比级联，不依赖存储层。
package hierarchy

import "strings"

// Separator 扁平路径键的分隔符
const Separator = "/"

// Path 结构化层级路径。内部始终以段序列表示，
// 仅在存储/API边界通过 String 压扁为 "/" 连接的键。
// 压扁不做转义：段内含 "/" 时可能与其他路径冲突（已知限制，见 ParsePath）。
type Path []string

// String 返回 "/" 连接的扁平键。空路径返回空串。
func (p Path) String() string {
	return strings.Join(p, Separator)
}

// Parent 返回去掉最后一段的父路径；根或空路径返回nil。
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1]
}

// Last 返回最后一段（节点显示名）。
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Append 返回追加一段后的新路径。
func (p Path) Append(segment string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, segment)
}

// ParsePath 从扁平键还原路径。段内含 "/" 的值在压扁时不转义，
// 因此无法无损还原——调用方只应对本包生成的键使用。
func ParsePath(flat string) Path {
	if flat == "" {
		return nil
	}
	return Path(strings.Split(flat, Separator))
}

// Definition 层级列定义（按level升序，level从1开始连续）
type Definition struct {
	Level      int
	ColumnName string
}

// BuildPath 取前depth个定义，按序取出record中对应列的值，
// 跳过缺失/空值后连接。所有层级都缺失时返回空路径。
func BuildPath(values map[string]string, defs []Definition, depth int) Path {
	if depth > len(defs) {
		depth = len(defs)
	}
	var p Path
	for i := 0; i < depth; i++ {
		v := values[defs[i].ColumnName]
		if v == "" {
			continue
		}
		p = append(p, v)
	}
	return p
}

// SkuPath SKU叶子路径：全部层级值 + SKU编码。
// 层级值全部缺失时路径退化为仅SKU编码。
func SkuPath(values map[string]string, defs []Definition, skuCode string) Path {
	return BuildPath(values, defs, len(defs)).Append(skuCode)
}
