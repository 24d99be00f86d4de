package hierarchy

import "testing"

func TestResolveAmountFloors(t *testing.T) {
	tests := []struct {
		parent int64
		bp     int
		want   int64
	}{
		{10000000, 10000, 10000000},
		{10000000, 4000, 4000000},
		{1000, 3333, 333},
		{999, 5000, 499},
		{0, 5000, 0},
		{1000, 0, 0},
		{-5, 5000, 0},
	}
	for _, tt := range tests {
		if got := ResolveAmount(tt.parent, tt.bp); got != tt.want {
			t.Errorf("ResolveAmount(%d, %d) = %d, want %d", tt.parent, tt.bp, got, tt.want)
		}
	}
}

func TestQuantity(t *testing.T) {
	if got := Quantity(4000000, 1000); got != 4000 {
		t.Errorf("Quantity = %d, want 4000", got)
	}
	if got := Quantity(999, 1000); got != 0 {
		t.Errorf("Quantity floor = %d, want 0", got)
	}
	if got := Quantity(1000, 0); got != 0 {
		t.Errorf("Quantity with zero price sum = %d, want 0", got)
	}
}

func TestEngineParentAmount(t *testing.T) {
	e := &Engine{
		Budgets: map[string]int64{"": 10000000},
		Allocs:  make(AllocationSet),
	}
	e.Allocs.Set("A", "", PerPeriod{Percentage: 10000, Amount: 10000000})

	// 根节点 → 总预算
	if got := e.ParentAmount(Path{"A"}, ""); got != 10000000 {
		t.Errorf("root parent = %d", got)
	}
	// 子节点 → 父节点既有金额
	if got := e.ParentAmount(Path{"A", "Red"}, ""); got != 10000000 {
		t.Errorf("child parent = %d", got)
	}
	// 父无记录 → 回退总预算
	if got := e.ParentAmount(Path{"B", "Red"}, ""); got != 10000000 {
		t.Errorf("fallback parent = %d", got)
	}
}

// 预算1000万，两层(category/color)，SKU001=A/Red单价1000，SKU002=A/Blue单价2000。
// A 100% → 1000万；A/Red 40% → 400万 数量4000；A/Blue 60% → 600万 数量3000。
func TestEngineCascadeScenario(t *testing.T) {
	defs := []Definition{
		{Level: 1, ColumnName: "category"},
		{Level: 2, ColumnName: "color"},
	}
	skus := []Sku{
		{Code: "SKU001", UnitPrice: 1000, Values: map[string]string{"category": "A", "color": "Red"}},
		{Code: "SKU002", UnitPrice: 2000, Values: map[string]string{"category": "A", "color": "Blue"}},
	}
	f := BuildTree(skus, defs)

	e := &Engine{
		Budgets: map[string]int64{"": 10000000},
		Allocs:  make(AllocationSet),
	}

	a := e.Resolve(Path{"A"}, "", 10000, f.UnitPriceSum("A"))
	if a.Amount != 10000000 {
		t.Errorf("A amount = %d, want 10000000", a.Amount)
	}

	red := e.Resolve(Path{"A", "Red"}, "", 4000, f.UnitPriceSum("A/Red"))
	if red.Amount != 4000000 || red.Quantity != 4000 {
		t.Errorf("A/Red = %+v, want amount 4000000 qty 4000", red)
	}

	blue := e.Resolve(Path{"A", "Blue"}, "", 6000, f.UnitPriceSum("A/Blue"))
	if blue.Amount != 6000000 || blue.Quantity != 3000 {
		t.Errorf("A/Blue = %+v, want amount 6000000 qty 3000", blue)
	}

	// 40%+60% 恰好100%，不应有超限警告
	if warns := SiblingOverruns(f, e.Allocs); len(warns) != 0 {
		t.Errorf("unexpected overruns: %+v", warns)
	}
}

func TestSiblingOverruns(t *testing.T) {
	defs := []Definition{{Level: 1, ColumnName: "category"}}
	skus := []Sku{
		{Code: "S1", UnitPrice: 1, Values: map[string]string{"category": "A"}},
		{Code: "S2", UnitPrice: 1, Values: map[string]string{"category": "B"}},
	}
	f := BuildTree(skus, defs)

	set := make(AllocationSet)
	set.Set("A", "", PerPeriod{Percentage: 7000})
	set.Set("B", "", PerPeriod{Percentage: 5000})
	set.Set("A", "2025H1", PerPeriod{Percentage: 6000})
	set.Set("B", "2025H1", PerPeriod{Percentage: 4000})

	warns := SiblingOverruns(f, set)
	if len(warns) != 1 {
		t.Fatalf("expected 1 overrun, got %d: %+v", len(warns), warns)
	}
	w := warns[0]
	if w.ParentPath != "" || w.Period != "" || w.TotalPercentage != 12000 {
		t.Errorf("overrun = %+v", w)
	}
}

func TestSiblingOverrunsNestedLevel(t *testing.T) {
	defs := []Definition{
		{Level: 1, ColumnName: "category"},
		{Level: 2, ColumnName: "color"},
	}
	skus := []Sku{
		{Code: "S1", UnitPrice: 1, Values: map[string]string{"category": "A", "color": "Red"}},
		{Code: "S2", UnitPrice: 1, Values: map[string]string{"category": "A", "color": "Blue"}},
	}
	f := BuildTree(skus, defs)

	set := make(AllocationSet)
	set.Set("A", "", PerPeriod{Percentage: 10000})
	set.Set("A/Red", "", PerPeriod{Percentage: 8000})
	set.Set("A/Blue", "", PerPeriod{Percentage: 5000})

	warns := SiblingOverruns(f, set)
	if len(warns) != 1 {
		t.Fatalf("expected 1 overrun, got %d: %+v", len(warns), warns)
	}
	if warns[0].ParentPath != "A" || warns[0].TotalPercentage != 13000 {
		t.Errorf("overrun = %+v", warns[0])
	}
}
