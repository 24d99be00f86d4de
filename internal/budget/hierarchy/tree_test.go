package hierarchy

import "testing"

func sampleDefs() []Definition {
	return []Definition{
		{Level: 1, ColumnName: "category"},
		{Level: 2, ColumnName: "color"},
	}
}

func sampleSkus() []Sku {
	return []Sku{
		{Code: "SKU001", UnitPrice: 1000, Values: map[string]string{"category": "A", "color": "Red"}},
		{Code: "SKU002", UnitPrice: 2000, Values: map[string]string{"category": "A", "color": "Blue"}},
		{Code: "SKU003", UnitPrice: 500, Values: map[string]string{"category": "B", "color": "Red"}},
	}
}

func TestBuildTreeStructure(t *testing.T) {
	f := BuildTree(sampleSkus(), sampleDefs())

	if len(f.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(f.Roots))
	}
	if f.Roots[0].Key != "A" || f.Roots[1].Key != "B" {
		t.Errorf("roots order = %s, %s", f.Roots[0].Key, f.Roots[1].Key)
	}

	a := f.Node("A")
	if len(a.Children) != 2 {
		t.Fatalf("A should have 2 children, got %d", len(a.Children))
	}
	red := f.Node("A/Red")
	if red == nil || red.Level != 2 || red.DisplayName != "Red" {
		t.Fatalf("A/Red node = %+v", red)
	}
	if len(red.Children) != 1 || !red.Children[0].IsSku {
		t.Fatalf("A/Red should have one SKU leaf")
	}
	leaf := f.Node("A/Red/SKU001")
	if leaf == nil || leaf.UnitPrice != 1000 || leaf.Level != 3 {
		t.Fatalf("leaf = %+v", leaf)
	}
}

func TestBuildTreeUnitPriceSum(t *testing.T) {
	f := BuildTree(sampleSkus(), sampleDefs())

	// A 下有 SKU001(1000) + SKU002(2000)
	if got := f.UnitPriceSum("A"); got != 3000 {
		t.Errorf("UnitPriceSum(A) = %d, want 3000", got)
	}
	if got := f.UnitPriceSum("A/Red"); got != 1000 {
		t.Errorf("UnitPriceSum(A/Red) = %d, want 1000", got)
	}
	if got := f.UnitPriceSum("A/Red/SKU001"); got != 1000 {
		t.Errorf("UnitPriceSum(leaf) = %d, want 1000", got)
	}
	if got := f.UnitPriceSum("nonexistent"); got != 0 {
		t.Errorf("UnitPriceSum(missing) = %d, want 0", got)
	}
}

func TestBuildTreeMissingLevelValues(t *testing.T) {
	skus := []Sku{
		{Code: "SKU010", UnitPrice: 100, Values: map[string]string{"color": "Red"}},
		{Code: "SKU011", UnitPrice: 100, Values: map[string]string{}},
	}
	f := BuildTree(skus, sampleDefs())

	// category缺失：Red成为根；全缺失：SKU编码直接成为根
	if f.Node("Red") == nil {
		t.Fatal("Red should exist as root")
	}
	if f.Node("Red/SKU010") == nil {
		t.Fatal("Red/SKU010 leaf missing")
	}
	bare := f.Node("SKU011")
	if bare == nil || !bare.IsSku || bare.Level != 1 {
		t.Fatalf("bare SKU leaf = %+v", bare)
	}
}

func TestBuildTreeDuplicateSkuCode(t *testing.T) {
	skus := []Sku{
		{Code: "SKU001", UnitPrice: 100, Values: map[string]string{"category": "A"}},
		{Code: "SKU001", UnitPrice: 100, Values: map[string]string{"category": "A"}},
	}
	f := BuildTree(skus, sampleDefs())

	a := f.Node("A")
	if len(a.Children) != 1 {
		t.Errorf("duplicate SKU should not create a second leaf, got %d children", len(a.Children))
	}
}

func TestWalkPreorder(t *testing.T) {
	f := BuildTree(sampleSkus(), sampleDefs())
	var keys []string
	f.Walk(func(n *Node) { keys = append(keys, n.Key) })

	want := []string{"A", "A/Red", "A/Red/SKU001", "A/Blue", "A/Blue/SKU002", "B", "B/Red", "B/Red/SKU003"}
	if len(keys) != len(want) {
		t.Fatalf("walk visited %d nodes, want %d: %v", len(keys), len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("walk[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestAttachIgnoresStalePaths(t *testing.T) {
	f := BuildTree(sampleSkus(), sampleDefs())
	set := make(AllocationSet)
	set.Set("A", "", PerPeriod{Percentage: 10000, Amount: 500})
	set.Set("ghost/path", "", PerPeriod{Percentage: 5000})

	f.Attach(set)

	if v, ok := f.Node("A").PerPeriod[""]; !ok || v.Amount != 500 {
		t.Errorf("A per-period = %+v", f.Node("A").PerPeriod)
	}
}

func TestSoleChild(t *testing.T) {
	f := BuildTree(sampleSkus(), sampleDefs())

	if f.SoleChild(f.Node("A")) {
		t.Error("A is one of two roots, not sole")
	}
	if f.SoleChild(f.Node("A/Red")) {
		t.Error("A/Red has a sibling")
	}
	if !f.SoleChild(f.Node("B/Red")) {
		t.Error("B/Red is the only child of B")
	}
	if !f.SoleChild(f.Node("A/Red/SKU001")) {
		t.Error("SKU001 is the only child of A/Red")
	}

	single := BuildTree([]Sku{{Code: "S1", UnitPrice: 1, Values: map[string]string{"category": "X"}}}, sampleDefs())
	if !single.SoleChild(single.Node("X")) {
		t.Error("single root should be sole")
	}
}
