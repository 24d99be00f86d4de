package service

import (
	"strings"
	"testing"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/csvio"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/hierarchy"
)

func decodeTable(t *testing.T, csv string) *csvio.Table {
	t.Helper()
	table, err := csvio.Decode(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return table
}

func TestParseImportTable(t *testing.T) {
	table := decodeTable(t, "category,color,sku_code,unitprice\nA,Red,SKU001,1000\nA,Blue,SKU002,2000\n")
	columns, rows, dropped, err := parseImportTable(table)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(columns) != 2 || columns[0] != "category" || columns[1] != "color" {
		t.Errorf("columns = %v", columns)
	}
	if len(rows) != 2 || dropped != 0 {
		t.Fatalf("rows=%d dropped=%d", len(rows), dropped)
	}
	if rows[0].SkuCode != "SKU001" || rows[0].UnitPrice != 1000 || rows[0].Values["color"] != "Red" {
		t.Errorf("row0 = %+v", rows[0])
	}
}

func TestParseImportTableMissingReservedColumns(t *testing.T) {
	table := decodeTable(t, "category,sku_code\nA,SKU001\n")
	_, _, _, err := parseImportTable(table)
	if err == nil {
		t.Fatal("expected error for missing unitprice column")
	}
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestParseImportTableDropsBadRows(t *testing.T) {
	csv := "sku_code,unitprice,category\n" +
		"SKU001,1000,A\n" + // ok
		",1000,A\n" + // 缺编码
		"SKU002,abc,A\n" + // 单价无法解析
		"SKU003,-5,A\n" + // 负单价
		"SKU001,2000,B\n" // 重复编码
	table := decodeTable(t, csv)
	_, rows, dropped, err := parseImportTable(table)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 || dropped != 4 {
		t.Errorf("rows=%d dropped=%d", len(rows), dropped)
	}
	if rows[0].Values["category"] != "A" {
		t.Errorf("duplicate should keep first row, got %+v", rows[0])
	}
}

func TestParseImportTableMissingValuesOmitted(t *testing.T) {
	table := decodeTable(t, "category,color,sku_code,unitprice\nA,,SKU001,100\n")
	_, rows, _, err := parseImportTable(table)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := rows[0].Values["color"]; ok {
		t.Error("empty cell should not be stored as a hierarchy value")
	}
}

func TestCumulativeFraction(t *testing.T) {
	set := make(hierarchy.AllocationSet)
	set.Set("A", "", hierarchy.PerPeriod{Percentage: 10000})
	set.Set("A/Red", "", hierarchy.PerPeriod{Percentage: 4000})
	set.Set("A/Red/SKU001", "", hierarchy.PerPeriod{Percentage: 10000})

	leaf := hierarchy.Path{"A", "Red", "SKU001"}
	frac, ok := cumulativeFraction(leaf, "", set)
	if !ok {
		t.Fatal("expected fraction")
	}
	if frac < 0.3999 || frac > 0.4001 {
		t.Errorf("frac = %f, want 0.4", frac)
	}

	// 祖先缺记录 → 空白
	if _, ok := cumulativeFraction(hierarchy.Path{"B", "SKU002"}, "", set); ok {
		t.Error("missing ancestor should yield no fraction")
	}

	// 祖先0% → 空白
	set.Set("A/Blue", "", hierarchy.PerPeriod{Percentage: 0})
	set.Set("A/Blue/SKU003", "", hierarchy.PerPeriod{Percentage: 10000})
	if _, ok := cumulativeFraction(hierarchy.Path{"A", "Blue", "SKU003"}, "", set); ok {
		t.Error("zero ancestor should yield no fraction")
	}
}

func TestBuildExportMatrix(t *testing.T) {
	defs := []hierarchy.Definition{
		{Level: 1, ColumnName: "category"},
		{Level: 2, ColumnName: "color"},
	}
	skus := []entity.SkuData{
		{SkuCode: "SKU001", UnitPrice: 1000, HierarchyValues: map[string]string{"category": "A", "color": "Red"}},
		{SkuCode: "SKU002", UnitPrice: 2000, HierarchyValues: map[string]string{"category": "A", "color": "Blue"}},
	}
	set := make(hierarchy.AllocationSet)
	for _, k := range []string{"A"} {
		set.Set(k, "", hierarchy.PerPeriod{Percentage: 10000})
	}
	set.Set("A/Red", "", hierarchy.PerPeriod{Percentage: 4000})
	set.Set("A/Red/SKU001", "", hierarchy.PerPeriod{Percentage: 10000})
	// SKU002 的 A/Blue 层缺记录 → 百分比列留空

	budgets := map[string]int64{"": 10000000}
	header, rows := buildExportMatrix(defs, skus, set, budgets, []string{""})

	wantHeader := []string{"category", "color", "sku_code", "default_percent", "unitprice", "total_amount", "total_quantity"}
	if len(header) != len(wantHeader) {
		t.Fatalf("header = %v", header)
	}
	for i := range wantHeader {
		if header[i] != wantHeader[i] {
			t.Errorf("header[%d] = %q, want %q", i, header[i], wantHeader[i])
		}
	}

	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	// SKU001: 累计 100%×40%×100% = 40%，金额 floor(1000万×0.4)=400万，数量 400万/1000=4000
	r := rows[0]
	if r[3] != "40.0000" {
		t.Errorf("percent cell = %q, want 40.0000", r[3])
	}
	if r[5] != "4000000" || r[6] != "4000" {
		t.Errorf("totals = %q/%q, want 4000000/4000", r[5], r[6])
	}
	// SKU002: 链路断裂 → 空白百分比、0合计
	r2 := rows[1]
	if r2[3] != "" || r2[5] != "0" || r2[6] != "0" {
		t.Errorf("broken chain row = %v", r2)
	}
}

func TestBuildExportMatrixMultiPeriodTotals(t *testing.T) {
	defs := []hierarchy.Definition{{Level: 1, ColumnName: "category"}}
	skus := []entity.SkuData{
		{SkuCode: "SKU001", UnitPrice: 100, HierarchyValues: map[string]string{"category": "A"}},
	}
	set := make(hierarchy.AllocationSet)
	for _, period := range []string{"", "2025H2"} {
		set.Set("A", period, hierarchy.PerPeriod{Percentage: 10000})
		set.Set("A/SKU001", period, hierarchy.PerPeriod{Percentage: 5000})
	}
	budgets := map[string]int64{"": 1000, "2025H2": 3000}

	header, rows := buildExportMatrix(defs, skus, set, budgets, []string{"", "2025H2"})
	if header[2] != "default_percent" || header[3] != "2025H2_percent" {
		t.Errorf("period headers = %v", header)
	}
	// 各期间 50%：500 + 1500 = 2000；数量 5 + 15 = 20
	r := rows[0]
	if r[5] != "2000" {
		t.Errorf("total_amount = %q, want 2000", r[5])
	}
	if r[6] != "20" {
		t.Errorf("total_quantity = %q, want 20", r[6])
	}
}

func TestPercentToBasisPoints(t *testing.T) {
	tests := []struct {
		in      float64
		want    int
		wantErr bool
	}{
		{40, 4000, false},
		{100, 10000, false},
		{0, 0, false},
		{33.33, 3333, false},
		{33.335, 3334, false},
		{-1, 0, true},
		{100.01, 0, true},
	}
	for _, tt := range tests {
		got, err := percentToBasisPoints(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("percentToBasisPoints(%v) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("percentToBasisPoints(%v) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := parseAmount("10000000"); err != nil || v != 10000000 {
		t.Errorf("parseAmount = %d, %v", v, err)
	}
	for _, bad := range []string{"", "abc", "-5", "1.5"} {
		if _, err := parseAmount(bad); err == nil {
			t.Errorf("parseAmount(%q) expected error", bad)
		}
	}
}

func TestSortedPeriodsDefaultFirst(t *testing.T) {
	budgets := []entity.PeriodBudget{
		{Period: "2025H2"},
		{Period: ""},
		{Period: "2025H1"},
	}
	got := sortedPeriods(budgets)
	want := []string{"", "2025H1", "2025H2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedPeriods = %v, want %v", got, want)
		}
	}
}

func TestPeriodLabel(t *testing.T) {
	if periodLabel("") != "default" {
		t.Errorf("empty period label = %q", periodLabel(""))
	}
	if periodLabel("2025H1") != "2025H1" {
		t.Errorf("named period label = %q", periodLabel("2025H1"))
	}
}
