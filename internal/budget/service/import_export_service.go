package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/csvio"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/hierarchy"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/repository"
	"github.com/xuri/excelize/v2"
)

// CSV保留列：除此之外的列按出现顺序成为层级列
const (
	reservedSkuCode   = "sku_code"
	reservedUnitPrice = "unitprice"
)

// ImportExportService CSV/XLSX 边界编解码的编排
type ImportExportService struct {
	sessionRepo *repository.SessionRepository
	skuRepo     *repository.SkuRepository
	allocRepo   *repository.AllocationRepository
	allocSvc    *AllocationService
}

func NewImportExportService(sessionRepo *repository.SessionRepository, skuRepo *repository.SkuRepository, allocRepo *repository.AllocationRepository, allocSvc *AllocationService) *ImportExportService {
	return &ImportExportService{
		sessionRepo: sessionRepo,
		skuRepo:     skuRepo,
		allocRepo:   allocRepo,
		allocSvc:    allocSvc,
	}
}

// ImportResult 导入结果统计
type ImportResult struct {
	Imported int `json:"imported"`
	Dropped  int `json:"dropped"`
	Columns  int `json:"columns"`
}

// importRow 解析通过的一行
type importRow struct {
	SkuCode   string
	UnitPrice int64
	Values    map[string]string
}

// parseImportTable 表头驱动解析：保留列之外的列按出现顺序定层级。
// 缺失/无法解析 sku_code 或 unitprice 的行静默丢弃；
// 重复的 sku_code 保留首行，其余丢弃。
func parseImportTable(table *csvio.Table) ([]string, []importRow, int, error) {
	hasCode, hasPrice := false, false
	var columns []string
	for _, col := range table.Header {
		switch col {
		case reservedSkuCode:
			hasCode = true
		case reservedUnitPrice:
			hasPrice = true
		case "":
			// 空表头列忽略
		default:
			columns = append(columns, col)
		}
	}
	if !hasCode || !hasPrice {
		return nil, nil, 0, validationf("CSV缺少必需列: %s / %s", reservedSkuCode, reservedUnitPrice)
	}

	seen := make(map[string]bool)
	var rows []importRow
	dropped := 0
	for _, raw := range table.Rows {
		code := raw[reservedSkuCode]
		price, err := strconv.ParseInt(raw[reservedUnitPrice], 10, 64)
		if code == "" || err != nil || price < 0 || seen[code] {
			dropped++
			continue
		}
		seen[code] = true
		values := make(map[string]string)
		for _, col := range columns {
			if v := raw[col]; v != "" {
				values[col] = v
			}
		}
		rows = append(rows, importRow{SkuCode: code, UnitPrice: price, Values: values})
	}
	return columns, rows, dropped, nil
}

// Import 破坏性导入：既有定义/SKU/分配在同一事务内整体替换
func (s *ImportExportService) Import(ctx context.Context, userID, sessionID string, r io.Reader) (*ImportResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 会话不存在", ErrNotFound)
		}
		return nil, err
	}
	if err := requireOwnerDraft(session, userID); err != nil {
		return nil, err
	}

	table, err := csvio.Decode(r)
	if err != nil {
		return nil, validationf("CSV解析失败: %v", err)
	}
	columns, rows, dropped, err := parseImportTable(table)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	defs := make([]entity.HierarchyDefinition, len(columns))
	for i, col := range columns {
		defs[i] = entity.HierarchyDefinition{
			ID:           newID(),
			SessionID:    sessionID,
			Level:        i + 1,
			ColumnName:   col,
			DisplayOrder: i,
			CreatedAt:    now,
		}
	}
	skus := make([]entity.SkuData, len(rows))
	for i, row := range rows {
		skus[i] = entity.SkuData{
			ID:              newID(),
			SessionID:       sessionID,
			SkuCode:         row.SkuCode,
			UnitPrice:       row.UnitPrice,
			HierarchyValues: row.Values,
			CreatedAt:       now,
		}
	}

	if err := s.skuRepo.ReplaceImport(ctx, sessionID, defs, skus); err != nil {
		return nil, fmt.Errorf("导入失败: %w", err)
	}
	s.allocSvc.invalidateTree(ctx, sessionID)

	return &ImportResult{Imported: len(skus), Dropped: dropped, Columns: len(columns)}, nil
}

// ========== 导出 ==========

// buildExportMatrix 导出矩阵（纯函数）。每SKU一行：
// 层级值（定义序）、sku_code、每期间的累计百分比（根→SKU各层分数连乘，
// 4位小数；任一祖先缺记录或为0%时留空）、unitprice，
// 最后是跨全部期间合计的 total_amount / total_quantity
// （floor(期间预算×累计分数) 逐期间求和，各期间混入同一列）。
func buildExportMatrix(defs []hierarchy.Definition, skus []entity.SkuData, set hierarchy.AllocationSet, budgets map[string]int64, periods []string) ([]string, [][]string) {
	header := make([]string, 0, len(defs)+len(periods)+4)
	for _, d := range defs {
		header = append(header, d.ColumnName)
	}
	header = append(header, reservedSkuCode)
	for _, p := range periods {
		header = append(header, periodLabel(p)+"_percent")
	}
	header = append(header, reservedUnitPrice, "total_amount", "total_quantity")

	rows := make([][]string, 0, len(skus))
	for _, sku := range skus {
		row := make([]string, 0, len(header))
		for _, d := range defs {
			row = append(row, sku.HierarchyValues[d.ColumnName])
		}
		row = append(row, sku.SkuCode)

		leaf := hierarchy.SkuPath(sku.HierarchyValues, defs, sku.SkuCode)
		var totalAmount, totalQuantity int64
		for _, p := range periods {
			frac, ok := cumulativeFraction(leaf, p, set)
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(frac*100, 'f', 4, 64))
			amount := int64(math.Floor(float64(budgets[p]) * frac))
			totalAmount += amount
			if sku.UnitPrice > 0 {
				totalQuantity += amount / sku.UnitPrice
			}
		}
		row = append(row,
			strconv.FormatInt(sku.UnitPrice, 10),
			strconv.FormatInt(totalAmount, 10),
			strconv.FormatInt(totalQuantity, 10),
		)
		rows = append(rows, row)
	}
	return header, rows
}

// cumulativeFraction 根→SKU路径上所有前缀节点分数的连乘。
// 任一前缀缺分配记录或百分比为0时返回 (0, false)。
// 连乘用float64累计：精确整数分子在四层以上会溢出int64，
// 4位小数的输出舍入足以吸收误差。
func cumulativeFraction(leaf hierarchy.Path, period string, set hierarchy.AllocationSet) (float64, bool) {
	frac := 1.0
	for i := 1; i <= len(leaf); i++ {
		v, ok := set.Get(leaf[:i].String(), period)
		if !ok || v.Percentage == 0 {
			return 0, false
		}
		frac *= float64(v.Percentage) / float64(hierarchy.MaxBasisPoints)
	}
	return frac, true
}

// exportData 导出用快照读取
func (s *ImportExportService) exportData(ctx context.Context, sessionID string) (*sessionData, []string, error) {
	data, err := s.allocSvc.loadData(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return data, sortedPeriods(data.budgets), nil
}

// ExportCSV 导出为带UTF-8 BOM的CSV
func (s *ImportExportService) ExportCSV(ctx context.Context, sessionID string) ([]byte, string, error) {
	data, periods, err := s.exportData(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	header, rows := buildExportMatrix(toHierarchyDefs(data.defs), data.skus, allocSet(data.allocs), budgetMap(data.budgets), periods)
	out, err := csvio.Encode(header, rows)
	if err != nil {
		return nil, "", fmt.Errorf("导出CSV失败: %w", err)
	}
	filename := fmt.Sprintf("allocation_%s.csv", data.session.Name)
	return out, filename, nil
}

// ExportXLSX 同一矩阵导出为xlsx工作簿
func (s *ImportExportService) ExportXLSX(ctx context.Context, sessionID string) (*excelize.File, string, error) {
	data, periods, err := s.exportData(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	header, rows := buildExportMatrix(toHierarchyDefs(data.defs), data.skus, allocSet(data.allocs), budgetMap(data.budgets), periods)

	f := excelize.NewFile()
	sheet := "Allocation"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}
	for rowIdx, row := range rows {
		for colIdx, v := range row {
			col, _ := excelize.ColumnNumberToName(colIdx + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, rowIdx+2), v)
		}
	}

	filename := fmt.Sprintf("allocation_%s.xlsx", data.session.Name)
	return f, filename, nil
}
