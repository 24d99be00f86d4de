package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringMap jsonb形式的 列名→值 映射
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan StringMap: %v", value)
	}
	return json.Unmarshal(bytes, m)
}

// HierarchyDefinition 层级列定义（CSV导入时从非保留列派生，整体替换）
type HierarchyDefinition struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	SessionID    string    `json:"session_id" gorm:"size:32;not null;index:idx_hierarchy_defs_session"`
	Level        int       `json:"level" gorm:"not null"`
	ColumnName   string    `json:"column_name" gorm:"size:128;not null"`
	DisplayOrder int       `json:"display_order" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
}

func (HierarchyDefinition) TableName() string {
	return "hierarchy_definitions"
}

// SkuData SKU记录。导入时创建，除整体重导入外不可变。
type SkuData struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	SessionID string `json:"session_id" gorm:"size:32;not null;index:idx_sku_data_session"`
	SkuCode   string `json:"sku_code" gorm:"size:64;not null"`
	// UnitPrice 单价（货币最小单位）
	UnitPrice       int64     `json:"unitprice,string" gorm:"not null;default:0"`
	HierarchyValues StringMap `json:"hierarchy_values" gorm:"type:jsonb"`
	CreatedAt       time.Time `json:"created_at"`
}

func (SkuData) TableName() string {
	return "sku_data"
}
