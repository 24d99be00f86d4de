package entity

import "time"

// Session 状态
const (
	SessionStatusDraft     = "draft"
	SessionStatusConfirmed = "confirmed"
	SessionStatusArchived  = "archived"
)

// Category 计划分类（一个分类下多个Session）
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	SortOrder int       `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`

	// 关联
	Sessions []PlanSession `json:"sessions,omitempty" gorm:"foreignKey:CategoryID"`
}

func (Category) TableName() string {
	return "categories"
}

// PlanSession 预算分配会话：持有SKU表、层级定义和各期间的分配记录
type PlanSession struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	CategoryID string `json:"category_id" gorm:"size:32;not null;index"`
	Name       string `json:"name" gorm:"size:128;not null"`
	Status     string `json:"status" gorm:"size:16;not null;default:draft"`
	// TotalBudget 旧版单预算字段（货币最小单位）。仅用于向 PeriodBudget 迁移，不再写入。
	TotalBudget int64     `json:"total_budget,string" gorm:"not null;default:0"`
	CreatedBy   string    `json:"created_by" gorm:"size:32;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

func (PlanSession) TableName() string {
	return "plan_sessions"
}
