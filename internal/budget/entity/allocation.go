package entity

import "time"

// DefaultPeriod 默认期间键（旧版单预算会话迁移后的落点）
const DefaultPeriod = ""

// Allocation 分配记录：(会话, 层级路径, 期间) 唯一。
// Percentage 以万分比存储（basis points，0..10000 对应 0%..100%），
// 保证百分比两位小数精度下的整数运算。
type Allocation struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	SessionID     string    `json:"session_id" gorm:"size:32;not null;uniqueIndex:idx_alloc_session_path_period,priority:1"`
	HierarchyPath string    `json:"hierarchy_path" gorm:"size:512;not null;uniqueIndex:idx_alloc_session_path_period,priority:2"`
	Level         int       `json:"level" gorm:"not null"`
	Percentage    int       `json:"percentage" gorm:"not null;default:0"`
	Amount        int64     `json:"amount,string" gorm:"not null;default:0"`
	Quantity      int64     `json:"quantity" gorm:"not null;default:0"`
	Period        string    `json:"period" gorm:"size:64;not null;default:'';uniqueIndex:idx_alloc_session_path_period,priority:3"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Allocation) TableName() string {
	return "allocations"
}

// PeriodBudget 期间预算：(会话, 期间) 唯一
type PeriodBudget struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	SessionID string    `json:"session_id" gorm:"size:32;not null;uniqueIndex:idx_period_budget_session_period,priority:1"`
	Period    string    `json:"period" gorm:"size:64;not null;default:'';uniqueIndex:idx_period_budget_session_period,priority:2"`
	Budget    int64     `json:"budget,string" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PeriodBudget) TableName() string {
	return "period_budgets"
}
