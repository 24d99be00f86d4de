package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Category   *CategoryRepository
	Session    *SessionRepository
	Sku        *SkuRepository
	Allocation *AllocationRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Category:   NewCategoryRepository(db),
		Session:    NewSessionRepository(db),
		Sku:        NewSkuRepository(db),
		Allocation: NewAllocationRepository(db),
	}
}
