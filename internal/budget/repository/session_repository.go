package repository

import (
	"context"
	"errors"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) DB() *gorm.DB {
	return r.db
}

func (r *CategoryRepository) Create(ctx context.Context, category *entity.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*entity.Category, error) {
	var category entity.Category
	err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]entity.Category, error) {
	var categories []entity.Category
	err := r.db.WithContext(ctx).
		Order("sort_order ASC, created_at ASC").
		Find(&categories).Error
	return categories, err
}

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) DB() *gorm.DB {
	return r.db
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.PlanSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*entity.PlanSession, error) {
	var session entity.PlanSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) List(ctx context.Context, categoryID string) ([]entity.PlanSession, error) {
	var sessions []entity.PlanSession
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	err := q.Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) Update(ctx context.Context, session *entity.PlanSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// Delete 删除会话并级联删除其全部从属数据（定义/SKU/分配/期间预算）
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&entity.Allocation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&entity.PeriodBudget{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&entity.SkuData{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&entity.HierarchyDefinition{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.PlanSession{}, "id = ?", id).Error
	})
}
