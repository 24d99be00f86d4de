package service

import (
	"context"
	"fmt"
	"time"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/repository"
	"github.com/redis/go-redis/v9"
)

// SessionService 分类与会话管理
type SessionService struct {
	categoryRepo *repository.CategoryRepository
	sessionRepo  *repository.SessionRepository
	rdb          *redis.Client
}

func NewSessionService(categoryRepo *repository.CategoryRepository, sessionRepo *repository.SessionRepository, rdb *redis.Client) *SessionService {
	return &SessionService{categoryRepo: categoryRepo, sessionRepo: sessionRepo, rdb: rdb}
}

// ========== Category ==========

func (s *SessionService) ListCategories(ctx context.Context) ([]entity.Category, error) {
	return s.categoryRepo.List(ctx)
}

type CreateCategoryInput struct {
	Name      string `json:"name" binding:"required"`
	SortOrder int    `json:"sort_order"`
}

func (s *SessionService) CreateCategory(ctx context.Context, input *CreateCategoryInput) (*entity.Category, error) {
	category := &entity.Category{
		ID:        newID(),
		Name:      input.Name,
		SortOrder: input.SortOrder,
		CreatedAt: time.Now(),
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("创建分类失败: %w", err)
	}
	return category, nil
}

// ========== Session ==========

type CreateSessionInput struct {
	CategoryID string `json:"category_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	// TotalBudget 旧版字段，可选。非空时作为默认期间预算的迁移来源。
	TotalBudget string `json:"total_budget"`
}

func (s *SessionService) CreateSession(ctx context.Context, input *CreateSessionInput, createdBy string) (*entity.PlanSession, error) {
	if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 分类不存在", ErrNotFound)
		}
		return nil, err
	}

	var totalBudget int64
	if input.TotalBudget != "" {
		v, err := parseAmount(input.TotalBudget)
		if err != nil {
			return nil, validationf("预算必须是非负整数: %s", input.TotalBudget)
		}
		totalBudget = v
	}

	session := &entity.PlanSession{
		ID:          newID(),
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Status:      entity.SessionStatusDraft,
		TotalBudget: totalBudget,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (*entity.PlanSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 会话不存在", ErrNotFound)
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context, categoryID string) ([]entity.PlanSession, error) {
	return s.sessionRepo.List(ctx, categoryID)
}

type UpdateSessionInput struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

// UpdateSession 更新名称/状态。状态流转仅限所有者，不受草稿门限制
// （confirmed→draft 的回退即解锁操作本身）。
func (s *SessionService) UpdateSession(ctx context.Context, id string, input *UpdateSessionInput, userID string) (*entity.PlanSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.CreatedBy != userID {
		return nil, fmt.Errorf("%w: 只有会话创建者可以修改", ErrForbidden)
	}

	if input.Name != nil && *input.Name != "" {
		session.Name = *input.Name
	}
	if input.Status != nil {
		switch *input.Status {
		case entity.SessionStatusDraft, entity.SessionStatusConfirmed, entity.SessionStatusArchived:
			session.Status = *input.Status
		default:
			return nil, validationf("无效的会话状态: %s", *input.Status)
		}
	}
	session.UpdatedAt = time.Now()

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("更新会话失败: %w", err)
	}
	s.invalidateTree(ctx, id)
	return session, nil
}

// DeleteSession 删除会话并级联全部从属数据
func (s *SessionService) DeleteSession(ctx context.Context, id, userID string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.CreatedBy != userID {
		return fmt.Errorf("%w: 只有会话创建者可以删除", ErrForbidden)
	}
	if err := s.sessionRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	s.invalidateTree(ctx, id)
	return nil
}

func (s *SessionService) invalidateTree(ctx context.Context, sessionID string) {
	if s.rdb != nil {
		s.rdb.Del(ctx, treeCacheKey(sessionID))
	}
}
