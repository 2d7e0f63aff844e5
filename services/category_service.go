package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"TodoFlowGo/config"
	"TodoFlowGo/models"
	"TodoFlowGo/utils"

	"gorm.io/gorm"
)

// CategoryService 分类的增删改查与哨兵分类维护
type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// Create 创建分类，同一用户下名称唯一
func (s *CategoryService) Create(ctx context.Context, actor Actor, req models.CreateCategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("Name is required")
	}

	category := models.Category{
		ID:          utils.GenerateID(),
		UserID:      actor.ID,
		Name:        name,
		Description: req.Description,
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("Category name already exists for this user: %w", ErrConflict)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

// Get 按ID查询分类，非管理员只能访问自己的分类
func (s *CategoryService) Get(ctx context.Context, actor Actor, id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if !actor.IsAdmin() && category.UserID != actor.ID {
		return nil, ErrPermission
	}
	return &category, nil
}

// List 列出分类，管理员可见全部
func (s *CategoryService) List(ctx context.Context, actor Actor) ([]models.Category, error) {
	var categories []models.Category
	db := s.db.WithContext(ctx)
	if !actor.IsAdmin() {
		db = db.Where("user_id = ?", actor.ID)
	}
	if err := db.Order("created_at ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Update 更新分类名称或描述，哨兵分类不允许改名
func (s *CategoryService) Update(ctx context.Context, actor Actor, id string, req models.UpdateCategoryRequest) (*models.Category, error) {
	category, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	update := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidationError("Name is required")
		}
		if category.IsUncategorized() && name != models.UncategorizedName {
			return nil, NewValidationError("The Uncategorized category cannot be renamed")
		}
		update["name"] = name
	}
	if req.Description != nil {
		update["description"] = *req.Description
	}
	if len(update) == 0 {
		return nil, NewValidationError("No fields to update")
	}

	if err := s.db.WithContext(ctx).Model(category).Updates(update).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("Category name already exists for this user: %w", ErrConflict)
		}
		return nil, err
	}
	return category, nil
}

// Delete 删除分类
// 删除前先把该分类下的所有任务迁移到同一用户的哨兵分类（异常时退化为置空），
// 整个过程在一个事务内完成，避免任务悬挂在已删除的分类上
func (s *CategoryService) Delete(ctx context.Context, actor Actor, id string) error {
	category, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if category.IsUncategorized() {
		return NewValidationError("The Uncategorized category cannot be deleted")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var newCategoryID interface{}
		uncategorized, err := s.findOrCreateUncategorized(tx, category.UserID)
		if err != nil {
			// 理论上不应发生：哨兵分类找不到也建不出来时退化为置空
			config.Logger.Warnw("哨兵分类解析失败，任务分类将置空",
				"error", err,
				"userID", category.UserID,
			)
			newCategoryID = nil
		} else {
			newCategoryID = uncategorized.ID
		}

		if err := tx.Model(&models.Task{}).
			Where("category_id = ?", category.ID).
			Update("category_id", newCategoryID).Error; err != nil {
			return fmt.Errorf("reassign tasks: %w", err)
		}

		return tx.Where("id = ?", category.ID).Delete(&models.Category{}).Error
	})
}

// FindOrCreateUncategorized 解析用户的哨兵分类，幂等
func (s *CategoryService) FindOrCreateUncategorized(ctx context.Context, userID string) (*models.Category, error) {
	return s.findOrCreateUncategorized(s.db.WithContext(ctx), userID)
}

func (s *CategoryService) findOrCreateUncategorized(tx *gorm.DB, userID string) (*models.Category, error) {
	var category models.Category
	err := tx.Where("user_id = ? AND name = ?", userID, models.UncategorizedName).First(&category).Error
	switch {
	case err == nil:
		return &category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		category = models.Category{
			ID:          utils.GenerateID(),
			UserID:      userID,
			Name:        models.UncategorizedName,
			Description: "默认分类，存放未指定分类的任务",
		}
		if err := tx.Create(&category).Error; err != nil {
			if isDuplicateKeyErr(err) {
				// 并发创建撞到唯一索引时重查一次
				if err2 := tx.Where("user_id = ? AND name = ?", userID, models.UncategorizedName).
					First(&category).Error; err2 == nil {
					return &category, nil
				}
			}
			return nil, fmt.Errorf("create uncategorized category: %w", err)
		}
		return &category, nil
	default:
		return nil, fmt.Errorf("find uncategorized category: %w", err)
	}
}
