package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TodoFlowGo/config"
	"TodoFlowGo/models"
	"TodoFlowGo/utils"

	"gorm.io/gorm"
)

// TaskService 任务生命周期引擎
// 状态机：pending -> in-progress -> completed | given-up，终态不可再流转
// 每次流转在同一事务内完成条件更新和统计记账
type TaskService struct {
	db         *gorm.DB
	categories *CategoryService
	stats      *StatService
}

func NewTaskService(db *gorm.DB, categories *CategoryService, stats *StatService) *TaskService {
	return &TaskService{db: db, categories: categories, stats: stats}
}

// Create 创建任务，初始状态为pending
// 未指定分类或传入占位值时落入哨兵分类；指定分类时校验归属（管理员除外）
func (s *TaskService) Create(ctx context.Context, actor Actor, req models.CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, NewValidationError("Title is required")
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, NewValidationError("Invalid priority")
	}

	category, err := s.resolveCategory(ctx, actor, req.CategoryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	startDate := now
	if req.StartDate != nil {
		startDate = req.StartDate.UTC()
	}

	task := models.Task{
		ID:          utils.GenerateID(),
		Title:       title,
		Description: req.Description,
		Status:      models.TaskStatusPending,
		Priority:    priority,
		CategoryID:  &category.ID,
		StartDate:   startDate,
		DueDate:     req.DueDate,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		// 任务的有效归属人是分类的所有者
		return s.stats.RecordCreated(tx, category.UserID)
	})
	if err != nil {
		return nil, err
	}
	task.Category = category
	return &task, nil
}

// Start 开始任务：pending -> in-progress
func (s *TaskService) Start(ctx context.Context, actor Actor, id string) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", id, models.TaskStatusPending).
			Update("status", models.TaskStatusInProgress)
		if res.Error != nil {
			return res.Error
		}
		// 条件更新未命中说明当前状态不允许流转（含并发抢先的情况）
		if res.RowsAffected == 0 {
			return fmt.Errorf("Only pending tasks can be started: %w", ErrInvalidTransition)
		}
		owner, ok := taskOwner(task)
		if !ok {
			return nil
		}
		return s.stats.RecordStarted(tx, owner)
	})
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStatusInProgress
	return task, nil
}

// Finish 完成任务：in-progress -> completed
// 记录完成时间并结算是否逾期，同时更新当日统计桶
func (s *TaskService) Finish(ctx context.Context, actor Actor, id string) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	isOverDue := task.DueDate != nil && now.After(*task.DueDate)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", id, models.TaskStatusInProgress).
			Updates(map[string]interface{}{
				"status":       models.TaskStatusCompleted,
				"completed_at": now,
				"is_over_due":  isOverDue,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("Only in-progress tasks can be finished: %w", ErrInvalidTransition)
		}
		owner, ok := taskOwner(task)
		if !ok {
			return nil
		}
		return s.stats.RecordCompleted(tx, owner, task.CategoryID, categoryName(task), now)
	})
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.IsOverDue = isOverDue
	return task, nil
}

// GiveUp 放弃任务：in-progress -> given-up
func (s *TaskService) GiveUp(ctx context.Context, actor Actor, id string) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", id, models.TaskStatusInProgress).
			Update("status", models.TaskStatusGivenUp)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("Only in-progress tasks can be given up: %w", ErrInvalidTransition)
		}
		owner, ok := taskOwner(task)
		if !ok {
			return nil
		}
		return s.stats.RecordGivenUp(tx, owner, task.CategoryID, categoryName(task), now)
	})
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStatusGivenUp
	return task, nil
}

// Update 更新任务字段，任意状态下可用
// 不允许通过该路径修改状态，也不触碰统计
func (s *TaskService) Update(ctx context.Context, actor Actor, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	update := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, NewValidationError("Title is required")
		}
		update["title"] = title
	}
	if req.Description != nil {
		update["description"] = *req.Description
	}
	if req.Priority != nil {
		if !models.ValidPriority(*req.Priority) {
			return nil, NewValidationError("Invalid priority")
		}
		update["priority"] = *req.Priority
	}
	if req.CategoryID != nil {
		category, err := s.resolveCategory(ctx, actorForTask(actor, task), *req.CategoryID)
		if err != nil {
			return nil, err
		}
		update["category_id"] = category.ID
	}
	if req.StartDate != nil {
		update["start_date"] = req.StartDate.UTC()
	}
	if req.DueDate != nil {
		update["due_date"] = req.DueDate.UTC()
	}
	if len(update) == 0 {
		return nil, NewValidationError("No fields to update")
	}

	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).Updates(update).Error; err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Delete 删除任务，任意状态下可用
// 与参考行为一致：普通删除不回撤统计，漂移通过Rebuild对账修正
func (s *TaskService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.loadAuthorized(ctx, actor, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{}).Error
}

// Get 按ID查询任务
func (s *TaskService) Get(ctx context.Context, actor Actor, id string) (*models.Task, error) {
	return s.loadAuthorized(ctx, actor, id)
}

// List 列出任务，非管理员只能看到自己分类下的任务
func (s *TaskService) List(ctx context.Context, actor Actor) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.scoped(ctx, actor).
		Preload("Category").
		Order("tasks.created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByStatus 按状态筛选任务
func (s *TaskService) ListByStatus(ctx context.Context, actor Actor, status string) ([]models.Task, error) {
	if !models.ValidTaskStatus(status) {
		return nil, NewValidationError("Invalid status")
	}
	var tasks []models.Task
	if err := s.scoped(ctx, actor).
		Where("tasks.status = ?", status).
		Preload("Category").
		Order("tasks.created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByCategory 按分类筛选任务
func (s *TaskService) ListByCategory(ctx context.Context, actor Actor, categoryID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.scoped(ctx, actor).
		Where("tasks.category_id = ?", categoryID).
		Preload("Category").
		Order("tasks.created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// TodayDeadlines 查询今天（UTC）到期且未结束的任务
func (s *TaskService) TodayDeadlines(ctx context.Context, actor Actor) ([]models.Task, error) {
	start := utcDay(time.Now())
	end := start.AddDate(0, 0, 1)

	var tasks []models.Task
	if err := s.scoped(ctx, actor).
		Where("tasks.due_date >= ? AND tasks.due_date < ?", start, end).
		Where("tasks.status NOT IN ?", []string{models.TaskStatusCompleted, models.TaskStatusGivenUp}).
		Preload("Category").
		Order("tasks.due_date ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// PruneFinished 内部维护接口：删除指定时间之前结束的任务并回撤对应统计
// 这是唯一会递减completed/givenUp总计数的路径
func (s *TaskService) PruneFinished(ctx context.Context, userID string, before time.Time) (int, error) {
	var pruned int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []models.Task
		if err := tx.Model(&models.Task{}).
			Joins("JOIN categories ON categories.id = tasks.category_id").
			Where("categories.user_id = ?", userID).
			Where("tasks.status IN ?", []string{models.TaskStatusCompleted, models.TaskStatusGivenUp}).
			Where("tasks.updated_at < ?", before).
			Find(&tasks).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, t := range tasks {
			if err := tx.Where("id = ?", t.ID).Delete(&models.Task{}).Error; err != nil {
				return err
			}
			if t.Status == models.TaskStatusCompleted {
				if err := s.stats.RecordRemovedCompleted(tx, userID, t.CategoryID, now); err != nil {
					return err
				}
			} else {
				if err := s.stats.RecordRemovedGivenUp(tx, userID, t.CategoryID, now); err != nil {
					return err
				}
			}
		}
		pruned = len(tasks)
		return nil
	})
	return pruned, err
}

// resolveCategory 解析任务的目标分类
// 空值或占位值落入哨兵分类；具体ID要求归属当前操作者（管理员跳过）
func (s *TaskService) resolveCategory(ctx context.Context, actor Actor, categoryID string) (*models.Category, error) {
	if categoryID == "" || categoryID == models.UncategorizedKeyword {
		category, err := s.categories.FindOrCreateUncategorized(ctx, actor.ID)
		if err != nil {
			return nil, NewValidationError("Cannot resolve the Uncategorized category")
		}
		return category, nil
	}

	var category models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("Invalid categoryId")
		}
		return nil, err
	}
	if !actor.IsAdmin() && category.UserID != actor.ID {
		return nil, NewValidationError("Invalid categoryId")
	}
	return &category, nil
}

// load 取任务并预载分类
func (s *TaskService) load(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Preload("Category").
		Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &task, nil
}

// loadAuthorized 取任务并校验归属：任务的所有者经由分类间接推导
func (s *TaskService) loadAuthorized(ctx context.Context, actor Actor, id string) (*models.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return task, nil
	}
	owner, ok := taskOwner(task)
	if !ok || owner != actor.ID {
		return nil, ErrPermission
	}
	return task, nil
}

// scoped 构造按归属过滤的任务查询
func (s *TaskService) scoped(ctx context.Context, actor Actor) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&models.Task{})
	if actor.IsAdmin() {
		return db
	}
	return db.Joins("JOIN categories ON categories.id = tasks.category_id").
		Where("categories.user_id = ?", actor.ID)
}

// taskOwner 推导任务的有效归属人
// 分类被置空的任务（防御性兜底产物）没有归属人，统计记账跳过并告警
func taskOwner(task *models.Task) (string, bool) {
	if task.Category == nil {
		config.Logger.Warnw("任务没有归属分类，跳过统计记账", "taskID", task.ID)
		return "", false
	}
	return task.Category.UserID, true
}

func categoryName(task *models.Task) string {
	if task.Category == nil {
		return ""
	}
	return task.Category.Name
}

// actorForTask 管理员替他人操作时，分类解析要落在任务归属人名下
func actorForTask(actor Actor, task *models.Task) Actor {
	if !actor.IsAdmin() || task.Category == nil {
		return actor
	}
	return Actor{ID: task.Category.UserID, Role: actor.Role}
}
