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

// UserService 用户注册、登录与管理员侧的用户管理
type UserService struct {
	db         *gorm.DB
	categories *CategoryService
}

func NewUserService(db *gorm.DB, categories *CategoryService) *UserService {
	return &UserService{db: db, categories: categories}
}

// Register 注册新用户并初始化哨兵分类
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	user, err := s.createUser(ctx, req.Email, req.Password, req.Name, req.DOB, req.Nationality, models.RoleUser)
	if err != nil {
		return nil, err
	}

	// 注册时就位哨兵分类，后续任务创建也会懒创建兜底
	if _, err := s.categories.FindOrCreateUncategorized(ctx, user.ID); err != nil {
		config.Logger.Warnw("初始化哨兵分类失败", "error", err, "userID", user.ID)
	}
	return user, nil
}

// Login 邮箱密码登录，返回用户和JWT令牌
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error) {
	var user models.User
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", NewValidationError("Invalid email or password")
		}
		return nil, "", err
	}
	if !utils.CheckPassword(user.Password, req.Password) {
		return nil, "", NewValidationError("Invalid email or password")
	}

	token, err := utils.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return &user, token, nil
}

// ChangePassword 修改密码，需要先验证当前密码
func (s *UserService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.Password, req.CurrentPassword) {
		return NewValidationError("Current password is incorrect")
	}
	if utils.CheckPassword(user.Password, req.NewPassword) {
		return NewValidationError("New password must be different from the current password")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password", hash).Error
}

// UpdateInfo 更新用户资料，未提供的字段不变
func (s *UserService) UpdateInfo(ctx context.Context, userID string, req models.UpdateUserInfoRequest) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	update := map[string]interface{}{}
	if req.Email != nil {
		update["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Name != nil {
		update["name"] = *req.Name
	}
	if req.DOB != nil {
		update["dob"] = *req.DOB
	}
	if req.Nationality != nil {
		update["nationality"] = *req.Nationality
	}
	if len(update) == 0 {
		return nil, NewValidationError("No fields to update")
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(update).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("Email already exists: %w", ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// Get 按ID查询用户
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// List 列出全部用户（管理员接口）
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreateByAdmin 管理员创建用户，可以指定角色
func (s *UserService) CreateByAdmin(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, NewValidationError("Invalid role")
	}
	user, err := s.createUser(ctx, req.Email, req.Password, req.Name, req.DOB, req.Nationality, role)
	if err != nil {
		return nil, err
	}
	if _, err := s.categories.FindOrCreateUncategorized(ctx, user.ID); err != nil {
		config.Logger.Warnw("初始化哨兵分类失败", "error", err, "userID", user.ID)
	}
	return user, nil
}

// Delete 删除用户并级联删除其全部分类和分类下的任务
// 统计总账留作孤儿：它只是派生数据，不影响一致性
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var categoryIDs []string
		if err := tx.Model(&models.Category{}).
			Where("user_id = ?", id).
			Pluck("id", &categoryIDs).Error; err != nil {
			return err
		}
		if len(categoryIDs) > 0 {
			if err := tx.Where("category_id IN ?", categoryIDs).Delete(&models.Task{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", categoryIDs).Delete(&models.Category{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
}

// EnsureAdmin 启动时初始化默认管理员账号
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	var admin models.User
	err := s.db.WithContext(ctx).Where("role = ?", models.RoleAdmin).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if email == "" {
		email = "admin@todoapp.com"
	}
	if password == "" {
		password = "admin123"
	}
	if _, err := s.createUser(ctx, email, password, "Admin", nil, "", models.RoleAdmin); err != nil {
		return err
	}
	config.Logger.Infow("已创建默认管理员账号，请尽快修改密码", "email", email)
	return nil
}

func (s *UserService) createUser(ctx context.Context, email, password, name string, dob *time.Time, nationality, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || strings.TrimSpace(name) == "" {
		return nil, NewValidationError("Missing required fields")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:          utils.GenerateID(),
		Email:       email,
		Password:    hash,
		Name:        strings.TrimSpace(name),
		DOB:         dob,
		Nationality: nationality,
		Role:        role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("Email already exists: %w", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}
