package models

import (
	"time"
)

// RegisterRequest 注册请求结构体
type RegisterRequest struct {
	Email       string     `json:"email" binding:"required,email"`
	Password    string     `json:"password" binding:"required,min=6"`
	Name        string     `json:"name" binding:"required"`
	DOB         *time.Time `json:"dob"`
	Nationality string     `json:"nationality"`
}

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest 修改密码请求结构体
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// UpdateUserInfoRequest 更新用户资料请求结构体，未提供的字段不变
type UpdateUserInfoRequest struct {
	Email       *string    `json:"email"`
	Name        *string    `json:"name"`
	DOB         *time.Time `json:"dob"`
	Nationality *string    `json:"nationality"`
}

// CreateUserRequest 管理员创建用户请求结构体
type CreateUserRequest struct {
	Email       string     `json:"email" binding:"required,email"`
	Password    string     `json:"password" binding:"required,min=6"`
	Name        string     `json:"name" binding:"required"`
	DOB         *time.Time `json:"dob"`
	Nationality string     `json:"nationality"`
	Role        string     `json:"role"`
}

// CreateCategoryRequest 创建分类请求结构体
type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateCategoryRequest 更新分类请求结构体
type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// CreateTaskRequest 创建任务请求结构体
// CategoryID 为空或为uncategorized占位值时落入哨兵分类
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	CategoryID  string     `json:"categoryId"`
	StartDate   *time.Time `json:"startDate"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateTaskRequest 任务字段更新请求结构体，显式列出允许修改的字段
// 状态不能通过该路径修改，只能走生命周期接口
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	CategoryID  *string    `json:"categoryId"`
	StartDate   *time.Time `json:"startDate"`
	DueDate     *time.Time `json:"dueDate"`
}

// GenerateTaskRequest AI生成任务请求结构体
type GenerateTaskRequest struct {
	UserRequirement string `json:"userRequirement" binding:"required"`
}

// PruneTasksRequest 内部维护接口：清理已结束任务
type PruneTasksRequest struct {
	UserID string     `json:"userId" binding:"required"`
	Before *time.Time `json:"before"`
}
