package models

import (
	"time"
)

// 任务状态机：pending -> in-progress -> completed | given-up
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
	TaskStatusGivenUp    = "given-up"
)

// 任务优先级
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Task 任务模型，归属关系通过分类间接推导，不直接挂在用户上
type Task struct {
	ID          string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	Title       string     `gorm:"type:varchar(100)" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"type:varchar(20);default:pending" json:"status"`
	Priority    string     `gorm:"type:varchar(20);default:Medium" json:"priority"`
	CategoryID  *string    `gorm:"type:varchar(50);index" json:"categoryId"`
	Category    *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	StartDate   time.Time  `json:"startDate"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	IsOverDue   bool       `json:"isOverDue"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ValidTaskStatus 校验状态枚举
func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusGivenUp:
		return true
	}
	return false
}

// ValidPriority 校验优先级枚举
func ValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
