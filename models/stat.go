package models

import (
	"time"
)

// 日统计中分类细分的类型
const (
	BreakdownCompleted = "completed"
	BreakdownGivenUp   = "given-up"
)

// Stat 每个用户一份的统计总账，首次访问时懒创建
type Stat struct {
	ID              string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(50);uniqueIndex" json:"userId"`
	TotalTasks      int       `gorm:"default:0" json:"totalTasks"`
	PendingTasks    int       `gorm:"default:0" json:"pendingTasks"`
	InProgressTasks int       `gorm:"default:0" json:"inProgressTasks"`
	CompletedTasks  int       `gorm:"default:0" json:"completedTasks"`
	GivenUpTasks    int       `gorm:"default:0" json:"givenUpTasks"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// DailyStat 按UTC自然日聚合的统计桶
type DailyStat struct {
	ID             string               `gorm:"type:varchar(50);primaryKey" json:"id"`
	StatID         string               `gorm:"type:varchar(50);uniqueIndex:idx_stat_date" json:"-"`
	Date           time.Time            `gorm:"uniqueIndex:idx_stat_date" json:"date"`
	CompletedTasks int                  `gorm:"default:0" json:"completedTasks"`
	GivenUpTasks   int                  `gorm:"default:0" json:"givenUpTasks"`
	CategoryCounts []DailyCategoryCount `gorm:"foreignKey:DailyStatID" json:"-"`
}

// DailyCategoryCount 日统计桶内按分类的细分计数
// CategoryName 为完成/放弃当时的分类名快照，分类被删后仍可展示
type DailyCategoryCount struct {
	ID           string  `gorm:"type:varchar(50);primaryKey" json:"-"`
	DailyStatID  string  `gorm:"type:varchar(50);index" json:"-"`
	Kind         string  `gorm:"type:varchar(20)" json:"-"`
	CategoryID   *string `gorm:"type:varchar(50)" json:"categoryId"`
	CategoryName string  `gorm:"type:varchar(100)" json:"categoryName"`
	Count        int     `gorm:"default:0" json:"count"`
}
