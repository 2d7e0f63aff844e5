package models

import (
	"time"
)

// UncategorizedName 哨兵分类名，每个用户有且仅有一个，不允许删除
const UncategorizedName = "Uncategorized"

// UncategorizedKeyword 前端传入的哨兵分类占位值
const UncategorizedKeyword = "uncategorized"

// Category 分类模型，名称在同一用户下唯一
type Category struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(50);uniqueIndex:idx_user_category_name" json:"userId"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex:idx_user_category_name" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsUncategorized 是否为哨兵分类
func (c *Category) IsUncategorized() bool {
	return c.Name == UncategorizedName
}
