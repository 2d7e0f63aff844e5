package models

import (
	"time"
)

// 用户角色
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User 用户模型
type User struct {
	ID          string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	Email       string     `gorm:"type:varchar(100);uniqueIndex" json:"email"`
	Password    string     `gorm:"type:varchar(100)" json:"-"`
	Name        string     `gorm:"type:varchar(100)" json:"name"`
	DOB         *time.Time `json:"dob,omitempty"`
	Nationality string     `gorm:"type:varchar(100)" json:"nationality"`
	Role        string     `gorm:"type:varchar(20);default:USER" json:"role"`
	AvatarURL   string     `gorm:"type:varchar(255)" json:"avatarUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
