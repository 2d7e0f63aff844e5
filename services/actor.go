package services

import (
	"TodoFlowGo/models"
)

// Actor 当前操作者，由认证中间件解析JWT后提供
type Actor struct {
	ID   string
	Role string
}

// IsAdmin 管理员可以跳过归属校验
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}
