package controllers

import (
	"net/http"

	"TodoFlowGo/config"
	"TodoFlowGo/models"
	"TodoFlowGo/services"

	"github.com/gin-gonic/gin"
)

// UserController 用户管理控制器（管理员接口）
type UserController struct {
	users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// CreateUser 创建用户
func (uc *UserController) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := uc.users.CreateByAdmin(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    user.ToResponse(),
	})
}

// GetAllUsers 列出全部用户
func (uc *UserController) GetAllUsers(c *gin.Context) {
	users, err := uc.users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	c.JSON(http.StatusOK, out)
}

// GetUserByID 按ID查询用户
func (uc *UserController) GetUserByID(c *gin.Context) {
	user, err := uc.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// UpdateUser 更新用户资料
func (uc *UserController) UpdateUser(c *gin.Context) {
	var req models.UpdateUserInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := uc.users.UpdateInfo(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    user.ToResponse(),
	})
}

// DeleteUser 删除用户并级联删除其分类和任务
func (uc *UserController) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := uc.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	config.Logger.Infow("用户已删除", "userID", id)
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
