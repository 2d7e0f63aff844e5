package routes

import (
	"TodoFlowGo/config"
	"TodoFlowGo/controllers"
	"TodoFlowGo/middleware"
	"TodoFlowGo/services"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, deepseekClient *services.DeepseekClient) {
	categoryService := services.NewCategoryService(config.DB)
	statService := services.NewStatService(config.DB)
	taskService := services.NewTaskService(config.DB, categoryService, statService)
	userService := services.NewUserService(config.DB, categoryService)

	var aiService *services.AIService
	if deepseekClient != nil {
		aiService = services.NewAIService(deepseekClient, config.DB, taskService)
	}

	authController := controllers.NewAuthController(userService)
	userController := controllers.NewUserController(userService)
	categoryController := controllers.NewCategoryController(categoryService)
	taskController := controllers.NewTaskController(taskService)
	statController := controllers.NewStatController(statService)
	aiController := controllers.NewAIController(aiService)

	// 公开路由（无需认证）
	public := r.Group("/api/v1")
	{
		public.POST("/auth/register", authController.Register)
		public.POST("/auth/login", authController.Login)
	}

	// 需要认证的路由
	private := r.Group("/api/v1")
	private.Use(middleware.AuthMiddleware())
	{
		private.GET("/auth/me", authController.GetMe)
		private.PUT("/auth/change-password", authController.ChangePassword)
		private.PUT("/auth/update-info", authController.UpdateInfo)

		private.POST("/tasks", taskController.CreateTask)
		private.GET("/tasks", taskController.GetAllTasks)
		private.GET("/tasks/today-deadlines", taskController.GetTodayDeadlines)
		private.GET("/tasks/status/:status", taskController.GetTasksByStatus)
		private.GET("/tasks/category/:categoryId", taskController.GetTasksByCategory)
		private.GET("/tasks/:id", taskController.GetTaskByID)
		private.PUT("/tasks/:id", taskController.UpdateTask)
		private.PUT("/tasks/:id/start", taskController.StartTask)
		private.PUT("/tasks/:id/finish", taskController.FinishTask)
		private.PUT("/tasks/:id/give-up", taskController.GiveUpTask)
		private.DELETE("/tasks/:id", taskController.DeleteTask)

		private.POST("/categories", categoryController.CreateCategory)
		private.GET("/categories", categoryController.GetAllCategories)
		private.GET("/categories/:id", categoryController.GetCategoryByID)
		private.PUT("/categories/:id", categoryController.UpdateCategory)
		private.DELETE("/categories/:id", categoryController.DeleteCategory)

		private.GET("/stats", statController.GetStats)
		private.POST("/stats/rebuild", statController.RebuildStats)

		private.POST("/ai/tasks", aiController.GenerateTask)
	}

	// 管理员路由
	admin := r.Group("/api/v1/users")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("", userController.CreateUser)
		admin.GET("", userController.GetAllUsers)
		admin.GET("/:id", userController.GetUserByID)
		admin.PUT("/:id", userController.UpdateUser)
		admin.DELETE("/:id", userController.DeleteUser)
	}

	// 内部路由组（仅限服务器内部调用）
	internal := r.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware())
	{
		internal.POST("/tasks/prune", taskController.PruneTasks)
	}

	// 测试路由
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
}
