package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TodoFlowGo/config"
	"TodoFlowGo/middleware"
	"TodoFlowGo/routes"
	"TodoFlowGo/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// 初始化日志
	if err := config.InitLogger(); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer config.Logger.Sync()

	// 加载配置
	conf, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}

	// 初始化数据库
	if err := config.InitDB(conf); err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}

	// 初始化Redis，未配置时降级为直查数据库
	if conf.RedisHost != "" {
		if err := config.InitRedis(conf); err != nil {
			config.Logger.Warnw("Redis初始化失败，统计缓存不可用", "error", err)
		}
	}

	// 初始化默认管理员账号
	userService := services.NewUserService(config.DB, services.NewCategoryService(config.DB))
	if err := userService.EnsureAdmin(context.Background(), conf.AdminEmail, conf.AdminPassword); err != nil {
		log.Fatalf("无法初始化管理员账号: %v", err)
	}

	// 初始化Deepseek客户端，未配置时AI接口返回503
	var deepseekClient *services.DeepseekClient
	if conf.DeepseekAPIKey != "" {
		deepseekClient, err = services.NewDeepseekClient(conf.DeepseekAPIKey, conf.DeepseekAPIEndpoint)
		if err != nil {
			log.Fatalf("无法初始化Deepseek客户端: %v", err)
		}
	}

	// 设置Gin模式
	if conf.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建Gin引擎
	r := gin.New()

	// 设置中间件
	middleware.SetupMiddleware(r)

	// 注册路由
	routes.RegisterRoutes(r, deepseekClient)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:    ":" + conf.ServerPort,
		Handler: r,
	}

	// 在goroutine中启动服务器
	go func() {
		config.Logger.Infow("启动服务器", "port", conf.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以实现优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	config.Logger.Infow("正在关闭服务器...")

	// 创建超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器关闭失败: %v", err)
	}

	config.Logger.Infow("服务器已关闭")
}
