package services

import (
	"context"
	"fmt"
	"testing"

	"TodoFlowGo/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv 一组挂在独立内存库上的服务实例
type testEnv struct {
	ctx        context.Context
	db         *gorm.DB
	users      *UserService
	categories *CategoryService
	stats      *StatService
	tasks      *TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// cache=shared 保证连接池里的多个连接看到同一个内存库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Task{},
		&models.Stat{},
		&models.DailyStat{},
		&models.DailyCategoryCount{},
	))

	categories := NewCategoryService(db)
	stats := NewStatService(db)
	return &testEnv{
		ctx:        context.Background(),
		db:         db,
		users:      NewUserService(db, categories),
		categories: categories,
		stats:      stats,
		tasks:      NewTaskService(db, categories, stats),
	}
}

func (e *testEnv) seedUser(t *testing.T, name string) Actor {
	t.Helper()
	user := models.User{
		ID:    uuid.NewString(),
		Email: fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Name:  name,
		Role:  models.RoleUser,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return Actor{ID: user.ID, Role: user.Role}
}

func (e *testEnv) seedCategory(t *testing.T, actor Actor, name string) *models.Category {
	t.Helper()
	category, err := e.categories.Create(e.ctx, actor, models.CreateCategoryRequest{Name: name})
	require.NoError(t, err)
	return category
}

func (e *testEnv) getStat(t *testing.T, userID string) models.Stat {
	t.Helper()
	var stat models.Stat
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&stat).Error)
	return stat
}
