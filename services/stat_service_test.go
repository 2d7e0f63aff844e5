package services

import (
	"testing"
	"time"

	"TodoFlowGo/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUtcDay(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2026, 1, 1, 23, 30, 0, 0, est) // UTC已经是1月2日
	assert.Equal(t, "2026-01-02", utcDay(late).Format("2006-01-02"))

	cst := time.FixedZone("CST", 8*3600)
	early := time.Date(2026, 3, 1, 2, 30, 0, 0, cst) // UTC还在2月28日
	assert.Equal(t, "2026-02-28", utcDay(early).Format("2006-01-02"))

	day := utcDay(time.Now())
	assert.Equal(t, time.UTC, day.Location())
	assert.Zero(t, day.Hour())
}

func TestStatGetLazyCreate(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "新用户")

	resp, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, resp.UserID)
	assert.Zero(t, resp.TotalTasks)
	assert.NotNil(t, resp.DailyStats)
	assert.Empty(t, resp.DailyStats)

	// 懒创建只发生一次
	first := env.getStat(t, actor.ID)
	_, err = env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, env.getStat(t, actor.ID).ID)
}

func TestStatClampAtZero(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "漂移用户")

	// pending为0时记账开始：减法截断为0，不会出现负数
	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.stats.RecordStarted(tx, actor.ID)
	})
	require.NoError(t, err)

	stat := env.getStat(t, actor.ID)
	assert.Equal(t, 0, stat.PendingTasks)
	assert.Equal(t, 1, stat.InProgressTasks)

	// 回撤同样截断，空库上连续回撤不会把计数打穿
	err = env.db.Transaction(func(tx *gorm.DB) error {
		return env.stats.RecordRemovedCompleted(tx, actor.ID, nil, time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, 0, env.getStat(t, actor.ID).CompletedTasks)
}

func TestStatRecordCompletedBucketsByUTCDay(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "跨时区用户")
	category := env.seedCategory(t, actor, "阅读")

	// 本地已经是3月1日凌晨，UTC口径下应落在2月28日的桶
	cst := time.FixedZone("CST", 8*3600)
	now := time.Date(2026, 3, 1, 2, 30, 0, 0, cst)
	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.stats.RecordCompleted(tx, actor.ID, &category.ID, category.Name, now)
	})
	require.NoError(t, err)

	resp, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	require.Len(t, resp.DailyStats, 1)
	assert.Equal(t, "2026-02-28", resp.DailyStats[0].Date)
	assert.Equal(t, 1, resp.DailyStats[0].CompletedTasks)
}

func TestStatSameDayAccumulates(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "高产用户")
	category := env.seedCategory(t, actor, "写作")

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		err := env.db.Transaction(func(tx *gorm.DB) error {
			return env.stats.RecordCompleted(tx, actor.ID, &category.ID, category.Name, now)
		})
		require.NoError(t, err)
	}

	resp, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	require.Len(t, resp.DailyStats, 1)
	assert.Equal(t, 3, resp.DailyStats[0].CompletedTasks)
	require.Len(t, resp.DailyStats[0].CompletedOfEachCategory, 1)
	assert.Equal(t, 3, resp.DailyStats[0].CompletedOfEachCategory[0].Count)
}

func TestStatRebuildFromTasks(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "对账用户")
	work := env.seedCategory(t, actor, "工作")
	life := env.seedCategory(t, actor, "生活")

	day1 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 2, 21, 0, 0, 0, time.UTC)

	mk := func(status, categoryID string, completedAt *time.Time, updatedAt time.Time) {
		task := models.Task{
			ID:          uuid.NewString(),
			Title:       "样本任务",
			Status:      status,
			Priority:    models.PriorityMedium,
			CategoryID:  &categoryID,
			StartDate:   day1,
			CompletedAt: completedAt,
			UpdatedAt:   updatedAt,
		}
		require.NoError(t, env.db.Create(&task).Error)
	}
	mk(models.TaskStatusPending, work.ID, nil, day1)
	mk(models.TaskStatusInProgress, life.ID, nil, day1)
	mk(models.TaskStatusCompleted, work.ID, &day1, day1)
	mk(models.TaskStatusCompleted, work.ID, &day1, day2)
	mk(models.TaskStatusCompleted, life.ID, &day2, day2)
	mk(models.TaskStatusGivenUp, work.ID, nil, day2)

	require.NoError(t, env.stats.Rebuild(env.ctx, actor.ID))
	first, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)

	assert.Equal(t, 6, first.TotalTasks)
	assert.Equal(t, 1, first.PendingTasks)
	assert.Equal(t, 1, first.InProgressTasks)
	assert.Equal(t, 3, first.CompletedTasks)
	assert.Equal(t, 1, first.GivenUpTasks)

	// 完成任务按completedAt分桶，放弃任务按updatedAt分桶，日期升序
	require.Len(t, first.DailyStats, 2)
	d1 := first.DailyStats[0]
	assert.Equal(t, "2026-08-01", d1.Date)
	assert.Equal(t, 2, d1.CompletedTasks)
	require.Len(t, d1.CompletedOfEachCategory, 1)
	assert.Equal(t, "工作", d1.CompletedOfEachCategory[0].CategoryName)
	assert.Equal(t, 2, d1.CompletedOfEachCategory[0].Count)

	d2 := first.DailyStats[1]
	assert.Equal(t, "2026-08-02", d2.Date)
	assert.Equal(t, 1, d2.CompletedTasks)
	assert.Equal(t, 1, d2.GivenUpTasks)
	require.Len(t, d2.CompletedOfEachCategory, 1)
	assert.Equal(t, "生活", d2.CompletedOfEachCategory[0].CategoryName)
	require.Len(t, d2.GivenUpOfEachCategory, 1)
	assert.Equal(t, "工作", d2.GivenUpOfEachCategory[0].CategoryName)

	// 幂等：重建两次结果完全一致
	require.NoError(t, env.stats.Rebuild(env.ctx, actor.ID))
	second, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStatRebuildRepairsIncrementalDrift(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "漂移修复用户")

	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "完成后删除"})
	require.NoError(t, err)
	_, err = env.tasks.Start(env.ctx, actor, task.ID)
	require.NoError(t, err)
	_, err = env.tasks.Finish(env.ctx, actor, task.ID)
	require.NoError(t, err)
	require.NoError(t, env.tasks.Delete(env.ctx, actor, task.ID))

	// 增量路径残留了已删除任务的完成记录
	assert.Equal(t, 1, env.getStat(t, actor.ID).CompletedTasks)

	require.NoError(t, env.stats.Rebuild(env.ctx, actor.ID))
	stat := env.getStat(t, actor.ID)
	assert.Equal(t, 0, stat.TotalTasks)
	assert.Equal(t, 0, stat.CompletedTasks)

	resp, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.DailyStats)
}
