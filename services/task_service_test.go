package services

import (
	"testing"
	"time"

	"TodoFlowGo/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycleCompleted(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "小明")
	category := env.seedCategory(t, actor, "工作")

	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{
		Title:      "写周报",
		CategoryID: category.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, models.PriorityMedium, task.Priority)

	stat := env.getStat(t, actor.ID)
	assert.Equal(t, 1, stat.TotalTasks)
	assert.Equal(t, 1, stat.PendingTasks)

	task, err = env.tasks.Start(env.ctx, actor, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)

	stat = env.getStat(t, actor.ID)
	assert.Equal(t, 0, stat.PendingTasks)
	assert.Equal(t, 1, stat.InProgressTasks)

	task, err = env.tasks.Finish(env.ctx, actor, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.False(t, task.IsOverDue)

	stat = env.getStat(t, actor.ID)
	assert.Equal(t, 1, stat.TotalTasks)
	assert.Equal(t, 0, stat.InProgressTasks)
	assert.Equal(t, 1, stat.CompletedTasks)

	resp, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	require.Len(t, resp.DailyStats, 1)
	today := resp.DailyStats[0]
	assert.Equal(t, utcDay(time.Now()).Format("2006-01-02"), today.Date)
	assert.Equal(t, 1, today.CompletedTasks)
	require.Len(t, today.CompletedOfEachCategory, 1)
	assert.Equal(t, "工作", today.CompletedOfEachCategory[0].CategoryName)
	assert.Equal(t, 1, today.CompletedOfEachCategory[0].Count)
	assert.Empty(t, today.GivenUpOfEachCategory)
}

func TestTaskLifecycleGivenUp(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "小红")

	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "练琴"})
	require.NoError(t, err)
	_, err = env.tasks.Start(env.ctx, actor, task.ID)
	require.NoError(t, err)
	task, err = env.tasks.GiveUp(env.ctx, actor, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusGivenUp, task.Status)
	assert.Nil(t, task.CompletedAt)

	stat := env.getStat(t, actor.ID)
	assert.Equal(t, 1, stat.TotalTasks)
	assert.Equal(t, 0, stat.InProgressTasks)
	assert.Equal(t, 1, stat.GivenUpTasks)

	resp, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	require.Len(t, resp.DailyStats, 1)
	assert.Equal(t, 1, resp.DailyStats[0].GivenUpTasks)
	require.Len(t, resp.DailyStats[0].GivenUpOfEachCategory, 1)
	assert.Equal(t, models.UncategorizedName, resp.DailyStats[0].GivenUpOfEachCategory[0].CategoryName)
}

func TestTaskInvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "小刚")

	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "背单词"})
	require.NoError(t, err)

	// pending 不能直接完成或放弃
	_, err = env.tasks.Finish(env.ctx, actor, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.tasks.GiveUp(env.ctx, actor, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.tasks.Start(env.ctx, actor, task.ID)
	require.NoError(t, err)

	// 条件更新保证重复开始只有第一次生效
	_, err = env.tasks.Start(env.ctx, actor, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.tasks.Finish(env.ctx, actor, task.ID)
	require.NoError(t, err)

	// 终态不可再流转
	_, err = env.tasks.GiveUp(env.ctx, actor, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.tasks.Start(env.ctx, actor, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// 失败的流转不能二次记账
	stat := env.getStat(t, actor.ID)
	assert.Equal(t, 1, stat.TotalTasks)
	assert.Equal(t, 0, stat.PendingTasks)
	assert.Equal(t, 0, stat.InProgressTasks)
	assert.Equal(t, 1, stat.CompletedTasks)
	assert.Equal(t, 0, stat.GivenUpTasks)
}

func TestTaskFinishOverdue(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "小李")

	due := time.Now().UTC().Add(-time.Hour)
	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "早该交的作业", DueDate: &due})
	require.NoError(t, err)
	_, err = env.tasks.Start(env.ctx, actor, task.ID)
	require.NoError(t, err)
	task, err = env.tasks.Finish(env.ctx, actor, task.ID)
	require.NoError(t, err)
	assert.True(t, task.IsOverDue)
}

func TestTaskCreateCategoryResolution(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "甲")
	other := env.seedUser(t, "乙")
	mine := env.seedCategory(t, actor, "学习")
	theirs := env.seedCategory(t, other, "学习")

	// 未指定分类时落入哨兵分类
	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "a"})
	require.NoError(t, err)
	require.NotNil(t, task.Category)
	assert.Equal(t, models.UncategorizedName, task.Category.Name)
	assert.Equal(t, actor.ID, task.Category.UserID)

	// 占位值同样落入哨兵分类
	task, err = env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "b", CategoryID: models.UncategorizedKeyword})
	require.NoError(t, err)
	assert.Equal(t, models.UncategorizedName, task.Category.Name)

	task, err = env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "c", CategoryID: mine.ID})
	require.NoError(t, err)
	assert.Equal(t, mine.ID, *task.CategoryID)

	// 别人的分类视同非法ID，不能泄露存在性
	_, err = env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "d", CategoryID: theirs.ID})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "e", CategoryID: "no-such-id"})
	assert.ErrorAs(t, err, &verr)
}

func TestTaskCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "丙")

	var verr *ValidationError
	_, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "   "})
	assert.ErrorAs(t, err, &verr)

	_, err = env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "x", Priority: "Urgent"})
	assert.ErrorAs(t, err, &verr)
}

func TestTaskUpdateFieldsOnly(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "丁")
	category := env.seedCategory(t, actor, "生活")

	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "旧标题"})
	require.NoError(t, err)
	before := env.getStat(t, actor.ID)

	title := "新标题"
	priority := models.PriorityHigh
	updated, err := env.tasks.Update(env.ctx, actor, task.ID, models.UpdateTaskRequest{
		Title:      &title,
		Priority:   &priority,
		CategoryID: &category.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "新标题", updated.Title)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	assert.Equal(t, category.ID, *updated.CategoryID)
	// 字段更新不影响状态，也不触碰统计
	assert.Equal(t, models.TaskStatusPending, updated.Status)
	assert.Equal(t, before, env.getStat(t, actor.ID))

	var verr *ValidationError
	_, err = env.tasks.Update(env.ctx, actor, task.ID, models.UpdateTaskRequest{})
	assert.ErrorAs(t, err, &verr)

	bad := "Urgent"
	_, err = env.tasks.Update(env.ctx, actor, task.ID, models.UpdateTaskRequest{Priority: &bad})
	assert.ErrorAs(t, err, &verr)
}

func TestTaskDeleteThenRebuild(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "戊")

	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "将被删除"})
	require.NoError(t, err)
	require.NoError(t, env.tasks.Delete(env.ctx, actor, task.ID))

	// 普通删除不回撤统计，漂移留给对账修正
	stat := env.getStat(t, actor.ID)
	assert.Equal(t, 1, stat.TotalTasks)
	assert.Equal(t, 1, stat.PendingTasks)

	require.NoError(t, env.stats.Rebuild(env.ctx, actor.ID))
	stat = env.getStat(t, actor.ID)
	assert.Equal(t, 0, stat.TotalTasks)
	assert.Equal(t, 0, stat.PendingTasks)
}

func TestTaskPermission(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "所有者")
	stranger := env.seedUser(t, "路人")
	admin := Actor{ID: "admin-id", Role: models.RoleAdmin}

	task, err := env.tasks.Create(env.ctx, owner, models.CreateTaskRequest{Title: "私人任务"})
	require.NoError(t, err)

	_, err = env.tasks.Get(env.ctx, stranger, task.ID)
	assert.ErrorIs(t, err, ErrPermission)
	_, err = env.tasks.Start(env.ctx, stranger, task.ID)
	assert.ErrorIs(t, err, ErrPermission)
	err = env.tasks.Delete(env.ctx, stranger, task.ID)
	assert.ErrorIs(t, err, ErrPermission)

	// 管理员不受归属限制
	got, err := env.tasks.Get(env.ctx, admin, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = env.tasks.Get(env.ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskListScoping(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedUser(t, "用户A")
	b := env.seedUser(t, "用户B")

	_, err := env.tasks.Create(env.ctx, a, models.CreateTaskRequest{Title: "A的任务"})
	require.NoError(t, err)
	_, err = env.tasks.Create(env.ctx, b, models.CreateTaskRequest{Title: "B的任务"})
	require.NoError(t, err)

	list, err := env.tasks.List(env.ctx, a)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A的任务", list[0].Title)

	admin := Actor{ID: "admin-id", Role: models.RoleAdmin}
	list, err = env.tasks.List(env.ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	pending, err := env.tasks.ListByStatus(env.ctx, a, models.TaskStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	var verr *ValidationError
	_, err = env.tasks.ListByStatus(env.ctx, a, "done")
	assert.ErrorAs(t, err, &verr)
}

func TestTodayDeadlines(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "己")

	dueToday := time.Now().UTC()
	dueTomorrow := dueToday.AddDate(0, 0, 1)
	task, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "今天到期", DueDate: &dueToday})
	require.NoError(t, err)
	_, err = env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "明天到期", DueDate: &dueTomorrow})
	require.NoError(t, err)

	list, err := env.tasks.TodayDeadlines(env.ctx, actor)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "今天到期", list[0].Title)

	// 已结束的任务不再出现在提醒里
	_, err = env.tasks.Start(env.ctx, actor, task.ID)
	require.NoError(t, err)
	_, err = env.tasks.Finish(env.ctx, actor, task.ID)
	require.NoError(t, err)
	list, err = env.tasks.TodayDeadlines(env.ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPruneFinished(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "庚")

	finished, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "已完成"})
	require.NoError(t, err)
	_, err = env.tasks.Start(env.ctx, actor, finished.ID)
	require.NoError(t, err)
	_, err = env.tasks.Finish(env.ctx, actor, finished.ID)
	require.NoError(t, err)

	running, err := env.tasks.Create(env.ctx, actor, models.CreateTaskRequest{Title: "进行中"})
	require.NoError(t, err)
	_, err = env.tasks.Start(env.ctx, actor, running.ID)
	require.NoError(t, err)

	pruned, err := env.tasks.PruneFinished(env.ctx, actor.ID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, err = env.tasks.Get(env.ctx, actor, finished.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.tasks.Get(env.ctx, actor, running.ID)
	require.NoError(t, err)

	// 回撤只动completed计数和当日桶，总数留给对账
	stat := env.getStat(t, actor.ID)
	assert.Equal(t, 2, stat.TotalTasks)
	assert.Equal(t, 0, stat.CompletedTasks)
	assert.Equal(t, 1, stat.InProgressTasks)

	resp, err := env.stats.Get(env.ctx, actor.ID)
	require.NoError(t, err)
	require.Len(t, resp.DailyStats, 1)
	assert.Equal(t, 0, resp.DailyStats[0].CompletedTasks)

	// 截止时间之前没有可清理的任务时是空操作
	pruned, err = env.tasks.PruneFinished(env.ctx, actor.ID, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)
}
