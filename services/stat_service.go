package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"TodoFlowGo/config"
	"TodoFlowGo/models"
	"TodoFlowGo/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatService 统计总账
// 任务生命周期流转时增量更新，Rebuild 作为对账兜底，可从任务表全量重建
type StatService struct {
	db *gorm.DB
}

func NewStatService(db *gorm.DB) *StatService {
	return &StatService{db: db}
}

// utcDay 返回时间戳所在的UTC自然日零点
// 增量更新和全量重建必须用同一个口径，否则两条路径会静默分叉
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// lockForUpdate 行锁，保证同一用户的并发增减不会互相覆盖
// sqlite是单写者模型且不支持FOR UPDATE，仅在mysql下加锁
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// getOrCreateLocked 取出用户的统计行并加行锁，不存在则创建
func (s *StatService) getOrCreateLocked(tx *gorm.DB, userID string) (*models.Stat, error) {
	var stat models.Stat
	err := lockForUpdate(tx).
		Where("user_id = ?", userID).First(&stat).Error
	if err == nil {
		return &stat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	stat = models.Stat{ID: utils.GenerateID(), UserID: userID}
	if err := tx.Create(&stat).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// 并发创建撞到唯一索引，重新加锁读取
			if err2 := lockForUpdate(tx).
				Where("user_id = ?", userID).First(&stat).Error; err2 == nil {
				return &stat, nil
			}
		}
		return nil, fmt.Errorf("create stat: %w", err)
	}
	return &stat, nil
}

// clampDec 计数器减一，最低截断为0
// 出现负值说明统计已经漂移，记录告警但绝不中断触发它的操作
func clampDec(current int, counter, userID string) int {
	if current <= 0 {
		config.Logger.Warnw("统计计数即将为负，已截断为0",
			"counter", counter,
			"userID", userID,
		)
		return 0
	}
	return current - 1
}

// RecordCreated 任务创建：total+1，pending+1
func (s *StatService) RecordCreated(tx *gorm.DB, userID string) error {
	stat, err := s.getOrCreateLocked(tx, userID)
	if err != nil {
		return err
	}
	return tx.Model(stat).Updates(map[string]interface{}{
		"total_tasks":   stat.TotalTasks + 1,
		"pending_tasks": stat.PendingTasks + 1,
	}).Error
}

// RecordStarted 任务开始：inProgress+1，pending-1
func (s *StatService) RecordStarted(tx *gorm.DB, userID string) error {
	stat, err := s.getOrCreateLocked(tx, userID)
	if err != nil {
		return err
	}
	return tx.Model(stat).Updates(map[string]interface{}{
		"in_progress_tasks": stat.InProgressTasks + 1,
		"pending_tasks":     clampDec(stat.PendingTasks, "pendingTasks", userID),
	}).Error
}

// RecordCompleted 任务完成：completed+1，inProgress-1，并更新当日桶和分类细分
func (s *StatService) RecordCompleted(tx *gorm.DB, userID string, categoryID *string, categoryName string, now time.Time) error {
	stat, err := s.getOrCreateLocked(tx, userID)
	if err != nil {
		return err
	}
	if err := tx.Model(stat).Updates(map[string]interface{}{
		"completed_tasks":   stat.CompletedTasks + 1,
		"in_progress_tasks": clampDec(stat.InProgressTasks, "inProgressTasks", userID),
	}).Error; err != nil {
		return err
	}

	daily, err := s.getOrCreateDaily(tx, stat.ID, utcDay(now))
	if err != nil {
		return err
	}
	if err := tx.Model(daily).Update("completed_tasks", daily.CompletedTasks+1).Error; err != nil {
		return err
	}
	return s.bumpCategoryCount(tx, daily.ID, models.BreakdownCompleted, categoryID, categoryName)
}

// RecordGivenUp 任务放弃：givenUp+1，inProgress-1，并更新当日桶和分类细分
func (s *StatService) RecordGivenUp(tx *gorm.DB, userID string, categoryID *string, categoryName string, now time.Time) error {
	stat, err := s.getOrCreateLocked(tx, userID)
	if err != nil {
		return err
	}
	if err := tx.Model(stat).Updates(map[string]interface{}{
		"given_up_tasks":    stat.GivenUpTasks + 1,
		"in_progress_tasks": clampDec(stat.InProgressTasks, "inProgressTasks", userID),
	}).Error; err != nil {
		return err
	}

	daily, err := s.getOrCreateDaily(tx, stat.ID, utcDay(now))
	if err != nil {
		return err
	}
	if err := tx.Model(daily).Update("given_up_tasks", daily.GivenUpTasks+1).Error; err != nil {
		return err
	}
	return s.bumpCategoryCount(tx, daily.ID, models.BreakdownGivenUp, categoryID, categoryName)
}

// RecordRemovedCompleted 回撤一条完成记录（仅内部维护路径使用）
// 总计数减一；当日桶和分类细分只有存在时才减，全部截断到0
func (s *StatService) RecordRemovedCompleted(tx *gorm.DB, userID string, categoryID *string, now time.Time) error {
	stat, err := s.getOrCreateLocked(tx, userID)
	if err != nil {
		return err
	}
	if err := tx.Model(stat).
		Update("completed_tasks", clampDec(stat.CompletedTasks, "completedTasks", userID)).Error; err != nil {
		return err
	}
	return s.decDaily(tx, stat.ID, models.BreakdownCompleted, categoryID, userID, now)
}

// RecordRemovedGivenUp 回撤一条放弃记录（仅内部维护路径使用）
func (s *StatService) RecordRemovedGivenUp(tx *gorm.DB, userID string, categoryID *string, now time.Time) error {
	stat, err := s.getOrCreateLocked(tx, userID)
	if err != nil {
		return err
	}
	if err := tx.Model(stat).
		Update("given_up_tasks", clampDec(stat.GivenUpTasks, "givenUpTasks", userID)).Error; err != nil {
		return err
	}
	return s.decDaily(tx, stat.ID, models.BreakdownGivenUp, categoryID, userID, now)
}

func (s *StatService) getOrCreateDaily(tx *gorm.DB, statID string, day time.Time) (*models.DailyStat, error) {
	var daily models.DailyStat
	err := tx.Where("stat_id = ? AND date = ?", statID, day).First(&daily).Error
	if err == nil {
		return &daily, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	daily = models.DailyStat{ID: utils.GenerateID(), StatID: statID, Date: day}
	if err := tx.Create(&daily).Error; err != nil {
		return nil, fmt.Errorf("create daily stat: %w", err)
	}
	return &daily, nil
}

func (s *StatService) bumpCategoryCount(tx *gorm.DB, dailyStatID, kind string, categoryID *string, categoryName string) error {
	entry, err := s.findCategoryCount(tx, dailyStatID, kind, categoryID)
	if err != nil {
		return err
	}
	if entry != nil {
		return tx.Model(entry).Update("count", entry.Count+1).Error
	}
	// 首次出现该分类时记录当时的分类名快照
	return tx.Create(&models.DailyCategoryCount{
		ID:           utils.GenerateID(),
		DailyStatID:  dailyStatID,
		Kind:         kind,
		CategoryID:   categoryID,
		CategoryName: categoryName,
		Count:        1,
	}).Error
}

func (s *StatService) decDaily(tx *gorm.DB, statID, kind string, categoryID *string, userID string, now time.Time) error {
	var daily models.DailyStat
	err := tx.Where("stat_id = ? AND date = ?", statID, utcDay(now)).First(&daily).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	column := "completed_tasks"
	current := daily.CompletedTasks
	if kind == models.BreakdownGivenUp {
		column = "given_up_tasks"
		current = daily.GivenUpTasks
	}
	if err := tx.Model(&daily).Update(column, clampDec(current, "daily "+column, userID)).Error; err != nil {
		return err
	}

	entry, err := s.findCategoryCount(tx, daily.ID, kind, categoryID)
	if err != nil || entry == nil {
		return err
	}
	return tx.Model(entry).Update("count", clampDec(entry.Count, "daily category count", userID)).Error
}

func (s *StatService) findCategoryCount(tx *gorm.DB, dailyStatID, kind string, categoryID *string) (*models.DailyCategoryCount, error) {
	var entry models.DailyCategoryCount
	db := tx.Where("daily_stat_id = ? AND kind = ?", dailyStatID, kind)
	if categoryID == nil {
		db = db.Where("category_id IS NULL")
	} else {
		db = db.Where("category_id = ?", *categoryID)
	}
	err := db.First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Get 查询用户的统计总账，不存在则懒创建一份全零的
func (s *StatService) Get(ctx context.Context, userID string) (*models.StatResponse, error) {
	db := s.db.WithContext(ctx)

	var stat models.Stat
	err := db.Where("user_id = ?", userID).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stat = models.Stat{ID: utils.GenerateID(), UserID: userID}
		if err := db.Create(&stat).Error; err != nil && !isDuplicateKeyErr(err) {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	var dailies []models.DailyStat
	if err := db.Preload("CategoryCounts").
		Where("stat_id = ?", stat.ID).
		Order("date ASC").
		Find(&dailies).Error; err != nil {
		return nil, err
	}

	resp := &models.StatResponse{
		UserID:          stat.UserID,
		TotalTasks:      stat.TotalTasks,
		PendingTasks:    stat.PendingTasks,
		InProgressTasks: stat.InProgressTasks,
		CompletedTasks:  stat.CompletedTasks,
		GivenUpTasks:    stat.GivenUpTasks,
		DailyStats:      make([]models.DailyStatResponse, 0, len(dailies)),
	}
	for _, d := range dailies {
		resp.DailyStats = append(resp.DailyStats, models.DailyStatResponse{
			Date:                    d.Date.UTC().Format("2006-01-02"),
			CompletedTasks:          d.CompletedTasks,
			CompletedOfEachCategory: categoryCounts(d.CategoryCounts, models.BreakdownCompleted),
			GivenUpTasks:            d.GivenUpTasks,
			GivenUpOfEachCategory:   categoryCounts(d.CategoryCounts, models.BreakdownGivenUp),
		})
	}
	return resp, nil
}

// categoryCounts 过滤出指定类型的分类细分并按分类名排序，保证输出确定
func categoryCounts(entries []models.DailyCategoryCount, kind string) []models.CategoryCountResponse {
	out := make([]models.CategoryCountResponse, 0)
	for _, e := range entries {
		if e.Kind != kind {
			continue
		}
		out = append(out, models.CategoryCountResponse{
			CategoryID:   e.CategoryID,
			CategoryName: e.CategoryName,
			Count:        e.Count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryName < out[j].CategoryName })
	return out
}

// Rebuild 从任务表全量重建用户的统计总账，幂等，作为漂移对账的兜底
// 完成任务按completedAt的UTC日期分桶，放弃任务按updatedAt的UTC日期分桶，
// 与增量更新保持同一口径
func (s *StatService) Rebuild(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stat, err := s.getOrCreateLocked(tx, userID)
		if err != nil {
			return err
		}

		var categories []models.Category
		if err := tx.Where("user_id = ?", userID).Find(&categories).Error; err != nil {
			return err
		}
		categoryIDs := make([]string, 0, len(categories))
		nameByID := make(map[string]string, len(categories))
		for _, c := range categories {
			categoryIDs = append(categoryIDs, c.ID)
			nameByID[c.ID] = c.Name
		}

		var tasks []models.Task
		if len(categoryIDs) > 0 {
			if err := tx.Where("category_id IN ?", categoryIDs).Find(&tasks).Error; err != nil {
				return err
			}
		}

		// 清空旧的日桶
		var dailyIDs []string
		if err := tx.Model(&models.DailyStat{}).
			Where("stat_id = ?", stat.ID).
			Pluck("id", &dailyIDs).Error; err != nil {
			return err
		}
		if len(dailyIDs) > 0 {
			if err := tx.Where("daily_stat_id IN ?", dailyIDs).
				Delete(&models.DailyCategoryCount{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("stat_id = ?", stat.ID).Delete(&models.DailyStat{}).Error; err != nil {
			return err
		}

		type bucket struct {
			completed   int
			givenUp     int
			completedBy map[string]int
			givenUpBy   map[string]int
		}
		buckets := map[time.Time]*bucket{}
		getBucket := func(day time.Time) *bucket {
			b, ok := buckets[day]
			if !ok {
				b = &bucket{completedBy: map[string]int{}, givenUpBy: map[string]int{}}
				buckets[day] = b
			}
			return b
		}

		totals := map[string]int{}
		for _, t := range tasks {
			totals[t.Status]++
			if t.CategoryID == nil {
				continue
			}
			switch {
			case t.Status == models.TaskStatusCompleted && t.CompletedAt != nil:
				b := getBucket(utcDay(*t.CompletedAt))
				b.completed++
				b.completedBy[*t.CategoryID]++
			case t.Status == models.TaskStatusGivenUp:
				b := getBucket(utcDay(t.UpdatedAt))
				b.givenUp++
				b.givenUpBy[*t.CategoryID]++
			}
		}

		if err := tx.Model(stat).Updates(map[string]interface{}{
			"total_tasks":       len(tasks),
			"pending_tasks":     totals[models.TaskStatusPending],
			"in_progress_tasks": totals[models.TaskStatusInProgress],
			"completed_tasks":   totals[models.TaskStatusCompleted],
			"given_up_tasks":    totals[models.TaskStatusGivenUp],
		}).Error; err != nil {
			return err
		}

		// 按日期升序重建日桶
		days := make([]time.Time, 0, len(buckets))
		for day := range buckets {
			days = append(days, day)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

		for _, day := range days {
			b := buckets[day]
			daily := models.DailyStat{
				ID:             utils.GenerateID(),
				StatID:         stat.ID,
				Date:           day,
				CompletedTasks: b.completed,
				GivenUpTasks:   b.givenUp,
			}
			if err := tx.Create(&daily).Error; err != nil {
				return err
			}
			if err := s.createCounts(tx, daily.ID, models.BreakdownCompleted, b.completedBy, nameByID); err != nil {
				return err
			}
			if err := s.createCounts(tx, daily.ID, models.BreakdownGivenUp, b.givenUpBy, nameByID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *StatService) createCounts(tx *gorm.DB, dailyStatID, kind string, counts map[string]int, nameByID map[string]string) error {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		categoryID := id
		if err := tx.Create(&models.DailyCategoryCount{
			ID:           utils.GenerateID(),
			DailyStatID:  dailyStatID,
			Kind:         kind,
			CategoryID:   &categoryID,
			CategoryName: nameByID[id],
			Count:        counts[id],
		}).Error; err != nil {
			return err
		}
	}
	return nil
}
