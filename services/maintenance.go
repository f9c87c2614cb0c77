package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classease_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaintenanceService runs the scheduled housekeeping jobs: flushing cached
// activity logs to the database and purging expired blacklist rows.
type MaintenanceService struct {
	DB    *gorm.DB
	Redis *redis.Client
	cron  *cron.Cron
}

func NewMaintenanceService(db *gorm.DB, rc *redis.Client) *MaintenanceService {
	return &MaintenanceService{DB: db, Redis: rc, cron: cron.New()}
}

// Start registers the cron jobs and starts the scheduler.
func (m *MaintenanceService) Start() error {
	if _, err := m.cron.AddFunc("@hourly", func() {
		if err := m.FlushCachedLogs(); err != nil {
			logrus.WithError(err).Warn("activity log flush failed")
		}
	}); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("@daily", func() {
		if err := m.PurgeExpiredTokens(); err != nil {
			logrus.WithError(err).Warn("revoked token purge failed")
		}
	}); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop stops the scheduler, waiting for running jobs.
func (m *MaintenanceService) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// FlushCachedLogs moves activity logs older than 24 hours from the Redis
// queue into the database.
func (m *MaintenanceService) FlushCachedLogs() error {
	if m.Redis == nil {
		return nil
	}

	ctx := context.Background()
	cutoff := time.Now().Add(-24 * time.Hour)

	keys, err := m.Redis.ZRangeByScore(ctx, "logs:queue", &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read log queue: %w", err)
	}

	var flushed, failed int
	for _, key := range keys {
		data, err := m.Redis.Get(ctx, key).Result()
		if err != nil {
			if err != redis.Nil {
				failed++
			}
			continue
		}

		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			failed++
			continue
		}

		if err := m.DB.Create(&entry).Error; err != nil {
			failed++
			continue
		}

		pipe := m.Redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, "logs:queue", key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).Warnf("failed to remove flushed log %s", key)
		}
		flushed++
	}

	if flushed > 0 || failed > 0 {
		logrus.Infof("Flushed %d cached logs to database, %d errors", flushed, failed)
	}
	return nil
}

// PurgeExpiredTokens removes blacklist rows whose tokens have expired anyway.
func (m *MaintenanceService) PurgeExpiredTokens() error {
	res := m.DB.Where("expires_at < ?", time.Now()).Delete(&models.RevokedToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		logrus.Infof("Purged %d expired revoked tokens", res.RowsAffected)
	}
	return nil
}
