package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classease_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		}).Info("HTTP Request")

		return err
	}
}

// ActivityLogger records who changed what. Entries are cached in Redis and
// flushed to the database by the maintenance scheduler; when Redis is down
// they are written to the database directly.
type ActivityLogger struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewActivityLogger(db *gorm.DB, rc *redis.Client) *ActivityLogger {
	return &ActivityLogger{DB: db, Redis: rc}
}

// Log records one activity entry for the current request.
func (al *ActivityLogger) Log(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) {
	var userID uint
	if p, err := CurrentPrincipal(c); err == nil {
		userID = p.UserID
	}

	var detailsJSON models.JSON
	if details != nil {
		if detailsBytes, err := json.Marshal(details); err == nil {
			detailsJSON = detailsBytes
		}
	}

	entry := models.ActivityLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    detailsJSON,
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
	}

	go func(e models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in activity logger")
			}
		}()

		if err := al.cache(e); err != nil {
			if dbErr := al.DB.Create(&e).Error; dbErr != nil {
				logrus.WithError(dbErr).Error("Failed to save activity log")
			}
		}
	}(entry)
}

// cache stores an entry in Redis with a 24-hour TTL and queues it for the
// periodic database flush.
func (al *ActivityLogger) cache(entry models.ActivityLog) error {
	if al.Redis == nil {
		return fmt.Errorf("redis client is nil")
	}

	ctx := context.Background()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	key := fmt.Sprintf("log:%d:%s:%d", entry.UserID, entry.Action, time.Now().UnixNano())
	if err := al.Redis.Set(ctx, key, data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to cache log: %w", err)
	}

	if err := al.Redis.ZAdd(ctx, "logs:queue", &redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: key,
	}).Err(); err != nil {
		logrus.WithError(err).Error("Failed to add log to processing queue")
	}

	return nil
}
