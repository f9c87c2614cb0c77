package controllers

import (
	"classease_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LogController struct {
	DB *gorm.DB
}

func NewLogController(db *gorm.DB) *LogController {
	return &LogController{DB: db}
}

// GetLogs lists activity logs for auditing, newest first.
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	page, limit, offset := pagination(c)

	query := lc.DB.Model(&models.ActivityLog{})
	if userID := c.QueryInt("user_id"); userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondServiceError(c, err)
	}

	var logs []models.ActivityLog
	if err := query.Order("id DESC").Limit(limit).Offset(offset).
		Find(&logs).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
