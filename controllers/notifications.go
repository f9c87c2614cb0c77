package controllers

import (
	"time"

	"classease_go/middleware"
	"classease_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB   *gorm.DB
	Logs *middleware.ActivityLogger
}

func NewNotificationController(db *gorm.DB, logs *middleware.ActivityLogger) *NotificationController {
	return &NotificationController{DB: db, Logs: logs}
}

// GetNotifications lists the caller's notifications, unread first.
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	page, limit, offset := pagination(c)

	query := nc.DB.Model(&models.Notification{}).Where("user_id = ?", p.UserID)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondServiceError(c, err)
	}

	var notifications []models.Notification
	if err := query.Order("read, id DESC").Limit(limit).Offset(offset).
		Find(&notifications).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total":         total,
		"page":          page,
		"limit":         limit,
	})
}

// MarkRead marks one of the caller's notifications as read.
func (nc *NotificationController) MarkRead(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification ID"})
	}

	var notification models.Notification
	if err := nc.DB.Where("id = ? AND user_id = ?", id, p.UserID).
		First(&notification).Error; err != nil {
		return respondServiceError(c, err)
	}

	if !notification.Read {
		now := time.Now()
		if err := nc.DB.Model(&notification).Updates(map[string]interface{}{
			"read":    true,
			"read_at": now,
		}).Error; err != nil {
			return respondServiceError(c, err)
		}
	}

	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

type broadcastRequest struct {
	Role    string `json:"role" validate:"required,oneof=admin teacher student all"`
	Title   string `json:"title" validate:"required,max=255"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=info warning error success"`
}

// Broadcast creates a notification for every active user of a role.
func (nc *NotificationController) Broadcast(c *fiber.Ctx) error {
	var req broadcastRequest
	if !parseBody(c, &req) {
		return nil
	}
	if req.Type == "" {
		req.Type = "info"
	}

	query := nc.DB.Model(&models.User{}).Where("status = ?", "active")
	if req.Role != "all" {
		query = query.Where("role = ?", req.Role)
	}

	var userIDs []uint
	if err := query.Pluck("id", &userIDs).Error; err != nil {
		return respondServiceError(c, err)
	}
	if len(userIDs) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No recipients found",
		})
	}

	notifications := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notifications = append(notifications, models.Notification{
			UserID:  id,
			Title:   req.Title,
			Message: req.Message,
			Type:    req.Type,
		})
	}
	if err := nc.DB.Create(&notifications).Error; err != nil {
		return respondServiceError(c, err)
	}

	nc.Logs.Log(c, "broadcast", "notifications", 0, map[string]interface{}{
		"role":       req.Role,
		"recipients": len(userIDs),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Notification sent",
		"recipients": len(userIDs),
	})
}
