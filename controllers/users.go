package controllers

import (
	"errors"
	"time"

	"classease_go/middleware"
	"classease_go/models"
	"classease_go/storage"
	"classease_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserController struct {
	DB      *gorm.DB
	Storage *storage.Service
	Logs    *middleware.ActivityLogger
}

func NewUserController(db *gorm.DB, st *storage.Service, logs *middleware.ActivityLogger) *UserController {
	return &UserController{DB: db, Storage: st, Logs: logs}
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Role     string `json:"role" validate:"required,oneof=admin teacher student"`

	// Profile fields; which ones apply depends on Role
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Gender        string     `json:"gender"`
	GradeID       uint       `json:"grade_id"`
	GuardianName  string     `json:"guardian_name"`
	GuardianPhone string     `json:"guardian_phone"`
	Position      string     `json:"position"`
}

// CreateUser registers a new account with its role profile in one transaction.
func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if !parseBody(c, &req) {
		return nil
	}

	if req.Role == models.RoleStudent && req.GradeID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "grade_id is required for student accounts",
		})
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	user := models.User{
		Username: utils.SanitizeString(req.Username),
		Password: hash,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     req.Role,
		Status:   "active",
	}

	err = uc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		switch req.Role {
		case models.RoleStudent:
			var grade models.Grade
			if err := tx.First(&grade, req.GradeID).Error; err != nil {
				return err
			}
			return tx.Create(&models.Student{
				UserID:        user.ID,
				FirstName:     req.FirstName,
				LastName:      req.LastName,
				DateOfBirth:   req.DateOfBirth,
				Gender:        req.Gender,
				GradeID:       req.GradeID,
				GuardianName:  req.GuardianName,
				GuardianPhone: req.GuardianPhone,
			}).Error
		case models.RoleTeacher:
			teacher := models.Teacher{
				UserID:    user.ID,
				FirstName: req.FirstName,
				LastName:  req.LastName,
			}
			if req.Position != "" {
				teacher.Position = req.Position
			}
			return tx.Create(&teacher).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Username already taken",
			})
		}
		return respondServiceError(c, err)
	}

	uc.Logs.Log(c, "create", "users", user.ID, map[string]interface{}{
		"role": user.Role,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    utils.ToUserShort(&user, uc.Storage.AbsoluteURL),
	})
}

// GetUsers lists accounts, optionally filtered by role and status.
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	page, limit, offset := pagination(c)

	query := uc.DB.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondServiceError(c, err)
	}

	var users []models.User
	if err := query.Order("id").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return respondServiceError(c, err)
	}

	out := make([]utils.UserShort, 0, len(users))
	for i := range users {
		out = append(out, utils.ToUserShort(&users[i], uc.Storage.AbsoluteURL))
	}

	return c.JSON(fiber.Map{
		"users": out,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetUser returns one account with its role profile.
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var user models.User
	if err := uc.DB.Preload("Student").Preload("Teacher").First(&user, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"user": utils.ToUserDetail(&user, uc.Storage.AbsoluteURL),
	})
}

type updateUserRequest struct {
	Email  *string `json:"email" validate:"omitempty,email"`
	Phone  *string `json:"phone"`
	Status *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateUser patches the mutable account fields.
func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var req updateUserRequest
	if !parseBody(c, &req) {
		return nil
	}

	var user models.User
	if err := uc.DB.First(&user, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(updates) > 0 {
		if err := uc.DB.Model(&user).Updates(updates).Error; err != nil {
			return respondServiceError(c, err)
		}
	}

	uc.Logs.Log(c, "update", "users", user.ID, updates)

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    utils.ToUserShort(&user, uc.Storage.AbsoluteURL),
	})
}

// DeleteUser soft-deletes an account and its role profile.
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var user models.User
	if err := uc.DB.First(&user, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	err = uc.DB.Transaction(func(tx *gorm.DB) error {
		switch user.Role {
		case models.RoleStudent:
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.Student{}).Error; err != nil {
				return err
			}
		case models.RoleTeacher:
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.Teacher{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	uc.Logs.Log(c, "delete", "users", user.ID, nil)

	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

// UploadImage replaces a user's profile image.
func (uc *UserController) UploadImage(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	// Non-admins may only change their own image
	if p.Role != models.RoleAdmin && p.UserID != id {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Insufficient permissions",
		})
	}

	var user models.User
	if err := uc.DB.First(&user, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing image file",
		})
	}

	stored, err := uc.Storage.UploadProfileImage(file, user.ID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	previous := user.ImageURL
	if err := uc.DB.Model(&user).Update("image_url", stored).Error; err != nil {
		return respondServiceError(c, err)
	}
	if previous != "" {
		_ = uc.Storage.DeleteFile(previous)
	}

	uc.Logs.Log(c, "upload_image", "users", user.ID, nil)

	return c.JSON(fiber.Map{
		"message":   "Image uploaded successfully",
		"image_url": uc.Storage.AbsoluteURL(stored),
	})
}
