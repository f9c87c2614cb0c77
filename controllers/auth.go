package controllers

import (
	"classease_go/middleware"
	"classease_go/models"
	"classease_go/storage"
	"classease_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthController struct {
	DB      *gorm.DB
	Auth    *middleware.Auth
	Storage *storage.Service
	Logs    *middleware.ActivityLogger
}

func NewAuthController(db *gorm.DB, auth *middleware.Auth, st *storage.Service, logs *middleware.ActivityLogger) *AuthController {
	return &AuthController{DB: db, Auth: auth, Storage: st, Logs: logs}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates a user and returns a token signed with the secret of
// the role on the user row.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req loginRequest
	if !parseBody(c, &req) {
		return nil
	}

	var user models.User
	if err := ac.DB.Where("username = ?", req.Username).
		First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := utils.CheckPassword(req.Password, user.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if user.Status != "active" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Account is inactive",
		})
	}

	token, err := ac.Auth.GenerateToken(&user)
	if err != nil {
		logrus.WithError(err).Error("Failed to generate token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	ac.Logs.Log(c, "login", "auth", user.ID, map[string]interface{}{
		"role": user.Role,
	})

	return c.JSON(fiber.Map{
		"token": token,
		"role":  user.Role,
		"user":  utils.ToUserShort(&user, ac.Storage.AbsoluteURL),
	})
}

// Logout revokes the presented token so it cannot be replayed.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	claims := &middleware.Claims{UserID: p.UserID, Role: p.Role}
	claims.ID = p.JTI
	if err := ac.Auth.RevokeToken(claims); err != nil {
		logrus.WithError(err).Error("Failed to revoke token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to log out",
		})
	}

	ac.Logs.Log(c, "logout", "auth", p.UserID, nil)

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// GetProfile returns the caller's role-keyed profile.
func (ac *AuthController) GetProfile(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var user models.User
	query := ac.DB
	switch p.Role {
	case models.RoleStudent:
		query = query.Preload("Student")
	case models.RoleTeacher:
		query = query.Preload("Teacher")
	}
	if err := query.First(&user, p.UserID).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"user": utils.ToUserDetail(&user, ac.Storage.AbsoluteURL),
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword verifies the current password and stores the new hash.
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if !parseBody(c, &req) {
		return nil
	}

	if err := utils.CheckPassword(req.CurrentPassword, p.User.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Current password is incorrect",
		})
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	if err := ac.DB.Model(&models.User{}).Where("id = ?", p.UserID).
		Update("password", hash).Error; err != nil {
		return respondServiceError(c, err)
	}

	ac.Logs.Log(c, "change_password", "users", p.UserID, nil)

	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}
