package controllers

import (
	"classease_go/middleware"
	"classease_go/models"
	"classease_go/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TeacherController struct {
	DB          *gorm.DB
	Assignments *services.TeacherAssignmentService
	Logs        *middleware.ActivityLogger
}

func NewTeacherController(db *gorm.DB, assignments *services.TeacherAssignmentService, logs *middleware.ActivityLogger) *TeacherController {
	return &TeacherController{DB: db, Assignments: assignments, Logs: logs}
}

// GetTeachers lists teacher profiles.
func (tc *TeacherController) GetTeachers(c *fiber.Ctx) error {
	page, limit, offset := pagination(c)

	query := tc.DB.Model(&models.Teacher{}).Preload("User")
	if position := c.Query("position"); position != "" {
		query = query.Where("position = ?", position)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondServiceError(c, err)
	}

	var teachers []models.Teacher
	if err := query.Order("id").Limit(limit).Offset(offset).Find(&teachers).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"teachers": teachers,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetTeacher returns one teacher with their assignments for the requested year.
func (tc *TeacherController) GetTeacher(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher ID"})
	}

	var teacher models.Teacher
	if err := tc.DB.Preload("User").First(&teacher, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	body := fiber.Map{"teacher": teacher}
	if yearID := c.QueryInt("year_id"); yearID > 0 {
		records, err := tc.Assignments.AssignmentsForTeacher(teacher.ID, uint(yearID))
		if err != nil {
			return respondServiceError(c, err)
		}
		body["assignments"] = records
	}
	return c.JSON(body)
}

type updateTeacherRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Position  *string `json:"position" validate:"omitempty,oneof=teacher head_teacher"`
}

// UpdateTeacher patches a teacher profile. Demoting a head teacher back to
// teaching keeps their existing assignments.
func (tc *TeacherController) UpdateTeacher(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher ID"})
	}

	var req updateTeacherRequest
	if !parseBody(c, &req) {
		return nil
	}

	var teacher models.Teacher
	if err := tc.DB.First(&teacher, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if len(updates) > 0 {
		if err := tc.DB.Model(&teacher).Updates(updates).Error; err != nil {
			return respondServiceError(c, err)
		}
	}

	tc.Logs.Log(c, "update", "teachers", teacher.ID, updates)

	return c.JSON(fiber.Map{
		"message": "Teacher updated successfully",
		"teacher": teacher,
	})
}

// MyAssignments lists the calling teacher's assignments for one year.
func (tc *TeacherController) MyAssignments(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var teacher models.Teacher
	if err := tc.DB.Where("user_id = ?", p.UserID).First(&teacher).Error; err != nil {
		return respondServiceError(c, err)
	}

	yearID := c.QueryInt("year_id")
	if yearID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "year_id query parameter is required",
		})
	}

	records, err := tc.Assignments.AssignmentsForTeacher(teacher.ID, uint(yearID))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"assignments": records})
}
