package controllers

import (
	"classease_go/middleware"
	"classease_go/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AssignmentController struct {
	DB      *gorm.DB
	Service *services.TeacherAssignmentService
	Logs    *middleware.ActivityLogger
}

func NewAssignmentController(db *gorm.DB, svc *services.TeacherAssignmentService, logs *middleware.ActivityLogger) *AssignmentController {
	return &AssignmentController{DB: db, Service: svc, Logs: logs}
}

// Create assigns a teacher to a grade/stream/subject for every term of a year.
func (ac *AssignmentController) Create(c *fiber.Ctx) error {
	var in services.AssignmentInput
	if !parseBody(c, &in) {
		return nil
	}

	records, err := ac.Service.Assign(in)
	if err != nil {
		return respondServiceError(c, err)
	}

	ac.Logs.Log(c, "assign", "teacher_records", in.TeacherID, map[string]interface{}{
		"grade_id":   in.GradeID,
		"subject_id": in.SubjectID,
		"terms":      len(records),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Teacher assigned successfully",
		"records": records,
	})
}

// ForTeacher lists one teacher's assignments in a year.
func (ac *AssignmentController) ForTeacher(c *fiber.Ctx) error {
	teacherID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher ID"})
	}

	yearID := c.QueryInt("year_id")
	if yearID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "year_id query parameter is required",
		})
	}

	records, err := ac.Service.AssignmentsForTeacher(teacherID, uint(yearID))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"records": records})
}
