package controllers

import (
	"classease_go/middleware"
	"classease_go/models"
	"classease_go/services"
	"classease_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MarkListController struct {
	DB       *gorm.DB
	Setup    *services.MarkListService
	Pipeline *services.ScorePipelineService
	Logs     *middleware.ActivityLogger
}

func NewMarkListController(db *gorm.DB, setup *services.MarkListService, pipeline *services.ScorePipelineService, logs *middleware.ActivityLogger) *MarkListController {
	return &MarkListController{DB: db, Setup: setup, Pipeline: pipeline, Logs: logs}
}

// Create bulk-creates the mark rows for a grade's semester.
func (mc *MarkListController) Create(c *fiber.Ctx) error {
	var in services.SetupInput
	if !parseBody(c, &in) {
		return nil
	}

	res, err := mc.Setup.Setup(in)
	if err != nil {
		return respondServiceError(c, err)
	}

	mc.Logs.Log(c, "setup", "mark_lists", 0, res)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Mark lists created successfully",
		"result":  res,
	})
}

// ForTeacher lists the mark rows the calling teacher may edit.
func (mc *MarkListController) ForTeacher(c *fiber.Ctx) error {
	teacher, err := mc.callingTeacher(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	marks, err := mc.Setup.MarksForTeacher(teacher.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	rows := make([]utils.MarkRow, 0, len(marks))
	for _, m := range marks {
		rows = append(rows, utils.ToMarkRow(m))
	}
	return c.JSON(fiber.Map{"marks": rows})
}

type updateScoreRequest struct {
	Score float64 `json:"score" validate:"min=0,max=100"`
}

// UpdateScore writes one score and cascades the dependent aggregates. Only a
// teacher whose assignment covers the mark's subject, term, and the student's
// grade and section may edit it.
func (mc *MarkListController) UpdateScore(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mark list ID"})
	}

	var req updateScoreRequest
	if !parseBody(c, &req) {
		return nil
	}

	teacher, err := mc.callingTeacher(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	var mark models.MarkList
	if err := mc.DB.First(&mark, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	owns, err := mc.Setup.TeacherMayEdit(teacher.ID, &mark)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !owns {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not assigned to this student's class for this subject and term",
		})
	}

	updated, err := mc.Pipeline.UpdateScore(id, req.Score)
	if err != nil {
		return respondServiceError(c, err)
	}

	mc.Logs.Log(c, "update_score", "mark_lists", updated.ID, map[string]interface{}{
		"student_id": updated.StudentID,
		"subject_id": updated.SubjectID,
		"score":      req.Score,
	})

	return c.JSON(fiber.Map{
		"message":   "Score updated successfully",
		"mark_list": updated,
	})
}

func (mc *MarkListController) callingTeacher(c *fiber.Ctx) (*models.Teacher, error) {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return nil, err
	}
	var teacher models.Teacher
	if err := mc.DB.Where("user_id = ?", p.UserID).First(&teacher).Error; err != nil {
		return nil, err
	}
	return &teacher, nil
}
