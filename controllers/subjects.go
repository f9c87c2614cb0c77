package controllers

import (
	"errors"

	"classease_go/middleware"
	"classease_go/models"
	"classease_go/services"
	"classease_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SubjectController struct {
	DB   *gorm.DB
	Sync *services.RelationshipSyncService
	Logs *middleware.ActivityLogger
}

func NewSubjectController(db *gorm.DB, sync *services.RelationshipSyncService, logs *middleware.ActivityLogger) *SubjectController {
	return &SubjectController{DB: db, Sync: sync, Logs: logs}
}

type createSubjectRequest struct {
	YearID     uint   `json:"year_id" validate:"required"`
	Name       string `json:"name" validate:"required,max=255"`
	GradeLevel int    `json:"grade_level" validate:"required,min=1,max=12"`
}

// CreateSubject registers a subject for a year. The code is derived from the
// name and grade level, with a collision suffix when needed.
func (sc *SubjectController) CreateSubject(c *fiber.Ctx) error {
	var req createSubjectRequest
	if !parseBody(c, &req) {
		return nil
	}

	var year models.Year
	if err := sc.DB.First(&year, req.YearID).Error; err != nil {
		return respondServiceError(c, err)
	}

	code := utils.SubjectCode(req.Name, req.GradeLevel, func(code string) bool {
		var count int64
		sc.DB.Model(&models.Subject{}).Where("code = ?", code).Count(&count)
		return count > 0
	})

	subject := models.Subject{
		YearID: req.YearID,
		Name:   utils.SanitizeString(req.Name),
		Code:   code,
	}
	if err := sc.DB.Create(&subject).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Subject code already exists",
			})
		}
		return respondServiceError(c, err)
	}

	sc.Logs.Log(c, "create", "subjects", subject.ID, map[string]interface{}{
		"code": subject.Code,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Subject created successfully",
		"subject": subject,
	})
}

// GetSubjects lists subjects, optionally scoped to one year.
func (sc *SubjectController) GetSubjects(c *fiber.Ctx) error {
	query := sc.DB.Model(&models.Subject{})
	if yearID := c.QueryInt("year_id"); yearID > 0 {
		query = query.Where("year_id = ?", yearID)
	}

	var subjects []models.Subject
	if err := query.Order("name").Find(&subjects).Error; err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"subjects": subjects})
}

// GetSubject returns one subject with the grades it is linked to.
func (sc *SubjectController) GetSubject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subject ID"})
	}

	var subject models.Subject
	if err := sc.DB.First(&subject, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	var links []models.GradeStreamSubject
	if err := sc.DB.Where("subject_id = ?", subject.ID).
		Preload("Grade").Preload("Stream").
		Order("id").Find(&links).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"subject": subject,
		"grades":  links,
	})
}

// DeleteSubject removes a subject that has no mark rows.
func (sc *SubjectController) DeleteSubject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subject ID"})
	}

	var subject models.Subject
	if err := sc.DB.First(&subject, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	var marks int64
	if err := sc.DB.Model(&models.MarkList{}).Where("subject_id = ?", subject.ID).
		Count(&marks).Error; err != nil {
		return respondServiceError(c, err)
	}
	if marks > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot delete a subject with recorded marks",
		})
	}

	err = sc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ?", subject.ID).
			Delete(&models.GradeStreamSubject{}).Error; err != nil {
			return err
		}
		return tx.Delete(&subject).Error
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	sc.Logs.Log(c, "delete", "subjects", subject.ID, nil)

	return c.JSON(fiber.Map{"message": "Subject deleted successfully"})
}

type syncGradesRequest struct {
	GradeIDs []uint `json:"grade_ids" validate:"required"`
}

// SyncGrades replaces the set of non-streamed grades this subject is taught in.
func (sc *SubjectController) SyncGrades(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subject ID"})
	}

	var req syncGradesRequest
	if !parseBody(c, &req) {
		return nil
	}

	res, err := sc.Sync.SyncSubjectGrades(id, req.GradeIDs)
	if err != nil {
		return respondServiceError(c, err)
	}

	sc.Logs.Log(c, "sync_grades", "subjects", id, res)

	return c.JSON(fiber.Map{
		"message": "Grades synchronized",
		"result":  res,
	})
}
