package controllers

import (
	"errors"

	"classease_go/middleware"
	"classease_go/models"
	"classease_go/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type GradeController struct {
	DB   *gorm.DB
	Sync *services.RelationshipSyncService
	Logs *middleware.ActivityLogger
}

func NewGradeController(db *gorm.DB, sync *services.RelationshipSyncService, logs *middleware.ActivityLogger) *GradeController {
	return &GradeController{DB: db, Sync: sync, Logs: logs}
}

type createGradeRequest struct {
	YearID    uint `json:"year_id" validate:"required"`
	Level     int  `json:"level" validate:"required,min=1,max=12"`
	HasStream bool `json:"has_stream"`
}

// CreateGrade opens a grade level inside a year.
func (gc *GradeController) CreateGrade(c *fiber.Ctx) error {
	var req createGradeRequest
	if !parseBody(c, &req) {
		return nil
	}

	var year models.Year
	if err := gc.DB.First(&year, req.YearID).Error; err != nil {
		return respondServiceError(c, err)
	}

	grade := models.Grade{
		YearID:    req.YearID,
		Level:     req.Level,
		HasStream: req.HasStream,
	}
	if err := gc.DB.Create(&grade).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Grade level already exists for this year",
			})
		}
		return respondServiceError(c, err)
	}

	gc.Logs.Log(c, "create", "grades", grade.ID, map[string]interface{}{
		"year_id": grade.YearID,
		"level":   grade.Level,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Grade created successfully",
		"grade":   grade,
	})
}

// GetGrades lists grades, optionally scoped to one year.
func (gc *GradeController) GetGrades(c *fiber.Ctx) error {
	query := gc.DB.Model(&models.Grade{}).
		Preload("Streams").
		Preload("Sections")
	if yearID := c.QueryInt("year_id"); yearID > 0 {
		query = query.Where("year_id = ?", yearID)
	}

	var grades []models.Grade
	if err := query.Order("year_id, level").Find(&grades).Error; err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"grades": grades})
}

// GetGrade returns one grade with streams, sections and linked subjects.
func (gc *GradeController) GetGrade(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}

	var grade models.Grade
	if err := gc.DB.
		Preload("Streams", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&grade, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	var links []models.GradeStreamSubject
	if err := gc.DB.Where("grade_id = ?", grade.ID).
		Preload("Subject").Preload("Stream").
		Order("id").Find(&links).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"grade":    grade,
		"subjects": links,
	})
}

// DeleteGrade removes an empty grade. Grades with registered students stay.
func (gc *GradeController) DeleteGrade(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}

	var grade models.Grade
	if err := gc.DB.First(&grade, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	var students int64
	if err := gc.DB.Model(&models.Student{}).Where("grade_id = ?", grade.ID).
		Count(&students).Error; err != nil {
		return respondServiceError(c, err)
	}
	if students > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot delete a grade with registered students",
		})
	}

	err = gc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("grade_id = ?", grade.ID).
			Delete(&models.GradeStreamSubject{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("grade_id = ?", grade.ID).
			Delete(&models.Stream{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("grade_id = ?", grade.ID).
			Delete(&models.Section{}).Error; err != nil {
			return err
		}
		return tx.Delete(&grade).Error
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	gc.Logs.Log(c, "delete", "grades", grade.ID, nil)

	return c.JSON(fiber.Map{"message": "Grade deleted successfully"})
}

type syncSubjectsRequest struct {
	SubjectIDs []uint `json:"subject_ids" validate:"required"`
}

// SyncSubjects replaces a non-streamed grade's subject links with the given set.
func (gc *GradeController) SyncSubjects(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}

	var req syncSubjectsRequest
	if !parseBody(c, &req) {
		return nil
	}

	res, err := gc.Sync.SyncGradeSubjects(id, req.SubjectIDs)
	if err != nil {
		return respondServiceError(c, err)
	}

	gc.Logs.Log(c, "sync_subjects", "grades", id, res)

	return c.JSON(fiber.Map{
		"message": "Subjects synchronized",
		"result":  res,
	})
}

type syncStreamsRequest struct {
	Streams []services.StreamInput `json:"streams" validate:"required,dive"`
}

// SyncStreams replaces a streamed grade's streams and their subject links.
func (gc *GradeController) SyncStreams(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}

	var req syncStreamsRequest
	if !parseBody(c, &req) {
		return nil
	}

	res, err := gc.Sync.SyncGradeStreams(id, req.Streams)
	if err != nil {
		return respondServiceError(c, err)
	}

	gc.Logs.Log(c, "sync_streams", "grades", id, res)

	return c.JSON(fiber.Map{
		"message": "Streams synchronized",
		"result":  res,
	})
}

type syncSectionsRequest struct {
	Sections []string `json:"sections" validate:"required,min=1"`
}

// SyncSections replaces a grade's section set by name.
func (gc *GradeController) SyncSections(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}

	var req syncSectionsRequest
	if !parseBody(c, &req) {
		return nil
	}

	res, err := gc.Sync.SyncGradeSections(id, req.Sections)
	if err != nil {
		return respondServiceError(c, err)
	}

	gc.Logs.Log(c, "sync_sections", "grades", id, res)

	return c.JSON(fiber.Map{
		"message": "Sections synchronized",
		"result":  res,
	})
}
