package controllers

import (
	"errors"
	"time"

	"classease_go/middleware"
	"classease_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type YearController struct {
	DB   *gorm.DB
	Logs *middleware.ActivityLogger
}

func NewYearController(db *gorm.DB, logs *middleware.ActivityLogger) *YearController {
	return &YearController{DB: db, Logs: logs}
}

type termInput struct {
	Ordinal   int        `json:"ordinal" validate:"required,min=1"`
	StartDate time.Time  `json:"start_date" validate:"required"`
	EndDate   time.Time  `json:"end_date" validate:"required"`
	RegStart  *time.Time `json:"reg_start"`
	RegEnd    *time.Time `json:"reg_end"`
}

type createYearRequest struct {
	Name  string      `json:"name" validate:"required,max=20"`
	Terms []termInput `json:"terms" validate:"required,min=1,dive"`
}

// CreateYear opens a new academic year with its terms.
func (yc *YearController) CreateYear(c *fiber.Ctx) error {
	var req createYearRequest
	if !parseBody(c, &req) {
		return nil
	}

	for _, t := range req.Terms {
		if !t.EndDate.After(t.StartDate) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Term end date must be after its start date",
			})
		}
	}

	year := models.Year{Name: req.Name, Status: "active"}
	err := yc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&year).Error; err != nil {
			return err
		}
		for _, t := range req.Terms {
			term := models.AcademicTerm{
				YearID:    year.ID,
				Ordinal:   t.Ordinal,
				StartDate: t.StartDate,
				EndDate:   t.EndDate,
				RegStart:  t.RegStart,
				RegEnd:    t.RegEnd,
			}
			if err := tx.Create(&term).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Year or term already exists",
			})
		}
		return respondServiceError(c, err)
	}

	yc.Logs.Log(c, "create", "years", year.ID, map[string]interface{}{
		"name": year.Name,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Year created successfully",
		"year":    year,
	})
}

// GetYears lists years with their terms, newest first.
func (yc *YearController) GetYears(c *fiber.Ctx) error {
	var years []models.Year
	if err := yc.DB.Preload("Terms", func(db *gorm.DB) *gorm.DB {
		return db.Order("ordinal")
	}).Order("id DESC").Find(&years).Error; err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"years": years})
}

// GetYear returns one year with terms and grades.
func (yc *YearController) GetYear(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid year ID"})
	}

	var year models.Year
	if err := yc.DB.
		Preload("Terms", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal") }).
		Preload("Grades", func(db *gorm.DB) *gorm.DB { return db.Order("level") }).
		First(&year, id).Error; err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"year": year})
}

type updateTermRequest struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	RegStart  *time.Time `json:"reg_start"`
	RegEnd    *time.Time `json:"reg_end"`
}

// UpdateTerm adjusts a term's dates and registration window.
func (yc *YearController) UpdateTerm(c *fiber.Ctx) error {
	termID, err := paramID(c, "termId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid term ID"})
	}

	var req updateTermRequest
	if !parseBody(c, &req) {
		return nil
	}

	var term models.AcademicTerm
	if err := yc.DB.First(&term, termID).Error; err != nil {
		return respondServiceError(c, err)
	}

	updates := map[string]interface{}{}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if req.RegStart != nil {
		updates["reg_start"] = *req.RegStart
	}
	if req.RegEnd != nil {
		updates["reg_end"] = *req.RegEnd
	}
	if len(updates) > 0 {
		if err := yc.DB.Model(&term).Updates(updates).Error; err != nil {
			return respondServiceError(c, err)
		}
	}

	yc.Logs.Log(c, "update", "terms", term.ID, updates)

	return c.JSON(fiber.Map{
		"message": "Term updated successfully",
		"term":    term,
	})
}

// CloseYear marks a year closed; closed years reject new mark-list setups.
func (yc *YearController) CloseYear(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid year ID"})
	}

	var year models.Year
	if err := yc.DB.First(&year, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	if err := yc.DB.Model(&year).Update("status", "closed").Error; err != nil {
		return respondServiceError(c, err)
	}

	yc.Logs.Log(c, "close", "years", year.ID, nil)

	return c.JSON(fiber.Map{"message": "Year closed successfully"})
}
