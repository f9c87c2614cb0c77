package controllers

import (
	"classease_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LookupController serves the small reference lists shared by all roles.
type LookupController struct {
	DB *gorm.DB
}

func NewLookupController(db *gorm.DB) *LookupController {
	return &LookupController{DB: db}
}

// GetSections lists sections, optionally scoped to one grade.
func (lc *LookupController) GetSections(c *fiber.Ctx) error {
	query := lc.DB.Model(&models.Section{})
	if gradeID := c.QueryInt("grade_id"); gradeID > 0 {
		query = query.Where("grade_id = ?", gradeID)
	}

	var sections []models.Section
	if err := query.Order("grade_id, name").Find(&sections).Error; err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"sections": sections})
}

// GetStreams lists streams, optionally scoped to one grade.
func (lc *LookupController) GetStreams(c *fiber.Ctx) error {
	query := lc.DB.Model(&models.Stream{})
	if gradeID := c.QueryInt("grade_id"); gradeID > 0 {
		query = query.Where("grade_id = ?", gradeID)
	}

	var streams []models.Stream
	if err := query.Order("grade_id, name").Find(&streams).Error; err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"streams": streams})
}
