package controllers

import (
	"fmt"

	"classease_go/middleware"
	"classease_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type ReportController struct {
	DB   *gorm.DB
	Logs *middleware.ActivityLogger
}

func NewReportController(db *gorm.DB, logs *middleware.ActivityLogger) *ReportController {
	return &ReportController{DB: db, Logs: logs}
}

type gradeReportRow struct {
	StudentID uint     `json:"student_id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Section   string   `json:"section"`
	Average   *float64 `json:"average"`
	Rank      *uint    `json:"rank"`
}

// GradeSummary returns per-student term averages and ranks for one grade.
func (rc *ReportController) GradeSummary(c *fiber.Ctx) error {
	gradeID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}
	termID := c.QueryInt("term_id")
	if termID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "term_id query parameter is required",
		})
	}

	rows, err := rc.summaryRows(gradeID, uint(termID))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"report": rows})
}

// Export writes the grade's term report as an xlsx workbook: one summary sheet
// plus one sheet per subject with totals and ranks.
func (rc *ReportController) Export(c *fiber.Ctx) error {
	gradeID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}
	termID := c.QueryInt("term_id")
	if termID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "term_id query parameter is required",
		})
	}

	var grade models.Grade
	if err := rc.DB.Preload("Year").First(&grade, gradeID).Error; err != nil {
		return respondServiceError(c, err)
	}
	var term models.AcademicTerm
	if err := rc.DB.First(&term, termID).Error; err != nil {
		return respondServiceError(c, err)
	}

	rows, err := rc.summaryRows(gradeID, uint(termID))
	if err != nil {
		return respondServiceError(c, err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close workbook")
		}
	}()

	summary := "Summary"
	f.SetSheetName("Sheet1", summary)
	headers := []string{"Student ID", "First Name", "Last Name", "Section", "Average", "Rank"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(summary, cell, h)
	}
	for i, row := range rows {
		values := []interface{}{row.StudentID, row.FirstName, row.LastName, row.Section}
		if row.Average != nil {
			values = append(values, *row.Average)
		} else {
			values = append(values, "")
		}
		if row.Rank != nil {
			values = append(values, *row.Rank)
		} else {
			values = append(values, "")
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(summary, cell, v)
		}
	}

	if err := rc.addSubjectSheets(f, gradeID, uint(termID)); err != nil {
		return respondServiceError(c, err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		logrus.WithError(err).Error("Failed to build report workbook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build report",
		})
	}

	rc.Logs.Log(c, "export", "reports", gradeID, map[string]interface{}{
		"term_id": termID,
	})

	filename := fmt.Sprintf("grade-%d-term-%d-report.xlsx", grade.Level, term.Ordinal)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

func (rc *ReportController) summaryRows(gradeID, termID uint) ([]gradeReportRow, error) {
	var rows []gradeReportRow
	err := rc.DB.Model(&models.StudentTermRecord{}).
		Select("students.id AS student_id, students.first_name, students.last_name, sections.name AS section, student_term_records.average, student_term_records.`rank`").
		Joins("JOIN students ON students.id = student_term_records.student_id").
		Joins("LEFT JOIN sections ON sections.id = students.section_id").
		Where("students.grade_id = ? AND student_term_records.term_id = ?", gradeID, termID).
		Order("student_term_records.`rank` IS NULL, student_term_records.`rank`, students.id").
		Scan(&rows).Error
	return rows, err
}

func (rc *ReportController) addSubjectSheets(f *excelize.File, gradeID, termID uint) error {
	var subjects []models.Subject
	err := rc.DB.Model(&models.Subject{}).
		Joins("JOIN grade_stream_subjects gss ON gss.subject_id = subjects.id").
		Where("gss.grade_id = ?", gradeID).
		Distinct().Order("subjects.name").Find(&subjects).Error
	if err != nil {
		return err
	}

	for _, subject := range subjects {
		var assessments []models.Assessment
		err := rc.DB.Where("subject_id = ? AND term_id = ?", subject.ID, termID).
			Joins("JOIN students ON students.id = assessments.student_id AND students.grade_id = ?", gradeID).
			Preload("Student").
			Order("assessments.`rank` IS NULL, assessments.`rank`, assessments.student_id").
			Find(&assessments).Error
		if err != nil {
			return err
		}

		sheet := subject.Code
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		for i, h := range []string{"Student ID", "First Name", "Last Name", "Total", "Rank"} {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}
		for i, a := range assessments {
			values := []interface{}{a.StudentID, a.Student.FirstName, a.Student.LastName}
			if a.Total != nil {
				values = append(values, *a.Total)
			} else {
				values = append(values, "")
			}
			if a.Rank != nil {
				values = append(values, *a.Rank)
			} else {
				values = append(values, "")
			}
			for j, v := range values {
				cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
				f.SetCellValue(sheet, cell, v)
			}
		}
	}
	return nil
}
