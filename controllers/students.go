package controllers

import (
	"time"

	"classease_go/middleware"
	"classease_go/models"
	"classease_go/storage"
	"classease_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StudentController struct {
	DB      *gorm.DB
	Storage *storage.Service
	Logs    *middleware.ActivityLogger
}

func NewStudentController(db *gorm.DB, st *storage.Service, logs *middleware.ActivityLogger) *StudentController {
	return &StudentController{DB: db, Storage: st, Logs: logs}
}

// GetStudents lists student profiles filtered by grade and section.
func (sc *StudentController) GetStudents(c *fiber.Ctx) error {
	page, limit, offset := pagination(c)

	query := sc.DB.Model(&models.Student{}).
		Preload("User").
		Preload("Grade").
		Preload("Section")
	if gradeID := c.QueryInt("grade_id"); gradeID > 0 {
		query = query.Where("grade_id = ?", gradeID)
	}
	if sectionID := c.QueryInt("section_id"); sectionID > 0 {
		query = query.Where("section_id = ?", sectionID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondServiceError(c, err)
	}

	var students []models.Student
	if err := query.Order("id").Limit(limit).Offset(offset).Find(&students).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"students": students,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetStudent returns one student profile.
func (sc *StudentController) GetStudent(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student ID"})
	}

	var student models.Student
	if err := sc.DB.Preload("User").Preload("Grade").Preload("Section").
		First(&student, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"student": student})
}

type promoteRequest struct {
	NextGradeID uint `json:"next_grade_id" validate:"required"`
}

// Promote marks the grade a student moves into next year. The move itself
// happens when the student registers under the new year.
func (sc *StudentController) Promote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student ID"})
	}

	var req promoteRequest
	if !parseBody(c, &req) {
		return nil
	}

	var student models.Student
	if err := sc.DB.First(&student, id).Error; err != nil {
		return respondServiceError(c, err)
	}

	var next models.Grade
	if err := sc.DB.First(&next, req.NextGradeID).Error; err != nil {
		return respondServiceError(c, err)
	}

	if err := sc.DB.Model(&student).Update("next_grade_id", next.ID).Error; err != nil {
		return respondServiceError(c, err)
	}

	sc.Logs.Log(c, "promote", "students", student.ID, map[string]interface{}{
		"next_grade_id": next.ID,
	})

	return c.JSON(fiber.Map{"message": "Student promotion recorded"})
}

// RegistrationStatus tells the calling student whether course registration is
// currently open and, if a promotion is pending, where they move.
func (sc *StudentController) RegistrationStatus(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	student, err := sc.studentForUser(p.UserID)
	if err != nil {
		return respondServiceError(c, err)
	}

	now := time.Now()
	var term models.AcademicTerm
	open := false
	if err := sc.DB.
		Where("reg_start IS NOT NULL AND reg_end IS NOT NULL AND reg_start <= ? AND reg_end >= ?", now, now).
		Order("start_date").First(&term).Error; err == nil {
		open = true
	} else if err != gorm.ErrRecordNotFound {
		return respondServiceError(c, err)
	}

	body := fiber.Map{
		"open":          open,
		"next_grade_id": student.NextGradeID,
	}
	if open {
		body["term"] = term
	}
	return c.JSON(body)
}

// Register moves the calling student into the open term: applies any pending
// promotion and clears the section so the next mark-list setup resections them.
func (sc *StudentController) Register(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	student, err := sc.studentForUser(p.UserID)
	if err != nil {
		return respondServiceError(c, err)
	}

	now := time.Now()
	var term models.AcademicTerm
	if err := sc.DB.
		Where("reg_start IS NOT NULL AND reg_end IS NOT NULL AND reg_start <= ? AND reg_end >= ?", now, now).
		Order("start_date").First(&term).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Registration is not open",
			})
		}
		return respondServiceError(c, err)
	}

	updates := map[string]interface{}{}
	if student.NextGradeID != nil {
		updates["grade_id"] = *student.NextGradeID
		updates["next_grade_id"] = nil
		updates["section_id"] = nil
	}
	if len(updates) > 0 {
		if err := sc.DB.Model(student).Updates(updates).Error; err != nil {
			return respondServiceError(c, err)
		}
	}

	sc.Logs.Log(c, "register", "students", student.ID, map[string]interface{}{
		"term_id": term.ID,
	})

	return c.JSON(fiber.Map{"message": "Registration completed"})
}

// Report returns the calling student's marks and aggregates for one term.
func (sc *StudentController) Report(c *fiber.Ctx) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	student, err := sc.studentForUser(p.UserID)
	if err != nil {
		return respondServiceError(c, err)
	}

	termID := c.QueryInt("term_id")
	if termID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "term_id query parameter is required",
		})
	}

	var term models.AcademicTerm
	if err := sc.DB.First(&term, termID).Error; err != nil {
		return respondServiceError(c, err)
	}

	var marks []models.MarkList
	if err := sc.DB.Where("student_id = ? AND term_id = ?", student.ID, term.ID).
		Preload("Subject").Order("subject_id, id").Find(&marks).Error; err != nil {
		return respondServiceError(c, err)
	}

	var assessments []models.Assessment
	if err := sc.DB.Where("student_id = ? AND term_id = ?", student.ID, term.ID).
		Preload("Subject").Order("subject_id").Find(&assessments).Error; err != nil {
		return respondServiceError(c, err)
	}

	var termRecord models.StudentTermRecord
	if err := sc.DB.Where("student_id = ? AND term_id = ?", student.ID, term.ID).
		First(&termRecord).Error; err != nil && err != gorm.ErrRecordNotFound {
		return respondServiceError(c, err)
	}

	var yearRecord models.StudentYearRecord
	if err := sc.DB.Where("student_id = ? AND year_id = ?", student.ID, term.YearID).
		First(&yearRecord).Error; err != nil && err != gorm.ErrRecordNotFound {
		return respondServiceError(c, err)
	}

	rows := make([]utils.MarkRow, 0, len(marks))
	for _, m := range marks {
		m.Student = *student
		rows = append(rows, utils.ToMarkRow(m))
	}

	return c.JSON(fiber.Map{
		"marks":       rows,
		"assessments": assessments,
		"term_record": termRecord,
		"year_record": yearRecord,
	})
}

func (sc *StudentController) studentForUser(userID uint) (*models.Student, error) {
	var student models.Student
	if err := sc.DB.Where("user_id = ?", userID).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}
