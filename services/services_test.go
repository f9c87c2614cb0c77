package services

import (
	"fmt"
	"strings"
	"testing"

	"classease_go/database"
	"classease_go/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens an isolated in-memory database per test.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// fixture is a seeded school: one year with two terms, one grade with two
// sections, subjects by name, and students with their login users.
type fixture struct {
	Year     models.Year
	Terms    []models.AcademicTerm
	Grade    models.Grade
	Sections []models.Section
	Subjects map[string]models.Subject
	Students []models.Student
}

func seedSchool(t *testing.T, db *gorm.DB, subjectNames []string, studentCount int) *fixture {
	t.Helper()

	f := &fixture{Subjects: make(map[string]models.Subject)}

	f.Year = models.Year{Name: "2025/26", Status: "active"}
	if err := db.Create(&f.Year).Error; err != nil {
		t.Fatalf("seed year: %v", err)
	}

	for ordinal := 1; ordinal <= 2; ordinal++ {
		term := models.AcademicTerm{YearID: f.Year.ID, Ordinal: ordinal}
		if err := db.Create(&term).Error; err != nil {
			t.Fatalf("seed term %d: %v", ordinal, err)
		}
		f.Terms = append(f.Terms, term)
	}

	f.Grade = models.Grade{YearID: f.Year.ID, Level: 9}
	if err := db.Create(&f.Grade).Error; err != nil {
		t.Fatalf("seed grade: %v", err)
	}

	for _, name := range []string{"A", "B"} {
		section := models.Section{GradeID: f.Grade.ID, Name: name}
		if err := db.Create(&section).Error; err != nil {
			t.Fatalf("seed section %s: %v", name, err)
		}
		f.Sections = append(f.Sections, section)
	}

	for i, name := range subjectNames {
		subject := models.Subject{
			YearID: f.Year.ID,
			Name:   name,
			Code:   fmt.Sprintf("SUB%d", i+1),
		}
		if err := db.Create(&subject).Error; err != nil {
			t.Fatalf("seed subject %s: %v", name, err)
		}
		f.Subjects[name] = subject
	}

	for i := 0; i < studentCount; i++ {
		user := models.User{
			Username: fmt.Sprintf("student%d", i+1),
			Password: "x",
			Role:     models.RoleStudent,
			Status:   "active",
		}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("seed user %d: %v", i+1, err)
		}
		student := models.Student{
			UserID:    user.ID,
			FirstName: fmt.Sprintf("Student%d", i+1),
			GradeID:   f.Grade.ID,
		}
		if err := db.Create(&student).Error; err != nil {
			t.Fatalf("seed student %d: %v", i+1, err)
		}
		f.Students = append(f.Students, student)
	}

	return f
}

func seedTeacher(t *testing.T, db *gorm.DB, username, position string) models.Teacher {
	t.Helper()

	user := models.User{
		Username: username,
		Password: "x",
		Role:     models.RoleTeacher,
		Status:   "active",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed teacher user: %v", err)
	}
	teacher := models.Teacher{
		UserID:    user.ID,
		FirstName: username,
		Position:  position,
	}
	if err := db.Create(&teacher).Error; err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	return teacher
}

// linkSubjects creates non-streamed grade-subject links directly.
func linkSubjects(t *testing.T, db *gorm.DB, gradeID uint, subjects ...models.Subject) {
	t.Helper()
	for _, subject := range subjects {
		link := models.GradeStreamSubject{GradeID: gradeID, SubjectID: subject.ID}
		if err := db.Create(&link).Error; err != nil {
			t.Fatalf("link subject %s to grade %d: %v", subject.Name, gradeID, err)
		}
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}
