package services

import (
	"fmt"
	"math/rand"

	"classease_go/models"

	"gorm.io/gorm"
)

// MarkListService bulk-creates the mark rows for a grade's term: one MarkList
// row per student x subject x assessment type, plus the Assessment and
// aggregate scaffold rows the score pipeline cascades into.
type MarkListService struct {
	DB *gorm.DB
}

func NewMarkListService(db *gorm.DB) *MarkListService {
	return &MarkListService{DB: db}
}

// AssessmentTypeInput is one weighted assessment type, e.g. midterm 30%.
type AssessmentTypeInput struct {
	Type       string  `json:"type" validate:"required"`
	Percentage float64 `json:"percentage" validate:"required,gt=0,lte=100"`
}

// SetupInput describes one mark-list setup request using natural keys, the way
// admins submit them.
type SetupInput struct {
	Year            string                `json:"year" validate:"required"`
	GradeLevel      int                   `json:"grade" validate:"required"`
	Semester        int                   `json:"semester" validate:"required"`
	Sections        []string              `json:"sections" validate:"required,min=1"`
	Subjects        []string              `json:"subjects" validate:"required,min=1"`
	AssessmentTypes []AssessmentTypeInput `json:"assessment_type" validate:"required,min=1,dive"`
}

// SetupResult reports what the setup created.
type SetupResult struct {
	Students         int `json:"students"`
	SectionsAssigned int `json:"sections_assigned"`
	MarkListsCreated int `json:"mark_lists_created"`
}

// Setup resolves the request, randomly sections unsectioned students, and
// bulk-creates the mark rows and aggregate scaffolds.
func (s *MarkListService) Setup(in SetupInput) (SetupResult, error) {
	var res SetupResult

	var sum float64
	for _, at := range in.AssessmentTypes {
		sum += at.Percentage
	}
	if sum > 100 {
		return res, fmt.Errorf("%w: assessment percentages sum to %.1f, must not exceed 100", ErrValidation, sum)
	}

	var year models.Year
	if err := s.DB.Where("name = ?", in.Year).First(&year).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return res, fmt.Errorf("%w: year %q", ErrNotFound, in.Year)
		}
		return res, err
	}

	var grade models.Grade
	if err := s.DB.Where("year_id = ? AND level = ?", year.ID, in.GradeLevel).
		First(&grade).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return res, fmt.Errorf("%w: grade %d in year %q", ErrNotFound, in.GradeLevel, in.Year)
		}
		return res, err
	}

	var term models.AcademicTerm
	if err := s.DB.Where("year_id = ? AND ordinal = ?", year.ID, in.Semester).
		First(&term).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return res, fmt.Errorf("%w: semester %d in year %q", ErrNotFound, in.Semester, in.Year)
		}
		return res, err
	}

	var sections []models.Section
	if err := s.DB.Where("grade_id = ? AND name IN ?", grade.ID, in.Sections).
		Find(&sections).Error; err != nil {
		return res, err
	}
	if len(sections) != len(in.Sections) {
		return res, fmt.Errorf("%w: one or more sections do not exist for grade %d", ErrNotFound, in.GradeLevel)
	}

	// Same-named subjects exist once per grade (their codes differ by grade
	// number), so names resolve through the grade's subject links, never
	// year-wide.
	var subjects []models.Subject
	if err := s.DB.
		Joins("JOIN grade_stream_subjects gss ON gss.subject_id = subjects.id").
		Where("gss.grade_id = ? AND subjects.name IN ?", grade.ID, in.Subjects).
		Distinct("subjects.*").
		Find(&subjects).Error; err != nil {
		return res, err
	}
	wantNames := make(map[string]struct{}, len(in.Subjects))
	for _, name := range in.Subjects {
		wantNames[name] = struct{}{}
	}
	if len(subjects) != len(wantNames) {
		return res, fmt.Errorf("%w: one or more subjects are not taught in grade %d", ErrNotFound, in.GradeLevel)
	}

	var students []models.Student
	if err := s.DB.Where("grade_id = ?", grade.ID).Find(&students).Error; err != nil {
		return res, err
	}
	if len(students) == 0 {
		return res, fmt.Errorf("%w: no registered students for grade %d", ErrValidation, in.GradeLevel)
	}
	res.Students = len(students)

	// Unsectioned students get a uniformly random section drawn from the
	// grade's full section set, not only the requested one, saved one by one
	// so concurrent readers observe a consistent partial state.
	var pool []models.Section
	if err := s.DB.Where("grade_id = ?", grade.ID).Find(&pool).Error; err != nil {
		return res, err
	}
	for i := range students {
		if students[i].SectionID != nil {
			continue
		}
		pick := pool[rand.Intn(len(pool))]
		if err := s.DB.Model(&students[i]).Update("section_id", pick.ID).Error; err != nil {
			return res, err
		}
		students[i].SectionID = &pick.ID
		res.SectionsAssigned++
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		marks := make([]models.MarkList, 0, len(students)*len(subjects)*len(in.AssessmentTypes))
		assessments := make([]models.Assessment, 0, len(students)*len(subjects))
		subjectYears := make([]models.SubjectYearlyAverage, 0, len(students)*len(subjects))

		for _, student := range students {
			for _, subject := range subjects {
				for _, at := range in.AssessmentTypes {
					marks = append(marks, models.MarkList{
						StudentID:      student.ID,
						SubjectID:      subject.ID,
						TermID:         term.ID,
						AssessmentType: at.Type,
						Percentage:     at.Percentage,
					})
				}
				assessments = append(assessments, models.Assessment{
					StudentID: student.ID,
					SubjectID: subject.ID,
					TermID:    term.ID,
				})
				subjectYears = append(subjectYears, models.SubjectYearlyAverage{
					StudentID: student.ID,
					SubjectID: subject.ID,
					YearID:    year.ID,
				})
			}
		}

		if err := tx.Create(&marks).Error; err != nil {
			return translateDuplicate(err, "mark lists already exist for this grade and semester")
		}
		res.MarkListsCreated = len(marks)

		for i := range assessments {
			if err := firstOrCreate(tx, &models.Assessment{}, map[string]interface{}{
				"student_id": assessments[i].StudentID,
				"subject_id": assessments[i].SubjectID,
				"term_id":    assessments[i].TermID,
			}, &assessments[i]); err != nil {
				return err
			}
		}
		for i := range subjectYears {
			if err := firstOrCreate(tx, &models.SubjectYearlyAverage{}, map[string]interface{}{
				"student_id": subjectYears[i].StudentID,
				"subject_id": subjectYears[i].SubjectID,
				"year_id":    subjectYears[i].YearID,
			}, &subjectYears[i]); err != nil {
				return err
			}
		}
		for _, student := range students {
			if err := firstOrCreate(tx, &models.StudentTermRecord{}, map[string]interface{}{
				"student_id": student.ID,
				"term_id":    term.ID,
			}, &models.StudentTermRecord{StudentID: student.ID, TermID: term.ID}); err != nil {
				return err
			}
			if err := firstOrCreate(tx, &models.StudentYearRecord{}, map[string]interface{}{
				"student_id": student.ID,
				"year_id":    year.ID,
			}, &models.StudentYearRecord{StudentID: student.ID, YearID: year.ID}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// MarksForTeacher lists mark rows scoped to one teacher's assignments: same
// term and subject, the student's own grade, and a section the assignment
// links. The same subject row can be linked to several grades, so the grade
// constraint goes through the mark's student.
func (s *MarkListService) MarksForTeacher(teacherID uint) ([]models.MarkList, error) {
	var marks []models.MarkList
	err := s.DB.
		Joins("JOIN students ON students.id = mark_lists.student_id").
		Joins("JOIN teacher_records tr ON tr.term_id = mark_lists.term_id AND tr.teacher_id = ?", teacherID).
		Joins("JOIN grade_stream_subjects gss ON gss.id = tr.grade_stream_subject_id AND gss.subject_id = mark_lists.subject_id AND gss.grade_id = students.grade_id").
		Joins("JOIN teacher_record_links trl ON trl.teacher_record_id = tr.id AND trl.section_id = students.section_id").
		Preload("Student.User").
		Preload("Subject").
		Preload("Term").
		Find(&marks).Error
	return marks, err
}

// TeacherMayEdit reports whether a teacher's assignments cover one mark row:
// same term and subject, the student's grade, and the student's section among
// the assignment's links.
func (s *MarkListService) TeacherMayEdit(teacherID uint, mark *models.MarkList) (bool, error) {
	var student models.Student
	if err := s.DB.First(&student, mark.StudentID).Error; err != nil {
		return false, err
	}
	if student.SectionID == nil {
		return false, nil
	}

	var count int64
	err := s.DB.Model(&models.TeacherRecord{}).
		Joins("JOIN grade_stream_subjects gss ON gss.id = teacher_records.grade_stream_subject_id").
		Joins("JOIN teacher_record_links trl ON trl.teacher_record_id = teacher_records.id").
		Where("teacher_records.teacher_id = ? AND teacher_records.term_id = ?", teacherID, mark.TermID).
		Where("gss.subject_id = ? AND gss.grade_id = ?", mark.SubjectID, student.GradeID).
		Where("trl.section_id = ?", *student.SectionID).
		Count(&count).Error
	return count > 0, err
}

// firstOrCreate inserts row unless a row matching where already exists.
func firstOrCreate(tx *gorm.DB, model interface{}, where map[string]interface{}, row interface{}) error {
	var count int64
	if err := tx.Model(model).Where(where).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(row).Error
}
