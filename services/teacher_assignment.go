package services

import (
	"fmt"

	"classease_go/models"

	"gorm.io/gorm"
)

// TeacherAssignmentService links a teacher to a grade-stream-subject for every
// term of a year, with per-section link rows. The whole assignment is atomic:
// a validation failure on any term or section rolls back everything.
type TeacherAssignmentService struct {
	DB *gorm.DB
}

func NewTeacherAssignmentService(db *gorm.DB) *TeacherAssignmentService {
	return &TeacherAssignmentService{DB: db}
}

// AssignmentInput describes one assignment request.
type AssignmentInput struct {
	TeacherID  uint   `json:"teacher_id" validate:"required"`
	YearID     uint   `json:"year_id" validate:"required"`
	GradeID    uint   `json:"grade_id" validate:"required"`
	StreamID   *uint  `json:"stream_id"`
	SubjectID  uint   `json:"subject_id" validate:"required"`
	SectionIDs []uint `json:"section_ids" validate:"required,min=1"`
}

// Assign validates the tuple and creates one TeacherRecord per term of the
// year plus one TeacherRecordLink per requested section.
func (s *TeacherAssignmentService) Assign(in AssignmentInput) ([]models.TeacherRecord, error) {
	var created []models.TeacherRecord

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var teacher models.Teacher
		if err := tx.First(&teacher, in.TeacherID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: teacher %d", ErrNotFound, in.TeacherID)
			}
			return err
		}
		if teacher.Position != "teacher" {
			return fmt.Errorf("%w: employee %d does not hold a teaching position", ErrValidation, in.TeacherID)
		}

		var grade models.Grade
		if err := tx.First(&grade, in.GradeID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: grade %d", ErrNotFound, in.GradeID)
			}
			return err
		}

		if grade.HasStream {
			if in.StreamID == nil {
				return fmt.Errorf("%w: grade %d uses streams, a stream id is required", ErrValidation, in.GradeID)
			}
			var stream models.Stream
			if err := tx.Where("id = ? AND grade_id = ?", *in.StreamID, in.GradeID).
				First(&stream).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return fmt.Errorf("%w: stream %d does not belong to grade %d", ErrNotFound, *in.StreamID, in.GradeID)
				}
				return err
			}
		} else {
			in.StreamID = nil
		}

		gssQuery := tx.Where("grade_id = ? AND subject_id = ?", in.GradeID, in.SubjectID)
		if in.StreamID == nil {
			gssQuery = gssQuery.Where("stream_id IS NULL")
		} else {
			gssQuery = gssQuery.Where("stream_id = ?", *in.StreamID)
		}
		var gss models.GradeStreamSubject
		if err := gssQuery.First(&gss).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: no link found for the given stream, subject, and grade", ErrNotFound)
			}
			return err
		}

		// Requested sections must exist under the grade before any term work.
		var sections []models.Section
		if err := tx.Where("id IN ? AND grade_id = ?", in.SectionIDs, in.GradeID).
			Find(&sections).Error; err != nil {
			return err
		}
		if len(sections) != len(uniqueIDs(in.SectionIDs)) {
			return fmt.Errorf("%w: one or more sections do not exist for grade %d", ErrNotFound, in.GradeID)
		}

		var terms []models.AcademicTerm
		if err := tx.Where("year_id = ?", in.YearID).
			Order("ordinal").Find(&terms).Error; err != nil {
			return err
		}
		if len(terms) == 0 {
			return fmt.Errorf("%w: year %d has no academic terms", ErrValidation, in.YearID)
		}

		for _, term := range terms {
			var count int64
			if err := tx.Model(&models.TeacherRecord{}).
				Where("teacher_id = ? AND term_id = ? AND grade_stream_subject_id = ?",
					in.TeacherID, term.ID, gss.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: teacher %d is already assigned to this subject for term %d",
					ErrConflict, in.TeacherID, term.Ordinal)
			}

			record := models.TeacherRecord{
				TeacherID:            in.TeacherID,
				TermID:               term.ID,
				GradeStreamSubjectID: gss.ID,
			}
			if err := tx.Create(&record).Error; err != nil {
				return translateDuplicate(err, "this teacher is already assigned to this subject for the term")
			}

			for _, section := range sections {
				link := models.TeacherRecordLink{
					TeacherRecordID: record.ID,
					SectionID:       section.ID,
				}
				if err := tx.Create(&link).Error; err != nil {
					return translateDuplicate(err, "this section is already linked to the assignment")
				}
				record.Links = append(record.Links, link)
			}

			created = append(created, record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AssignmentsForTeacher lists a teacher's records with their links for a year.
func (s *TeacherAssignmentService) AssignmentsForTeacher(teacherID, yearID uint) ([]models.TeacherRecord, error) {
	var records []models.TeacherRecord
	err := s.DB.
		Joins("JOIN academic_terms ON academic_terms.id = teacher_records.term_id").
		Where("teacher_records.teacher_id = ? AND academic_terms.year_id = ?", teacherID, yearID).
		Preload("Term").
		Preload("GradeStreamSubject.Subject").
		Preload("GradeStreamSubject.Stream").
		Preload("Links.Section").
		Find(&records).Error
	return records, err
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
