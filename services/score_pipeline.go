package services

import (
	"fmt"

	"classease_go/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScorePipelineService recomputes every aggregate that depends on a mark-list
// score, in a fixed top-down cascade: subject total -> subject rank ->
// subject-yearly average/rank -> term average/rank -> year average/rank.
// Every stage is gated on completeness of its inputs; an incomplete stage
// silently ends the cascade, never the score update itself. Rank updates use
// standard RANK() semantics: tied metrics share a rank and the next distinct
// metric skips ahead by the tie count.
type ScorePipelineService struct {
	DB *gorm.DB
}

func NewScorePipelineService(db *gorm.DB) *ScorePipelineService {
	return &ScorePipelineService{DB: db}
}

// completeness carries one grouped aggregate probe: how many rows the scope
// holds, how many have a value, and their mean.
type completeness struct {
	Total  int64
	Filled int64
	Value  *float64
}

func (c completeness) complete() bool {
	return c.Total > 0 && c.Filled == c.Total
}

// UpdateScore writes one mark-list score and runs the cascade inside a single
// transaction. The affected partitions are locked before their ranks are
// recomputed so concurrent edits to the same subject/term serialize.
func (s *ScorePipelineService) UpdateScore(markListID uint, score float64) (*models.MarkList, error) {
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: score must be between 0 and 100", ErrValidation)
	}

	var mark models.MarkList
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&mark, markListID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: mark list %d", ErrNotFound, markListID)
			}
			return err
		}

		var term models.AcademicTerm
		if err := tx.First(&term, mark.TermID).Error; err != nil {
			return err
		}

		if err := tx.Model(&mark).Update("score", score).Error; err != nil {
			return err
		}

		return s.cascade(tx, mark.StudentID, mark.SubjectID, mark.TermID, term.YearID)
	})
	if err != nil {
		return nil, err
	}
	return &mark, nil
}

// Recompute replays the cascade for one (student, subject, term) scope without
// touching any score, e.g. after mark rows were rebuilt.
func (s *ScorePipelineService) Recompute(studentID, subjectID, termID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var term models.AcademicTerm
		if err := tx.First(&term, termID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: term %d", ErrNotFound, termID)
			}
			return err
		}
		return s.cascade(tx, studentID, subjectID, termID, term.YearID)
	})
}

func (s *ScorePipelineService) cascade(tx *gorm.DB, studentID, subjectID, termID, yearID uint) error {
	// Stage 1: subject total - weighted sum of the mark rows, only once every
	// assessment type of the subject has a score.
	var probe completeness
	err := tx.Raw(`
		SELECT COUNT(*) AS total, COUNT(score) AS filled,
		       SUM(score * percentage / 100.0) AS value
		FROM mark_lists
		WHERE student_id = ? AND subject_id = ? AND term_id = ?`,
		studentID, subjectID, termID).Scan(&probe).Error
	if err != nil {
		return err
	}
	if !probe.complete() {
		return nil
	}
	if err := upsertAggregate(tx, &models.Assessment{},
		map[string]interface{}{"student_id": studentID, "subject_id": subjectID, "term_id": termID},
		"total", probe.Value,
		&models.Assessment{StudentID: studentID, SubjectID: subjectID, TermID: termID, Total: probe.Value},
	); err != nil {
		return err
	}

	// Stage 2: subject rank - recomputed for the whole (subject, term)
	// partition since one student's change can shift everyone's rank.
	if err := s.lockPartition(tx, &models.Assessment{}, "subject_id = ? AND term_id = ?", subjectID, termID); err != nil {
		return err
	}
	if err := tx.Exec(`
		UPDATE assessments SET `+"`rank`"+` = (
			SELECT r.rnk FROM (
				SELECT id, RANK() OVER (ORDER BY total DESC) AS rnk
				FROM assessments
				WHERE subject_id = ? AND term_id = ? AND total IS NOT NULL
			) AS r WHERE r.id = assessments.id
		)
		WHERE subject_id = ? AND term_id = ? AND total IS NOT NULL`,
		subjectID, termID, subjectID, termID).Error; err != nil {
		return err
	}

	// Stage 3: subject-yearly average - only once every term of the year has
	// a subject total for this student.
	probe = completeness{}
	err = tx.Raw(`
		SELECT COUNT(*) AS total, COUNT(a.total) AS filled, AVG(a.total) AS value
		FROM assessments a
		JOIN academic_terms t ON a.term_id = t.id
		WHERE a.student_id = ? AND a.subject_id = ? AND t.year_id = ?`,
		studentID, subjectID, yearID).Scan(&probe).Error
	if err != nil {
		return err
	}
	if !probe.complete() {
		return nil
	}
	if err := upsertAggregate(tx, &models.SubjectYearlyAverage{},
		map[string]interface{}{"student_id": studentID, "subject_id": subjectID, "year_id": yearID},
		"average", probe.Value,
		&models.SubjectYearlyAverage{StudentID: studentID, SubjectID: subjectID, YearID: yearID, Average: probe.Value},
	); err != nil {
		return err
	}
	if err := s.lockPartition(tx, &models.SubjectYearlyAverage{}, "subject_id = ? AND year_id = ?", subjectID, yearID); err != nil {
		return err
	}
	if err := tx.Exec(`
		UPDATE subject_yearly_averages SET `+"`rank`"+` = (
			SELECT r.rnk FROM (
				SELECT id, RANK() OVER (ORDER BY average DESC) AS rnk
				FROM subject_yearly_averages
				WHERE subject_id = ? AND year_id = ? AND average IS NOT NULL
			) AS r WHERE r.id = subject_yearly_averages.id
		)
		WHERE subject_id = ? AND year_id = ? AND average IS NOT NULL`,
		subjectID, yearID, subjectID, yearID).Error; err != nil {
		return err
	}

	// Stage 4: term average - only once every subject of the term has a total
	// for this student.
	probe = completeness{}
	err = tx.Raw(`
		SELECT COUNT(*) AS total, COUNT(total) AS filled, AVG(total) AS value
		FROM assessments
		WHERE student_id = ? AND term_id = ?`,
		studentID, termID).Scan(&probe).Error
	if err != nil {
		return err
	}
	if !probe.complete() {
		return nil
	}
	if err := upsertAggregate(tx, &models.StudentTermRecord{},
		map[string]interface{}{"student_id": studentID, "term_id": termID},
		"average", probe.Value,
		&models.StudentTermRecord{StudentID: studentID, TermID: termID, Average: probe.Value},
	); err != nil {
		return err
	}
	if err := s.lockPartition(tx, &models.StudentTermRecord{}, "term_id = ?", termID); err != nil {
		return err
	}
	if err := tx.Exec(`
		UPDATE student_term_records SET `+"`rank`"+` = (
			SELECT r.rnk FROM (
				SELECT id, RANK() OVER (ORDER BY average DESC) AS rnk
				FROM student_term_records
				WHERE term_id = ? AND average IS NOT NULL
			) AS r WHERE r.id = student_term_records.id
		)
		WHERE term_id = ? AND average IS NOT NULL`,
		termID, termID).Error; err != nil {
		return err
	}

	// Stage 5: year average - only once every term of the year has an average
	// for this student.
	probe = completeness{}
	err = tx.Raw(`
		SELECT COUNT(*) AS total, COUNT(r.average) AS filled, AVG(r.average) AS value
		FROM student_term_records r
		JOIN academic_terms t ON r.term_id = t.id
		WHERE r.student_id = ? AND t.year_id = ?`,
		studentID, yearID).Scan(&probe).Error
	if err != nil {
		return err
	}
	if !probe.complete() {
		return nil
	}
	if err := upsertAggregate(tx, &models.StudentYearRecord{},
		map[string]interface{}{"student_id": studentID, "year_id": yearID},
		"final_score", probe.Value,
		&models.StudentYearRecord{StudentID: studentID, YearID: yearID, FinalScore: probe.Value},
	); err != nil {
		return err
	}
	if err := s.lockPartition(tx, &models.StudentYearRecord{}, "year_id = ?", yearID); err != nil {
		return err
	}
	return tx.Exec(`
		UPDATE student_year_records SET `+"`rank`"+` = (
			SELECT r.rnk FROM (
				SELECT id, RANK() OVER (ORDER BY final_score DESC) AS rnk
				FROM student_year_records
				WHERE year_id = ? AND final_score IS NOT NULL
			) AS r WHERE r.id = student_year_records.id
		)
		WHERE year_id = ? AND final_score IS NOT NULL`,
		yearID, yearID).Error
}

// lockPartition takes row locks on a rank partition before recomputation.
// SQLite (the testing profile) serializes writers on its own and rejects the
// FOR UPDATE syntax, so the lock is MySQL-only.
func (s *ScorePipelineService) lockPartition(tx *gorm.DB, model interface{}, cond string, args ...interface{}) error {
	if tx.Dialector.Name() != "mysql" {
		return nil
	}
	var ids []uint
	return tx.Model(model).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(cond, args...).
		Pluck("id", &ids).Error
}

// upsertAggregate updates one aggregate column on the row matching where,
// creating the row when the mark-list setup scaffold is missing.
func upsertAggregate(tx *gorm.DB, model interface{}, where map[string]interface{}, column string, value *float64, fresh interface{}) error {
	res := tx.Model(model).Where(where).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(model).Where(where).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return tx.Create(fresh).Error
		}
	}
	return nil
}
