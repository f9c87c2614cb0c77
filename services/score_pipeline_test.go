package services

import (
	"errors"
	"math"
	"testing"

	"classease_go/models"

	"gorm.io/gorm"
)

func seedMarks(t *testing.T, db *gorm.DB, f *fixture, subject models.Subject, term models.AcademicTerm, types map[string]float64) map[uint]map[string]models.MarkList {
	t.Helper()

	marks := make(map[uint]map[string]models.MarkList)
	for _, student := range f.Students {
		marks[student.ID] = make(map[string]models.MarkList)
		for typ, pct := range types {
			row := models.MarkList{
				StudentID:      student.ID,
				SubjectID:      subject.ID,
				TermID:         term.ID,
				AssessmentType: typ,
				Percentage:     pct,
			}
			if err := db.Create(&row).Error; err != nil {
				t.Fatalf("seed mark: %v", err)
			}
			marks[student.ID][typ] = row
		}
		scaffold := models.Assessment{
			StudentID: student.ID,
			SubjectID: subject.ID,
			TermID:    term.ID,
		}
		if err := db.Create(&scaffold).Error; err != nil {
			t.Fatalf("seed assessment scaffold: %v", err)
		}
	}
	return marks
}

func TestUpdateScoreValidation(t *testing.T) {
	db := testDB(t)
	svc := NewScorePipelineService(db)

	if _, err := svc.UpdateScore(1, 101); !errors.Is(err, ErrValidation) {
		t.Errorf("out-of-range score error = %v, want ErrValidation", err)
	}
	if _, err := svc.UpdateScore(1, -1); !errors.Is(err, ErrValidation) {
		t.Errorf("negative score error = %v, want ErrValidation", err)
	}
	if _, err := svc.UpdateScore(9999, 50); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown mark error = %v, want ErrNotFound", err)
	}
}

func TestUpdateScoreGatesOnCompleteness(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 1)
	svc := NewScorePipelineService(db)

	math9 := f.Subjects["Math"]
	term1 := f.Terms[0]
	term2 := f.Terms[1]
	student := f.Students[0]

	marks := seedMarks(t, db, f, math9, term1, map[string]float64{
		"midterm": 40,
		"final":   60,
	})
	// Scaffold for the second term so the yearly average stays gated
	if err := db.Create(&models.Assessment{
		StudentID: student.ID, SubjectID: math9.ID, TermID: term2.ID,
	}).Error; err != nil {
		t.Fatalf("seed term2 scaffold: %v", err)
	}
	if err := db.Create(&models.SubjectYearlyAverage{
		StudentID: student.ID, SubjectID: math9.ID, YearID: f.Year.ID,
	}).Error; err != nil {
		t.Fatalf("seed yearly scaffold: %v", err)
	}

	// One of two assessment types scored: the subject total must stay null
	if _, err := svc.UpdateScore(marks[student.ID]["midterm"].ID, 80); err != nil {
		t.Fatalf("first update: %v", err)
	}

	var assessment models.Assessment
	if err := db.Where("student_id = ? AND subject_id = ? AND term_id = ?",
		student.ID, math9.ID, term1.ID).First(&assessment).Error; err != nil {
		t.Fatalf("read assessment: %v", err)
	}
	if assessment.Total != nil {
		t.Errorf("total = %v after partial scores, want nil", *assessment.Total)
	}

	// Second score completes the subject: total and rank appear
	if _, err := svc.UpdateScore(marks[student.ID]["final"].ID, 90); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if err := db.Where("student_id = ? AND subject_id = ? AND term_id = ?",
		student.ID, math9.ID, term1.ID).First(&assessment).Error; err != nil {
		t.Fatalf("re-read assessment: %v", err)
	}
	if assessment.Total == nil {
		t.Fatal("total still nil after all scores present")
	}
	want := 80*0.4 + 90*0.6
	if math.Abs(*assessment.Total-want) > 1e-9 {
		t.Errorf("total = %v, want %v", *assessment.Total, want)
	}
	if assessment.Rank == nil || *assessment.Rank != 1 {
		t.Errorf("rank = %v, want 1", assessment.Rank)
	}

	// Term 2 has no totals yet, so the yearly average must stay gated
	var yearly models.SubjectYearlyAverage
	if err := db.Where("student_id = ? AND subject_id = ? AND year_id = ?",
		student.ID, math9.ID, f.Year.ID).First(&yearly).Error; err != nil {
		t.Fatalf("read yearly average: %v", err)
	}
	if yearly.Average != nil {
		t.Errorf("yearly average = %v with an unscored term, want nil", *yearly.Average)
	}
}

func TestRanksUseStandardGaps(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 3)
	svc := NewScorePipelineService(db)

	math9 := f.Subjects["Math"]
	term1 := f.Terms[0]

	marks := seedMarks(t, db, f, math9, term1, map[string]float64{"exam": 100})

	scores := map[uint]float64{
		f.Students[0].ID: 90,
		f.Students[1].ID: 90,
		f.Students[2].ID: 80,
	}
	for studentID, score := range scores {
		if _, err := svc.UpdateScore(marks[studentID]["exam"].ID, score); err != nil {
			t.Fatalf("update score for student %d: %v", studentID, err)
		}
	}

	wantRanks := map[uint]uint{
		f.Students[0].ID: 1,
		f.Students[1].ID: 1,
		f.Students[2].ID: 3, // tie above skips rank 2
	}
	for studentID, wantRank := range wantRanks {
		var assessment models.Assessment
		if err := db.Where("student_id = ? AND subject_id = ? AND term_id = ?",
			studentID, math9.ID, term1.ID).First(&assessment).Error; err != nil {
			t.Fatalf("read assessment: %v", err)
		}
		if assessment.Rank == nil || *assessment.Rank != wantRank {
			t.Errorf("student %d rank = %v, want %d", studentID, assessment.Rank, wantRank)
		}
	}

	// The cascade also filled the per-term records with matching ranks
	for studentID, wantRank := range wantRanks {
		var record models.StudentTermRecord
		if err := db.Where("student_id = ? AND term_id = ?", studentID, term1.ID).
			First(&record).Error; err != nil {
			t.Fatalf("read term record: %v", err)
		}
		if record.Average == nil {
			t.Fatalf("student %d term average nil", studentID)
		}
		if math.Abs(*record.Average-scores[studentID]) > 1e-9 {
			t.Errorf("student %d term average = %v, want %v", studentID, *record.Average, scores[studentID])
		}
		if record.Rank == nil || *record.Rank != wantRank {
			t.Errorf("student %d term rank = %v, want %d", studentID, record.Rank, wantRank)
		}
	}
}

func TestUpdateScoreRewriteShiftsRanks(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 2)
	svc := NewScorePipelineService(db)

	math9 := f.Subjects["Math"]
	term1 := f.Terms[0]
	marks := seedMarks(t, db, f, math9, term1, map[string]float64{"exam": 100})

	first := f.Students[0].ID
	second := f.Students[1].ID

	if _, err := svc.UpdateScore(marks[first]["exam"].ID, 70); err != nil {
		t.Fatalf("score first: %v", err)
	}
	if _, err := svc.UpdateScore(marks[second]["exam"].ID, 95); err != nil {
		t.Fatalf("score second: %v", err)
	}

	// Rewriting the first student's score above the second must swap the ranks
	if _, err := svc.UpdateScore(marks[first]["exam"].ID, 99); err != nil {
		t.Fatalf("rewrite score: %v", err)
	}

	ranks := map[uint]uint{}
	var assessments []models.Assessment
	if err := db.Where("subject_id = ? AND term_id = ?", math9.ID, term1.ID).
		Find(&assessments).Error; err != nil {
		t.Fatalf("read assessments: %v", err)
	}
	for _, a := range assessments {
		if a.Rank == nil {
			t.Fatalf("student %d rank nil", a.StudentID)
		}
		ranks[a.StudentID] = *a.Rank
	}
	if ranks[first] != 1 || ranks[second] != 2 {
		t.Errorf("ranks = %v, want first=1 second=2", ranks)
	}
}
