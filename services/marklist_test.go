package services

import (
	"errors"
	"testing"

	"classease_go/models"

	"gorm.io/gorm"
)

func TestMarkListSetup(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math", "English"}, 5)
	linkSubjects(t, db, f.Grade.ID, f.Subjects["Math"], f.Subjects["English"])
	svc := NewMarkListService(db)

	res, err := svc.Setup(SetupInput{
		Year:       f.Year.Name,
		GradeLevel: f.Grade.Level,
		Semester:   1,
		Sections:   []string{"A", "B"},
		Subjects:   []string{"Math", "English"},
		AssessmentTypes: []AssessmentTypeInput{
			{Type: "midterm", Percentage: 40},
			{Type: "final", Percentage: 60},
		},
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if res.Students != 5 {
		t.Errorf("students = %d, want 5", res.Students)
	}
	// 5 students x 2 subjects x 2 assessment types
	if res.MarkListsCreated != 20 {
		t.Errorf("mark lists created = %d, want 20", res.MarkListsCreated)
	}
	if res.SectionsAssigned != 5 {
		t.Errorf("sections assigned = %d, want 5", res.SectionsAssigned)
	}

	// Every student ends up in one of the requested sections
	var unsectioned int64
	if err := db.Model(&models.Student{}).
		Where("grade_id = ? AND section_id IS NULL", f.Grade.ID).
		Count(&unsectioned).Error; err != nil {
		t.Fatalf("count unsectioned: %v", err)
	}
	if unsectioned != 0 {
		t.Errorf("%d students left without a section", unsectioned)
	}

	// Aggregate scaffolds exist for the cascade to fill later
	term1 := f.Terms[0]
	if n := countRows(t, db, &models.Assessment{}, "term_id = ?", term1.ID); n != 10 {
		t.Errorf("assessment scaffolds = %d, want 10", n)
	}
	if n := countRows(t, db, &models.SubjectYearlyAverage{}, "year_id = ?", f.Year.ID); n != 10 {
		t.Errorf("yearly scaffolds = %d, want 10", n)
	}
	if n := countRows(t, db, &models.StudentTermRecord{}, "term_id = ?", term1.ID); n != 5 {
		t.Errorf("term record scaffolds = %d, want 5", n)
	}
	if n := countRows(t, db, &models.StudentYearRecord{}, "year_id = ?", f.Year.ID); n != 5 {
		t.Errorf("year record scaffolds = %d, want 5", n)
	}

	// All mark scores start unset
	if n := countRows(t, db, &models.MarkList{}, "term_id = ? AND score IS NOT NULL", term1.ID); n != 0 {
		t.Errorf("%d mark rows born with scores", n)
	}
}

func TestMarkListSetupRejectsDuplicate(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 2)
	linkSubjects(t, db, f.Grade.ID, f.Subjects["Math"])
	svc := NewMarkListService(db)

	in := SetupInput{
		Year:       f.Year.Name,
		GradeLevel: f.Grade.Level,
		Semester:   1,
		Sections:   []string{"A"},
		Subjects:   []string{"Math"},
		AssessmentTypes: []AssessmentTypeInput{
			{Type: "exam", Percentage: 100},
		},
	}
	if _, err := svc.Setup(in); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if _, err := svc.Setup(in); !errors.Is(err, ErrConflict) {
		t.Errorf("second setup error = %v, want ErrConflict", err)
	}
}

func TestMarkListSetupValidation(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 1)
	linkSubjects(t, db, f.Grade.ID, f.Subjects["Math"])
	svc := NewMarkListService(db)

	base := SetupInput{
		Year:       f.Year.Name,
		GradeLevel: f.Grade.Level,
		Semester:   1,
		Sections:   []string{"A"},
		Subjects:   []string{"Math"},
	}

	tests := []struct {
		name    string
		mutate  func(in *SetupInput)
		wantErr error
	}{
		{
			name: "percentages above 100",
			mutate: func(in *SetupInput) {
				in.AssessmentTypes = []AssessmentTypeInput{
					{Type: "midterm", Percentage: 60},
					{Type: "final", Percentage: 60},
				}
			},
			wantErr: ErrValidation,
		},
		{
			name: "unknown year",
			mutate: func(in *SetupInput) {
				in.AssessmentTypes = []AssessmentTypeInput{{Type: "exam", Percentage: 100}}
				in.Year = "1999/00"
			},
			wantErr: ErrNotFound,
		},
		{
			name: "unknown semester",
			mutate: func(in *SetupInput) {
				in.AssessmentTypes = []AssessmentTypeInput{{Type: "exam", Percentage: 100}}
				in.Semester = 9
			},
			wantErr: ErrNotFound,
		},
		{
			name: "unknown section",
			mutate: func(in *SetupInput) {
				in.AssessmentTypes = []AssessmentTypeInput{{Type: "exam", Percentage: 100}}
				in.Sections = []string{"Z"}
			},
			wantErr: ErrNotFound,
		},
		{
			name: "unknown subject",
			mutate: func(in *SetupInput) {
				in.AssessmentTypes = []AssessmentTypeInput{{Type: "exam", Percentage: 100}}
				in.Subjects = []string{"Alchemy"}
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if _, err := svc.Setup(in); !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestMarkListSetupSameNameAcrossGrades(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 3)
	linkSubjects(t, db, f.Grade.ID, f.Subjects["Math"])
	svc := NewMarkListService(db)

	// The year holds a second, same-named subject taught in another grade
	other := models.Grade{YearID: f.Year.ID, Level: 10}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed second grade: %v", err)
	}
	otherMath := models.Subject{YearID: f.Year.ID, Name: "Math", Code: "MAT10"}
	if err := db.Create(&otherMath).Error; err != nil {
		t.Fatalf("seed second math: %v", err)
	}
	linkSubjects(t, db, other.ID, otherMath)

	res, err := svc.Setup(SetupInput{
		Year:       f.Year.Name,
		GradeLevel: f.Grade.Level,
		Semester:   1,
		Sections:   []string{"A", "B"},
		Subjects:   []string{"Math"},
		AssessmentTypes: []AssessmentTypeInput{
			{Type: "exam", Percentage: 100},
		},
	})
	if err != nil {
		t.Fatalf("setup with a same-named subject in another grade: %v", err)
	}
	if res.MarkListsCreated != 3 {
		t.Errorf("mark lists created = %d, want 3", res.MarkListsCreated)
	}

	// Every mark row binds the grade's own subject, never the other grade's
	if n := countRows(t, db, &models.MarkList{}, "subject_id = ?", f.Subjects["Math"].ID); n != 3 {
		t.Errorf("marks for grade subject = %d, want 3", n)
	}
	if n := countRows(t, db, &models.MarkList{}, "subject_id = ?", otherMath.ID); n != 0 {
		t.Errorf("marks bound to the other grade's subject = %d, want 0", n)
	}
}

func TestMarkListSetupDrawsSectionsFromGrade(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 6)
	linkSubjects(t, db, f.Grade.ID, f.Subjects["Math"])
	svc := NewMarkListService(db)

	// Requesting a single section must not narrow the assignment pool: the
	// fixture grade owns sections A and B and both stay eligible.
	if _, err := svc.Setup(SetupInput{
		Year:       f.Year.Name,
		GradeLevel: f.Grade.Level,
		Semester:   1,
		Sections:   []string{"A"},
		Subjects:   []string{"Math"},
		AssessmentTypes: []AssessmentTypeInput{
			{Type: "exam", Percentage: 100},
		},
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var students []models.Student
	if err := db.Where("grade_id = ?", f.Grade.ID).Find(&students).Error; err != nil {
		t.Fatalf("read students: %v", err)
	}
	valid := map[uint]bool{}
	for _, section := range f.Sections {
		valid[section.ID] = true
	}
	for _, student := range students {
		if student.SectionID == nil {
			t.Errorf("student %d left without a section", student.ID)
			continue
		}
		if !valid[*student.SectionID] {
			t.Errorf("student %d assigned section %d outside the grade", student.ID, *student.SectionID)
		}
	}
}

// markScopeFixture builds two grades sharing one subject row plus a teacher
// assigned only to the first grade's section A.
type markScopeFixture struct {
	f         *fixture
	teacher   models.Teacher
	term      models.AcademicTerm
	markA     models.MarkList // grade 9, section A - covered
	markB     models.MarkList // grade 9, section B - section not linked
	markCross models.MarkList // grade 10 - other grade, same subject row
	crossID   uint
}

func seedMarkScope(t *testing.T, db *gorm.DB) markScopeFixture {
	t.Helper()

	f := seedSchool(t, db, []string{"Math"}, 2)
	math := f.Subjects["Math"]
	term := f.Terms[0]

	// One subject row linked to two grades, the shape SyncSubjectGrades builds
	other := models.Grade{YearID: f.Year.ID, Level: 10}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed second grade: %v", err)
	}
	otherSection := models.Section{GradeID: other.ID, Name: "A"}
	if err := db.Create(&otherSection).Error; err != nil {
		t.Fatalf("seed second grade section: %v", err)
	}
	linkSubjects(t, db, f.Grade.ID, math)
	linkSubjects(t, db, other.ID, math)

	if err := db.Model(&f.Students[0]).Update("section_id", f.Sections[0].ID).Error; err != nil {
		t.Fatalf("section student A: %v", err)
	}
	if err := db.Model(&f.Students[1]).Update("section_id", f.Sections[1].ID).Error; err != nil {
		t.Fatalf("section student B: %v", err)
	}

	crossUser := models.User{Username: "cross", Password: "x", Role: models.RoleStudent, Status: "active"}
	if err := db.Create(&crossUser).Error; err != nil {
		t.Fatalf("seed cross user: %v", err)
	}
	crossStudent := models.Student{
		UserID: crossUser.ID, FirstName: "Cross", GradeID: other.ID, SectionID: &otherSection.ID,
	}
	if err := db.Create(&crossStudent).Error; err != nil {
		t.Fatalf("seed cross student: %v", err)
	}

	teacher := seedTeacher(t, db, "t.alem", "teacher")
	if _, err := NewTeacherAssignmentService(db).Assign(AssignmentInput{
		TeacherID:  teacher.ID,
		YearID:     f.Year.ID,
		GradeID:    f.Grade.ID,
		SubjectID:  math.ID,
		SectionIDs: []uint{f.Sections[0].ID},
	}); err != nil {
		t.Fatalf("assign teacher: %v", err)
	}

	newMark := func(studentID uint) models.MarkList {
		mark := models.MarkList{
			StudentID:      studentID,
			SubjectID:      math.ID,
			TermID:         term.ID,
			AssessmentType: "exam",
			Percentage:     100,
		}
		if err := db.Create(&mark).Error; err != nil {
			t.Fatalf("seed mark for student %d: %v", studentID, err)
		}
		return mark
	}

	return markScopeFixture{
		f:         f,
		teacher:   teacher,
		term:      term,
		markA:     newMark(f.Students[0].ID),
		markB:     newMark(f.Students[1].ID),
		markCross: newMark(crossStudent.ID),
		crossID:   crossStudent.ID,
	}
}

func TestTeacherMayEditScopesGradeAndSection(t *testing.T) {
	db := testDB(t)
	fx := seedMarkScope(t, db)
	svc := NewMarkListService(db)

	tests := []struct {
		name string
		mark models.MarkList
		want bool
	}{
		{name: "assigned section", mark: fx.markA, want: true},
		{name: "unlinked section of same grade", mark: fx.markB, want: false},
		{name: "same subject row in another grade", mark: fx.markCross, want: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mark := tc.mark
			got, err := svc.TeacherMayEdit(fx.teacher.ID, &mark)
			if err != nil {
				t.Fatalf("TeacherMayEdit: %v", err)
			}
			if got != tc.want {
				t.Errorf("TeacherMayEdit = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMarksForTeacherScopedToAssignment(t *testing.T) {
	db := testDB(t)
	fx := seedMarkScope(t, db)
	svc := NewMarkListService(db)

	marks, err := svc.MarksForTeacher(fx.teacher.ID)
	if err != nil {
		t.Fatalf("MarksForTeacher: %v", err)
	}
	if len(marks) != 1 {
		t.Fatalf("marks = %d, want only the assigned section's row", len(marks))
	}
	if marks[0].ID != fx.markA.ID {
		t.Errorf("mark id = %d, want %d", marks[0].ID, fx.markA.ID)
	}
	for _, m := range marks {
		if m.StudentID == fx.crossID {
			t.Errorf("mark of another grade's student leaked into the listing")
		}
	}
}

func TestMarkListSetupRequiresStudents(t *testing.T) {
	db := testDB(t)
	f := seedSchool(t, db, []string{"Math"}, 0)
	linkSubjects(t, db, f.Grade.ID, f.Subjects["Math"])
	svc := NewMarkListService(db)

	_, err := svc.Setup(SetupInput{
		Year:       f.Year.Name,
		GradeLevel: f.Grade.Level,
		Semester:   1,
		Sections:   []string{"A"},
		Subjects:   []string{"Math"},
		AssessmentTypes: []AssessmentTypeInput{
			{Type: "exam", Percentage: 100},
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("no-students error = %v, want ErrValidation", err)
	}
}
