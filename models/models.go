package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// LinkModel is the base for association and aggregate rows. These rows are
// hard-deleted (relationship sync recreates them), so they carry no DeletedAt:
// a soft-deleted row would keep blocking the unique composite index.
type LinkModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User model - the login identity behind every student, teacher, and admin
type User struct {
	BaseModel
	Username string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password string `json:"-" gorm:"size:255;not null"`
	Email    string `json:"email" gorm:"size:255"`
	Phone    string `json:"phone" gorm:"size:20"`
	Role     string `json:"role" gorm:"size:50;not null;default:'student'"` // admin, teacher, student
	Status   string `json:"status" gorm:"size:50;not null;default:'active'"`
	ImageURL string `json:"image_url" gorm:"size:500"`

	// Relationships
	Student *Student `json:"student,omitempty" gorm:"foreignKey:UserID"`
	Teacher *Teacher `json:"teacher,omitempty" gorm:"foreignKey:UserID"`
}

// Year model - one academic year, e.g. "2024/25"
type Year struct {
	BaseModel
	Name   string `json:"name" gorm:"size:20;not null;uniqueIndex"`
	Status string `json:"status" gorm:"size:50;not null;default:'active'"`

	// Relationships
	Terms    []AcademicTerm `json:"terms,omitempty" gorm:"foreignKey:YearID"`
	Grades   []Grade        `json:"grades,omitempty" gorm:"foreignKey:YearID"`
	Subjects []Subject      `json:"subjects,omitempty" gorm:"foreignKey:YearID"`
}

// AcademicTerm model - an ordinal term/semester inside a year. The registration
// window gates course-registration eligibility.
type AcademicTerm struct {
	BaseModel
	YearID    uint       `json:"year_id" gorm:"not null;uniqueIndex:idx_term_year_ordinal"`
	Ordinal   int        `json:"ordinal" gorm:"not null;uniqueIndex:idx_term_year_ordinal"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	RegStart  *time.Time `json:"reg_start"`
	RegEnd    *time.Time `json:"reg_end"`

	// Relationships
	Year Year `json:"year,omitempty" gorm:"foreignKey:YearID"`
}

// Grade model - a grade level inside a year; owns sections and, through
// GradeStreamSubject rows, subjects (and streams when HasStream).
type Grade struct {
	BaseModel
	YearID    uint `json:"year_id" gorm:"not null;uniqueIndex:idx_grade_year_level"`
	Level     int  `json:"level" gorm:"not null;uniqueIndex:idx_grade_year_level"`
	HasStream bool `json:"has_stream" gorm:"default:false"`

	// Relationships
	Year     Year      `json:"year,omitempty" gorm:"foreignKey:YearID"`
	Streams  []Stream  `json:"streams,omitempty" gorm:"foreignKey:GradeID"`
	Sections []Section `json:"sections,omitempty" gorm:"foreignKey:GradeID"`
}

// Stream model - a subject grouping inside a streamed grade
type Stream struct {
	BaseModel
	GradeID uint   `json:"grade_id" gorm:"not null;uniqueIndex:idx_stream_grade_name"`
	Name    string `json:"name" gorm:"size:100;not null;uniqueIndex:idx_stream_grade_name"`

	// Relationships
	Grade Grade `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
}

// Section model - a classroom subdivision of a grade
type Section struct {
	BaseModel
	GradeID uint   `json:"grade_id" gorm:"not null;uniqueIndex:idx_section_grade_name"`
	Name    string `json:"name" gorm:"size:100;not null;uniqueIndex:idx_section_grade_name"`

	// Relationships
	Grade Grade `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
}

// Subject model - a taught subject inside a year; Code is generated from the
// name and grade level
type Subject struct {
	BaseModel
	YearID uint   `json:"year_id" gorm:"not null"`
	Name   string `json:"name" gorm:"size:255;not null"`
	Code   string `json:"code" gorm:"size:50;not null;uniqueIndex"`

	// Relationships
	Year Year `json:"year,omitempty" gorm:"foreignKey:YearID"`
}

// GradeStreamSubject - association row linking a grade, an optional stream and
// a subject. StreamID is NULL for non-streamed grade-subject links. This is the
// row relationship sync reconciles. StreamKey mirrors StreamID with NULL
// coalesced to 0 so the unique index also rejects duplicate null-stream
// triples, which unique indexes over a nullable column would not.
type GradeStreamSubject struct {
	LinkModel
	GradeID   uint  `json:"grade_id" gorm:"not null;uniqueIndex:idx_gss_triple"`
	StreamID  *uint `json:"stream_id"`
	StreamKey uint  `json:"-" gorm:"not null;default:0;uniqueIndex:idx_gss_triple"`
	SubjectID uint  `json:"subject_id" gorm:"not null;uniqueIndex:idx_gss_triple"`

	// Relationships
	Grade   Grade   `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
	Stream  *Stream `json:"stream,omitempty" gorm:"foreignKey:StreamID"`
	Subject Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
}

func (g *GradeStreamSubject) BeforeSave(tx *gorm.DB) error {
	if g.StreamID != nil {
		g.StreamKey = *g.StreamID
	} else {
		g.StreamKey = 0
	}
	return nil
}

// Student model - academic profile behind a student user
type Student struct {
	BaseModel
	UserID      uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	FirstName   string     `json:"first_name" gorm:"size:100"`
	LastName    string     `json:"last_name" gorm:"size:100"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" gorm:"size:20"`
	GradeID     uint       `json:"grade_id" gorm:"not null"`
	NextGradeID *uint      `json:"next_grade_id"` // pending promotion
	SectionID   *uint      `json:"section_id"`
	GuardianName  string   `json:"guardian_name" gorm:"size:200"`
	GuardianPhone string   `json:"guardian_phone" gorm:"size:20"`

	// Relationships
	User    User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Grade   Grade    `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
	Section *Section `json:"section,omitempty" gorm:"foreignKey:SectionID"`
}

// Teacher model - employment profile behind a teacher user
type Teacher struct {
	BaseModel
	UserID    uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	FirstName string `json:"first_name" gorm:"size:100"`
	LastName  string `json:"last_name" gorm:"size:100"`
	Position  string `json:"position" gorm:"size:50;not null;default:'teacher'"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TeacherRecord - assignment of a teacher to a grade-stream-subject for one term
type TeacherRecord struct {
	LinkModel
	TeacherID            uint `json:"teacher_id" gorm:"not null;uniqueIndex:idx_record_triple"`
	TermID               uint `json:"term_id" gorm:"not null;uniqueIndex:idx_record_triple"`
	GradeStreamSubjectID uint `json:"grade_stream_subject_id" gorm:"not null;uniqueIndex:idx_record_triple"`

	// Relationships
	Teacher            Teacher             `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Term               AcademicTerm        `json:"term,omitempty" gorm:"foreignKey:TermID"`
	GradeStreamSubject GradeStreamSubject  `json:"grade_stream_subject,omitempty" gorm:"foreignKey:GradeStreamSubjectID"`
	Links              []TeacherRecordLink `json:"links,omitempty" gorm:"foreignKey:TeacherRecordID"`
}

// TeacherRecordLink - per-section link under a teacher record
type TeacherRecordLink struct {
	LinkModel
	TeacherRecordID uint `json:"teacher_record_id" gorm:"not null;uniqueIndex:idx_link_record_section"`
	SectionID       uint `json:"section_id" gorm:"not null;uniqueIndex:idx_link_record_section"`

	// Relationships
	TeacherRecord TeacherRecord `json:"teacher_record,omitempty" gorm:"foreignKey:TeacherRecordID"`
	Section       Section       `json:"section,omitempty" gorm:"foreignKey:SectionID"`
}

// MarkList - one assessment-type score entry for one student/subject/term.
// Percentage is the weight of the assessment type toward the subject total.
type MarkList struct {
	LinkModel
	StudentID      uint     `json:"student_id" gorm:"not null;uniqueIndex:idx_mark_entry"`
	SubjectID      uint     `json:"subject_id" gorm:"not null;uniqueIndex:idx_mark_entry"`
	TermID         uint     `json:"term_id" gorm:"not null;uniqueIndex:idx_mark_entry"`
	AssessmentType string   `json:"assessment_type" gorm:"size:100;not null;uniqueIndex:idx_mark_entry"`
	Percentage     float64  `json:"percentage" gorm:"not null"`
	Score          *float64 `json:"score"`

	// Relationships
	Student Student      `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Subject Subject      `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Term    AcademicTerm `json:"term,omitempty" gorm:"foreignKey:TermID"`
}

// Assessment - per student/subject/term aggregate: weighted total and rank
// among peers in the same subject/term
type Assessment struct {
	LinkModel
	StudentID uint     `json:"student_id" gorm:"not null;uniqueIndex:idx_assessment_triple"`
	SubjectID uint     `json:"subject_id" gorm:"not null;uniqueIndex:idx_assessment_triple"`
	TermID    uint     `json:"term_id" gorm:"not null;uniqueIndex:idx_assessment_triple"`
	Total     *float64 `json:"total"`
	Rank      *uint    `json:"rank" gorm:"column:rank"`

	// Relationships
	Student Student      `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Subject Subject      `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Term    AcademicTerm `json:"term,omitempty" gorm:"foreignKey:TermID"`
}

// SubjectYearlyAverage - mean of a student's per-term subject totals across a year
type SubjectYearlyAverage struct {
	LinkModel
	StudentID uint     `json:"student_id" gorm:"not null;uniqueIndex:idx_subject_year_triple"`
	SubjectID uint     `json:"subject_id" gorm:"not null;uniqueIndex:idx_subject_year_triple"`
	YearID    uint     `json:"year_id" gorm:"not null;uniqueIndex:idx_subject_year_triple"`
	Average   *float64 `json:"average"`
	Rank      *uint    `json:"rank" gorm:"column:rank"`
}

// StudentTermRecord - mean of a student's subject totals within one term
type StudentTermRecord struct {
	LinkModel
	StudentID uint     `json:"student_id" gorm:"not null;uniqueIndex:idx_term_record_pair"`
	TermID    uint     `json:"term_id" gorm:"not null;uniqueIndex:idx_term_record_pair"`
	Average   *float64 `json:"average"`
	Rank      *uint    `json:"rank" gorm:"column:rank"`
}

// StudentYearRecord - mean of a student's term averages across a year
type StudentYearRecord struct {
	LinkModel
	StudentID  uint     `json:"student_id" gorm:"not null;uniqueIndex:idx_year_record_pair"`
	YearID     uint     `json:"year_id" gorm:"not null;uniqueIndex:idx_year_record_pair"`
	FinalScore *float64 `json:"final_score"`
	Rank       *uint    `json:"rank" gorm:"column:rank"`
}

// RevokedToken - server-side blacklist row keyed by token jti; rows past
// ExpiresAt are purged by the maintenance scheduler
type RevokedToken struct {
	LinkModel
	JTI       string    `json:"jti" gorm:"size:64;not null;uniqueIndex"`
	UserID    uint      `json:"user_id" gorm:"not null"`
	Role      string    `json:"role" gorm:"size:50;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// ActivityLog model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Notification model - poll-based; rows are read via GET endpoints
type Notification struct {
	BaseModel
	UserID  uint       `json:"user_id" gorm:"not null"`
	Title   string     `json:"title" gorm:"size:255;not null"`
	Message string     `json:"message" gorm:"type:text;not null"`
	Type    string     `json:"type" gorm:"size:50;not null;default:'info'"` // info, warning, error, success
	Read    bool       `json:"read" gorm:"default:false"`
	ReadAt  *time.Time `json:"read_at"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
