package utils

import (
	"classease_go/models"
)

// Compact representations used across APIs

type UserShort struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	ImageURL string `json:"image_url,omitempty"`
}

type StudentDetail struct {
	UserShort
	StudentID   uint   `json:"student_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	GradeID     uint   `json:"grade_id"`
	SectionID   *uint  `json:"section_id,omitempty"`
	NextGradeID *uint  `json:"next_grade_id,omitempty"`
}

type TeacherDetail struct {
	UserShort
	TeacherID uint   `json:"teacher_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
}

type AdminDetail struct {
	UserShort
	Email string `json:"email,omitempty"`
}

// UserDetail is the tagged serialization of a user: exactly one of the
// variant fields is set, keyed by Role.
type UserDetail struct {
	Role    string         `json:"role"`
	Student *StudentDetail `json:"student,omitempty"`
	Teacher *TeacherDetail `json:"teacher,omitempty"`
	Admin   *AdminDetail   `json:"admin,omitempty"`
}

// ToUserShort maps a user row to its compact form. rehydrate turns the stored
// image path into an absolute URL; pass nil to keep the stored value.
func ToUserShort(u *models.User, rehydrate func(string) string) UserShort {
	image := u.ImageURL
	if rehydrate != nil {
		image = rehydrate(image)
	}
	return UserShort{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		ImageURL: image,
	}
}

// ToUserDetail maps a user with its preloaded profile to the role-keyed
// detail union. One mapper per variant, resolved by a single switch.
func ToUserDetail(u *models.User, rehydrate func(string) string) UserDetail {
	short := ToUserShort(u, rehydrate)

	switch u.Role {
	case models.RoleStudent:
		detail := &StudentDetail{UserShort: short}
		if u.Student != nil {
			detail.StudentID = u.Student.ID
			detail.FirstName = u.Student.FirstName
			detail.LastName = u.Student.LastName
			detail.GradeID = u.Student.GradeID
			detail.SectionID = u.Student.SectionID
			detail.NextGradeID = u.Student.NextGradeID
		}
		return UserDetail{Role: u.Role, Student: detail}
	case models.RoleTeacher:
		detail := &TeacherDetail{UserShort: short}
		if u.Teacher != nil {
			detail.TeacherID = u.Teacher.ID
			detail.FirstName = u.Teacher.FirstName
			detail.LastName = u.Teacher.LastName
			detail.Position = u.Teacher.Position
		}
		return UserDetail{Role: u.Role, Teacher: detail}
	default:
		return UserDetail{Role: u.Role, Admin: &AdminDetail{UserShort: short, Email: u.Email}}
	}
}

// MarkRow is the serialized mark-list row teachers edit.
type MarkRow struct {
	ID             uint     `json:"id"`
	StudentID      uint     `json:"student_id"`
	StudentName    string   `json:"student_name"`
	SubjectID      uint     `json:"subject_id"`
	SubjectName    string   `json:"subject_name"`
	TermID         uint     `json:"term_id"`
	AssessmentType string   `json:"assessment_type"`
	Percentage     float64  `json:"percentage"`
	Score          *float64 `json:"score"`
}

// ToMarkRow maps a mark list row; caller preloads Student.User and Subject.
func ToMarkRow(m models.MarkList) MarkRow {
	name := m.Student.FirstName
	if m.Student.LastName != "" {
		name += " " + m.Student.LastName
	}
	return MarkRow{
		ID:             m.ID,
		StudentID:      m.StudentID,
		StudentName:    name,
		SubjectID:      m.SubjectID,
		SubjectName:    m.Subject.Name,
		TermID:         m.TermID,
		AssessmentType: m.AssessmentType,
		Percentage:     m.Percentage,
		Score:          m.Score,
	}
}
