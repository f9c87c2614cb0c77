package routes

import (
	"classease_go/controllers"
	"classease_go/middleware"
	"classease_go/models"

	"github.com/gofiber/fiber/v2"
)

// Controllers bundles the wired controller set for route registration.
type Controllers struct {
	Auth          *controllers.AuthController
	Users         *controllers.UserController
	Years         *controllers.YearController
	Grades        *controllers.GradeController
	Subjects      *controllers.SubjectController
	Students      *controllers.StudentController
	Teachers      *controllers.TeacherController
	Assignments   *controllers.AssignmentController
	MarkLists     *controllers.MarkListController
	Reports       *controllers.ReportController
	Notifications *controllers.NotificationController
	Logs          *controllers.LogController
	Lookups       *controllers.LookupController
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, auth *middleware.Auth, c Controllers) {
	api := app.Group("/api/v1")

	// Authentication
	authGroup := api.Group("/auth")
	authGroup.Post("/login", c.Auth.Login)
	authGroup.Post("/logout", auth.Authenticate(), c.Auth.Logout)
	authGroup.Get("/profile", auth.Authenticate(), c.Auth.GetProfile)
	authGroup.Put("/password", auth.Authenticate(), c.Auth.ChangePassword)

	// Shared reference data, any authenticated role
	shared := api.Group("", auth.Authenticate())
	shared.Get("/years", c.Years.GetYears)
	shared.Get("/years/:id", c.Years.GetYear)
	shared.Get("/grades", c.Grades.GetGrades)
	shared.Get("/grades/:id", c.Grades.GetGrade)
	shared.Get("/subjects", c.Subjects.GetSubjects)
	shared.Get("/subjects/:id", c.Subjects.GetSubject)
	shared.Get("/sections", c.Lookups.GetSections)
	shared.Get("/streams", c.Lookups.GetStreams)
	shared.Get("/notifications", c.Notifications.GetNotifications)
	shared.Put("/notifications/:id/read", c.Notifications.MarkRead)
	shared.Post("/users/:id/image", c.Users.UploadImage)

	// Admin
	admin := api.Group("/admin", auth.Authenticate(), middleware.RequireAdmin())

	admin.Post("/users", c.Users.CreateUser)
	admin.Get("/users", c.Users.GetUsers)
	admin.Get("/users/:id", c.Users.GetUser)
	admin.Put("/users/:id", c.Users.UpdateUser)
	admin.Delete("/users/:id", c.Users.DeleteUser)

	admin.Post("/years", c.Years.CreateYear)
	admin.Put("/years/:id/close", c.Years.CloseYear)
	admin.Put("/terms/:termId", c.Years.UpdateTerm)

	admin.Post("/grades", c.Grades.CreateGrade)
	admin.Delete("/grades/:id", c.Grades.DeleteGrade)
	admin.Put("/grades/:id/subjects", c.Grades.SyncSubjects)
	admin.Put("/grades/:id/streams", c.Grades.SyncStreams)
	admin.Put("/grades/:id/sections", c.Grades.SyncSections)

	admin.Post("/subjects", c.Subjects.CreateSubject)
	admin.Delete("/subjects/:id", c.Subjects.DeleteSubject)
	admin.Put("/subjects/:id/grades", c.Subjects.SyncGrades)

	admin.Get("/students", c.Students.GetStudents)
	admin.Get("/students/:id", c.Students.GetStudent)
	admin.Put("/students/:id/promote", c.Students.Promote)

	admin.Get("/teachers", c.Teachers.GetTeachers)
	admin.Get("/teachers/:id", c.Teachers.GetTeacher)
	admin.Put("/teachers/:id", c.Teachers.UpdateTeacher)
	admin.Get("/teachers/:id/assignments", c.Assignments.ForTeacher)
	admin.Post("/teacher-assignments", c.Assignments.Create)

	admin.Post("/mark-lists", c.MarkLists.Create)

	admin.Get("/reports/grades/:id", c.Reports.GradeSummary)
	admin.Get("/reports/grades/:id/export", c.Reports.Export)

	admin.Post("/notifications", c.Notifications.Broadcast)
	admin.Get("/logs", c.Logs.GetLogs)

	// Teacher
	teacher := api.Group("/teacher", auth.Authenticate(), middleware.RequireRole(models.RoleTeacher))
	teacher.Get("/assignments", c.Teachers.MyAssignments)
	teacher.Get("/mark-lists", c.MarkLists.ForTeacher)
	teacher.Put("/mark-lists/:id/score", c.MarkLists.UpdateScore)

	// Student
	student := api.Group("/student", auth.Authenticate(), middleware.RequireRole(models.RoleStudent))
	student.Get("/report", c.Students.Report)
	student.Get("/registration", c.Students.RegistrationStatus)
	student.Post("/registration", c.Students.Register)
}
