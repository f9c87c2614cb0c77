package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classease_go/config"
	"classease_go/database"
	"classease_go/middleware"
	"classease_go/models"
	"classease_go/storage"
	"classease_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:            config.EnvTesting,
		JWTAdminSecret:    "test_admin_secret",
		JWTTeacherSecret:  "test_teacher_secret",
		JWTStudentSecret:  "test_student_secret",
		JWTExpiresIn:      time.Hour,
		MaxFileSize:       10 << 20,
		AllowedExtensions: "jpg,jpeg,png",
		UploadDir:         t.TempDir(),
		PublicBaseURL:     "http://localhost:3000",
	}
}

// loginApp wires a minimal app with just the auth routes mounted.
func loginApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	cfg := testConfig(t)
	auth := middleware.NewAuth(cfg, db, nil)
	st, err := storage.NewService(cfg)
	if err != nil {
		t.Fatalf("failed to create storage service: %v", err)
	}
	logs := middleware.NewActivityLogger(db, nil)

	ac := NewAuthController(db, auth, st, logs)
	app := fiber.New()
	app.Post("/api/v1/auth/login", ac.Login)
	return app, db
}

func seedLoginUser(t *testing.T, db *gorm.DB, username, password, role string) models.User {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		Username: username,
		Password: hash,
		Role:     role,
		Status:   "active",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func TestLogin(t *testing.T) {
	app, db := loginApp(t)
	seedLoginUser(t, db, "director", "s3cret-pass", models.RoleAdmin)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantRole   string
	}{
		{
			name:       "valid credentials",
			body:       map[string]string{"username": "director", "password": "s3cret-pass"},
			wantStatus: fiber.StatusOK,
			wantRole:   models.RoleAdmin,
		},
		{
			name:       "wrong password",
			body:       map[string]string{"username": "director", "password": "not-the-pass"},
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "unknown username",
			body:       map[string]string{"username": "nobody", "password": "s3cret-pass"},
			wantStatus: fiber.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			payload, err := json.Marshal(tc.body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			req := httptest.NewRequest(fiber.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("perform request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.wantStatus != fiber.StatusOK {
				return
			}

			var out struct {
				Token string `json:"token"`
				Role  string `json:"role"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if out.Token == "" {
				t.Error("token is empty")
			}
			if out.Role != tc.wantRole {
				t.Errorf("role = %q, want %q", out.Role, tc.wantRole)
			}
		})
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	app, db := loginApp(t)
	user := seedLoginUser(t, db, "former", "s3cret-pass", models.RoleTeacher)
	if err := db.Model(&user).Update("status", "inactive").Error; err != nil {
		t.Fatalf("deactivate user: %v", err)
	}

	payload := []byte(`{"username":"former","password":"s3cret-pass"}`)
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
}
