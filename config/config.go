package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Deployment profiles. The profile selects the database backend and logger verbosity.
const (
	EnvTesting     = "testing"
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	// Server
	Port   string
	AppEnv string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT - one signing secret per caller role
	JWTAdminSecret   string
	JWTTeacherSecret string
	JWTStudentSecret string
	JWTExpiresIn     time.Duration

	// File upload
	MaxFileSize       int64
	AllowedExtensions string
	UploadDir         string
	PublicBaseURL     string

	// AWS S3 (optional storage backend)
	UseS3Storage       bool
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string

	// Logging
	LogLevel string
	LogFile  string

	// Feature toggles
	UseRedisCache bool
	SkipMigrate   bool
}

// GetDSN builds the MySQL connection string for the development and production profiles.
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

// IsTesting reports whether the testing profile is active.
func (c *Config) IsTesting() bool {
	return strings.ToLower(c.AppEnv) == EnvTesting
}

// SecretForRole returns the signing secret for a caller role.
func (c *Config) SecretForRole(role string) []byte {
	switch role {
	case "admin":
		return []byte(c.JWTAdminSecret)
	case "teacher":
		return []byte(c.JWTTeacherSecret)
	case "student":
		return []byte(c.JWTStudentSecret)
	}
	return nil
}

// Load reads configuration from .env / environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	jwtExpiresStr := getEnv("JWT_EXPIRES_IN", "24h")
	jwtExpires, err := time.ParseDuration(jwtExpiresStr)
	if err != nil {
		log.Fatal("Invalid JWT_EXPIRES_IN format:", err)
	}

	maxFileSize, err := strconv.ParseInt(getEnv("MAX_FILE_SIZE", "10485760"), 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_FILE_SIZE format:", err)
	}

	cfg := &Config{
		Port:   getEnv("PORT", "3000"),
		AppEnv: strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "classease_go"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTAdminSecret:   getEnv("JWT_SECRET_ADMIN", "classease_admin_secret"),
		JWTTeacherSecret: getEnv("JWT_SECRET_TEACHER", "classease_teacher_secret"),
		JWTStudentSecret: getEnv("JWT_SECRET_STUDENT", "classease_student_secret"),
		JWTExpiresIn:     jwtExpires,

		MaxFileSize:       maxFileSize,
		AllowedExtensions: getEnv("ALLOWED_EXTENSIONS", "jpg,jpeg,png,webp,gif"),
		UploadDir:         getEnv("UPLOAD_DIR", "public/uploads"),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),

		UseS3Storage:       strings.ToLower(getEnv("USE_S3_STORAGE", "false")) == "true",
		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3BucketName:       getEnv("S3_BUCKET_NAME", "classease-storage"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "logs/app.log"),

		UseRedisCache: strings.ToLower(getEnv("USE_REDIS_CACHE", "true")) == "true",
		SkipMigrate:   strings.ToLower(getEnv("SKIP_MIGRATE", "false")) == "true",
	}

	validate(cfg)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func validate(c *Config) {
	// Only enforce stricter rules in production
	if c.AppEnv != EnvProduction {
		return
	}
	required := map[string]string{
		"DB_PASSWORD":        c.DBPassword,
		"JWT_SECRET_ADMIN":   c.JWTAdminSecret,
		"JWT_SECRET_TEACHER": c.JWTTeacherSecret,
		"JWT_SECRET_STUDENT": c.JWTStudentSecret,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			log.Fatalf("Missing required secret %s in production", k)
		}
	}
	for _, s := range []string{c.JWTAdminSecret, c.JWTTeacherSecret, c.JWTStudentSecret} {
		if len(s) < 16 {
			log.Fatal("JWT secrets too short (min 16 chars)")
		}
	}
}
