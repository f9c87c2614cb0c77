package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"classease_go/config"
	"classease_go/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database selected by the deployment profile and runs
// migrations. The handle is returned rather than stored in a package global so
// callers wire it explicitly into controllers and services.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var gormLogger logger.Interface
	if cfg.AppEnv == config.EnvDevelopment {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	gormCfg := &gorm.Config{Logger: gormLogger, TranslateError: true}

	var db *gorm.DB
	var err error
	if cfg.IsTesting() {
		db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open test database: %w", err)
		}
	} else {
		dsn := cfg.GetDSN()
		// Retry for transient tunnel issues
		var lastErr error
		for attempt := 1; attempt <= 8; attempt++ {
			db, err = gorm.Open(mysql.Open(dsn), gormCfg)
			if err == nil {
				break
			}
			lastErr = err
			log.Printf("Database connect attempt %d failed: %v", attempt, err)
			time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
		}
		if db == nil {
			return nil, fmt.Errorf("failed to connect to database after retries: %w", lastErr)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(55 * time.Minute)
	}

	if !cfg.SkipMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate performs automatic database migration
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Year{},
		&models.AcademicTerm{},
		&models.Grade{},
		&models.Stream{},
		&models.Section{},
		&models.Subject{},
		&models.GradeStreamSubject{},
		&models.Student{},
		&models.Teacher{},
		&models.TeacherRecord{},
		&models.TeacherRecordLink{},
		&models.MarkList{},
		&models.Assessment{},
		&models.SubjectYearlyAverage{},
		&models.StudentTermRecord{},
		&models.StudentYearRecord{},
		&models.RevokedToken{},
		&models.ActivityLog{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

// ConnectRedis initializes the Redis connection. A nil client is returned when
// Redis is unreachable or disabled; callers fall back to the database.
func ConnectRedis(cfg *config.Config) *redis.Client {
	if !cfg.UseRedisCache {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("Redis connection failed: %v", err)
		log.Println("Continuing without Redis - blacklist and logs go directly to the database")
		return nil
	}

	log.Println("Redis connected successfully")
	return client
}

// Close closes the database connection
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Println("Error getting database instance:", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Println("Error closing database connection:", err)
	}
}
