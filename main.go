package main

import (
	"log"
	"os"

	"classease_go/config"
	"classease_go/controllers"
	"classease_go/database"
	"classease_go/middleware"
	"classease_go/routes"
	"classease_go/services"
	"classease_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	redisClient := database.ConnectRedis(cfg)

	store, err := storage.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	auth := middleware.NewAuth(cfg, db, redisClient)
	activityLogs := middleware.NewActivityLogger(db, redisClient)

	syncService := services.NewRelationshipSyncService(db)
	pipeline := services.NewScorePipelineService(db)
	assignments := services.NewTeacherAssignmentService(db)
	markLists := services.NewMarkListService(db)

	maintenance := services.NewMaintenanceService(db, redisClient)
	if err := maintenance.Start(); err != nil {
		log.Fatal("Failed to start maintenance scheduler:", err)
	}
	defer maintenance.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.MaxFileSize),
	})

	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,apiKey",
	}))
	app.Use(middleware.LoggerMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "ClassEase API",
			"version": "1.0.0",
		})
	})

	// Locally stored profile images
	app.Static("/uploads", cfg.UploadDir)

	routes.SetupRoutes(app, auth, routes.Controllers{
		Auth:          controllers.NewAuthController(db, auth, store, activityLogs),
		Users:         controllers.NewUserController(db, store, activityLogs),
		Years:         controllers.NewYearController(db, activityLogs),
		Grades:        controllers.NewGradeController(db, syncService, activityLogs),
		Subjects:      controllers.NewSubjectController(db, syncService, activityLogs),
		Students:      controllers.NewStudentController(db, store, activityLogs),
		Teachers:      controllers.NewTeacherController(db, assignments, activityLogs),
		Assignments:   controllers.NewAssignmentController(db, assignments, activityLogs),
		MarkLists:     controllers.NewMarkListController(db, markLists, pipeline, activityLogs),
		Reports:       controllers.NewReportController(db, activityLogs),
		Notifications: controllers.NewNotificationController(db, activityLogs),
		Logs:          controllers.NewLogController(db),
		Lookups:       controllers.NewLookupController(db),
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	logrus.Infof("Server starting on port %s (%s)", cfg.Port, cfg.AppEnv)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// setupLogging configures the logging system
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.AppEnv == config.EnvProduction {
		if err := os.MkdirAll("logs", 0o755); err == nil {
			file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
			if err == nil {
				logrus.SetOutput(file)
				return
			}
		}
	}
	logrus.SetOutput(os.Stdout)
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
