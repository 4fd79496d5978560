package routes

import (
	"philosofium/backend/catalog"
	"philosofium/backend/config"
	"philosofium/backend/controllers"
	"philosofium/backend/middleware"
	"philosofium/backend/progress"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, cat *catalog.Catalog, svc *progress.Service, log *utils.Logger) {
	// Auth routes
	authController := controllers.NewAuthController(db, cfg, log)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(db)

	// User routes
	userController := controllers.NewUserController(db, svc, log)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)

	// Courses routes
	coursesController := controllers.NewCoursesController(cat, svc, log)
	courses := app.Group("/api/courses", authMiddleware)
	courses.Get("/", coursesController.GetCourses)
	courses.Get("/:id", coursesController.GetCourseDetails)

	// Admin routes for courses
	adminCourses := app.Group("/api/admin/courses", authMiddleware, adminMiddleware)
	adminCourses.Post("/", coursesController.CreateCourse)
	adminCourses.Post("/:id/lessons", coursesController.AddLesson)

	// Progress routes
	progressController := controllers.NewProgressController(svc, cat, log)
	prog := app.Group("/api/progress", authMiddleware)
	prog.Get("/", progressController.GetUserProgress)
	prog.Get("/overview", progressController.GetProgressOverview)
	prog.Get("/export", progressController.ExportProgress)
	prog.Get("/courses/:courseId", progressController.GetCourseProgress)
	prog.Put("/courses/:courseId", progressController.UpdateProgress)
	prog.Post("/courses/:courseId/touch", progressController.TouchCourse)
	prog.Post("/courses/:courseId/lessons/:lessonId/complete", progressController.MarkLessonCompleted)
}
