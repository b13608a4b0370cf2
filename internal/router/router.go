package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/handler"
	"github.com/stemsi/enrolment-backend/internal/metrics"
	"github.com/stemsi/enrolment-backend/internal/middleware"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	Student       *handler.StudentHandler
	Exam          *handler.ExamHandler
	Question      *handler.QuestionHandler
	PaymentEvents *handler.PaymentEventHandler
	System        *handler.SystemHandler
	Dashboard     *handler.DashboardHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter may be nil to disable rate limiting.
func SetupRouter(
	authService *service.AuthService,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the logger and every envelope carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(middleware.Brotli())

	if handlers.System != nil {
		router.GET("/health", handlers.System.Health)
	}
	router.GET("/metrics", metrics.Handler())

	limit := func(route string) gin.HandlerFunc {
		if limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return limiter.Middleware(route)
	}
	authenticated := []gin.HandlerFunc{
		middleware.RequireAuth(authService),
		middleware.RejectRevoked(authService),
	}
	staffOnly := middleware.RequireRole(model.RoleAdmin, model.RoleSuperadmin)
	examEditors := middleware.RequireRole(model.RoleTutor, model.RoleAdmin, model.RoleSuperadmin)

	api := router.Group("/api")
	api.Use(middleware.NoStore())

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := api.Group("/auth")
	{
		auth.POST("/login", limit("login"), handlers.Auth.Login)

		session := auth.Group("", authenticated...)
		session.POST("/logout", handlers.Auth.Logout)
		session.GET("/profile", handlers.Auth.GetProfile)
		session.PUT("/profile", handlers.Auth.UpdateProfile)

		users := auth.Group("/users", authenticated...)
		users.Use(staffOnly)
		users.GET("", handlers.Auth.ListUsers)
		users.POST("", handlers.Auth.CreateUser)
		users.PATCH("/:id/status", handlers.Auth.UpdateUserStatus)
		if handlers.PaymentEvents != nil {
			users.GET("/:id/payment-events", handlers.PaymentEvents.ListByAccount)
		}
	}

	// ─── 2. Student Group (registration + payment are public) ──────────
	student := api.Group("/student")
	{
		student.POST("/register", limit("register"), handlers.Student.Register)
		student.POST("/create-order", limit("create_order"), handlers.Student.CreateOrder)
		student.POST("/capture-payment", limit("capture_payment"), handlers.Student.CapturePayment)

		profile := student.Group("/profile", authenticated...)
		profile.GET("/:id", handlers.Student.GetProfile)
		profile.PUT("/:id", handlers.Student.UpdateProfile)
	}

	// ─── 3. Exam Group ─────────────────────────────────────────────────
	exams := api.Group("/exams", authenticated...)
	{
		exams.GET("", handlers.Exam.ListExams)
		exams.GET("/:id", handlers.Exam.GetExam)
		exams.GET("/:id/paper", middleware.RequireRole(model.RoleStudent), handlers.Exam.GetPaper)

		exams.POST("", examEditors, handlers.Exam.CreateExam)
		exams.PUT("/:id", examEditors, handlers.Exam.UpdateExam)
		exams.DELETE("/:id", examEditors, handlers.Exam.DeleteExam)
		exams.POST("/:id/publish", examEditors, handlers.Exam.PublishExam)
		exams.POST("/:id/archive", examEditors, handlers.Exam.ArchiveExam)

		exams.GET("/:id/questions", examEditors, handlers.Question.ListQuestions)
		exams.POST("/:id/questions", examEditors, handlers.Question.AddQuestion)
		exams.PUT("/:id/questions", examEditors, handlers.Question.ReplaceQuestions)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	admin := api.Group("/admin", authenticated...)
	admin.Use(staffOnly)
	{
		if handlers.Dashboard != nil {
			admin.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		}
		if handlers.System != nil {
			admin.GET("/system", handlers.System.Status)
		}
	}

	return router
}
