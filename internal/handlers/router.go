package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/edusphere/exam-engine/internal/config"
	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
	"github.com/edusphere/exam-engine/internal/services"
	"github.com/edusphere/exam-engine/internal/utils"
	"github.com/edusphere/exam-engine/internal/validator"
)

type HandlerManager struct {
	submissionHandler *SubmissionHandler
	reportHandler     *ReportHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), validator, logger),
		reportHandler:     NewReportHandler(serviceManager.Report(), logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Submission routes - ownership checks happen in the service layer
		submissions := v1.Group("/submissions")
		{
			submissions.POST("/start", hm.submissionHandler.StartSubmission)
			submissions.GET("", hm.submissionHandler.ListMySubmissions)
			submissions.GET("/:id", hm.submissionHandler.GetSubmission)
			submissions.GET("/:id/progress", hm.submissionHandler.GetProgress)
			submissions.PUT("/:id/answers", hm.submissionHandler.SyncAnswers)
			submissions.DELETE("/:id/answers/:question_id", hm.submissionHandler.ClearAnswer)
			submissions.POST("/:id/submit", hm.submissionHandler.SubmitSubmission)
		}

		// Exam-scoped routes - Teachers and Admins only
		exams := v1.Group("/exams")
		exams.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			exams.GET("/:exam_id/submissions", hm.submissionHandler.GetSubmissionsByExam)
			exams.GET("/:exam_id/report", hm.reportHandler.GetExamReport)
			exams.GET("/:exam_id/report/export", hm.reportHandler.ExportExamResults)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-engine",
		})
	})
}
