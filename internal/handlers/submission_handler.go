package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edusphere/exam-engine/internal/repositories"
	"github.com/edusphere/exam-engine/internal/services"
	"github.com/edusphere/exam-engine/internal/utils"
	"github.com/edusphere/exam-engine/internal/validator"
)

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
	validator         *validator.Validator
}

func NewSubmissionHandler(submissionService services.SubmissionService, validator *validator.Validator, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
		validator:         validator,
	}
}

// StartSubmission starts a new exam submission
// @Summary Start exam submission
// @Description Starts a new submission for an exam; a student gets one submission per exam
// @Tags submissions
// @Accept json
// @Produce json
// @Param submission body services.StartSubmissionRequest true "Start submission data"
// @Success 201 {object} services.SubmissionDetail
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions/start [post]
func (h *SubmissionHandler) StartSubmission(c *gin.Context) {
	h.LogRequest(c, "Starting exam submission")

	var req services.StartSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	meta := &services.ClientMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	submission, err := h.submissionService.Start(c.Request.Context(), &req, studentID, meta)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// GetSubmission retrieves a submission by ID
// @Summary Get submission
// @Description Retrieves a submission with its questions, answers and progress
// @Tags submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} services.SubmissionDetail
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	submissionID, ok := h.parseStringIDParam(c, "id")
	if !ok {
		return
	}

	h.LogRequest(c, "Getting submission", "submission_id", submissionID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.GetByID(c.Request.Context(), submissionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// GetProgress retrieves the answer progress of a submission
// @Summary Get submission progress
// @Description Returns answered/total counts and a percentage for a submission
// @Tags submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} services.ProgressSnapshot
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions/{id}/progress [get]
func (h *SubmissionHandler) GetProgress(c *gin.Context) {
	submissionID, ok := h.parseStringIDParam(c, "id")
	if !ok {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	progress, err := h.submissionService.GetProgress(c.Request.Context(), submissionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// SyncAnswers replaces the stored answers for the given questions
// @Summary Sync answers
// @Description Replaces the selected choices for each question in the batch; the whole batch is validated before any write
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param answers body services.SyncAnswersRequest true "Answer batch"
// @Success 200 {object} services.SyncAnswersResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions/{id}/answers [put]
func (h *SubmissionHandler) SyncAnswers(c *gin.Context) {
	submissionID, ok := h.parseStringIDParam(c, "id")
	if !ok {
		return
	}

	h.LogRequest(c, "Syncing answers", "submission_id", submissionID)

	var req services.SyncAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.submissionService.SyncAnswers(c.Request.Context(), submissionID, &req, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ClearAnswer clears the stored answer for one question
// @Summary Clear answer
// @Description Removes every selected choice for a question, returning the slot to unanswered
// @Tags submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Param question_id path string true "Question ID"
// @Success 200 {object} services.SyncAnswersResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions/{id}/answers/{question_id} [delete]
func (h *SubmissionHandler) ClearAnswer(c *gin.Context) {
	submissionID, ok := h.parseStringIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := h.parseStringIDParam(c, "question_id")
	if !ok {
		return
	}

	h.LogRequest(c, "Clearing answer", "submission_id", submissionID, "question_id", questionID)

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.submissionService.ClearAnswer(c.Request.Context(), submissionID, questionID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SubmitSubmission finalizes a submission and grades it
// @Summary Submit submission
// @Description Grades the submission and freezes its score; repeating the call returns the stored result
// @Tags submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} services.SubmitResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions/{id}/submit [post]
func (h *SubmissionHandler) SubmitSubmission(c *gin.Context) {
	submissionID, ok := h.parseStringIDParam(c, "id")
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting submission", "submission_id", submissionID)

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), submissionID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMySubmissions lists the authenticated student's submissions
// @Summary List my submissions
// @Description Lists the caller's submissions with pagination and filters
// @Tags submissions
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Param exam_id query string false "Filter by exam"
// @Param submitted query bool false "Filter by submitted state"
// @Success 200 {object} services.SubmissionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions [get]
func (h *SubmissionHandler) ListMySubmissions(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseSubmissionFilters(c)

	result, err := h.submissionService.GetByStudent(c.Request.Context(), studentID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSubmissionsByExam lists all submissions for an exam
// @Summary List submissions by exam
// @Description Lists every submission for an exam; teachers and admins only
// @Tags submissions
// @Produce json
// @Param exam_id path string true "Exam ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} services.SubmissionListResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{exam_id}/submissions [get]
func (h *SubmissionHandler) GetSubmissionsByExam(c *gin.Context) {
	examID, ok := h.parseStringIDParam(c, "exam_id")
	if !ok {
		return
	}

	h.LogRequest(c, "Listing exam submissions", "exam_id", examID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseSubmissionFilters(c)

	result, err := h.submissionService.GetByExam(c.Request.Context(), examID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SubmissionHandler) parseSubmissionFilters(c *gin.Context) repositories.SubmissionFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}

	filters := repositories.SubmissionFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if examID := strings.TrimSpace(c.Query("exam_id")); examID != "" {
		filters.ExamID = &examID
	}

	if submittedStr := c.Query("submitted"); submittedStr != "" {
		submitted := submittedStr == "true"
		filters.Submitted = &submitted
	}

	return filters
}

func (h *SubmissionHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule": businessRuleError.Rule,
			},
		})
		return
	}

	// The permission reason stays in the logs; the response never confirms
	// whether the resource exists.
	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.LogError(c, err, "Access denied",
			"resource", permissionError.Resource,
			"action", permissionError.Action,
		)
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Submission not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrQuestionNotInSubmission):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question is not part of this submission",
		})
	case errors.Is(err, services.ErrSubmissionAlreadyExists):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "A submission already exists for this exam",
		})
	case errors.Is(err, services.ErrSubmissionSubmitted):
		c.JSON(http.StatusLocked, ErrorResponse{
			Message: "Submission has already been submitted",
		})
	case errors.Is(err, services.ErrExamNotOpen):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Exam is not open for submissions",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
