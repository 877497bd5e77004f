package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusphere/exam-engine/internal/services"
	"github.com/edusphere/exam-engine/internal/utils"
)

type ReportHandler struct {
	BaseHandler
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService, logger utils.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler:   NewBaseHandler(logger),
		reportService: reportService,
	}
}

// GetExamReport retrieves aggregate results for an exam
// @Summary Get exam report
// @Description Returns submission counts, score statistics and per-student results for an exam
// @Tags reports
// @Produce json
// @Param exam_id path string true "Exam ID"
// @Success 200 {object} services.ExamReport
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{exam_id}/report [get]
func (h *ReportHandler) GetExamReport(c *gin.Context) {
	examID, ok := h.parseStringIDParam(c, "exam_id")
	if !ok {
		return
	}

	h.LogRequest(c, "Getting exam report", "exam_id", examID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	report, err := h.reportService.GetExamReport(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ExportExamResults downloads exam results as a spreadsheet
// @Summary Export exam results
// @Description Streams an xlsx workbook with one row per submission plus a summary block
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param exam_id path string true "Exam ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{exam_id}/report/export [get]
func (h *ReportHandler) ExportExamResults(c *gin.Context) {
	examID, ok := h.parseStringIDParam(c, "exam_id")
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting exam results", "exam_id", examID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	content, err := h.reportService.ExportExamResults(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-%s-results.xlsx", examID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

func (h *ReportHandler) handleServiceError(c *gin.Context, err error) {
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
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
