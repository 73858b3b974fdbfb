package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/dto"
	"github.com/lexpraxis/legal_practice_app/internal/middleware"
)

// payrollHandler handles payroll HTTP requests.
type payrollHandler struct {
	payrollService portssvc.PayrollSvcFacade
}

func newPayrollHandler(payrollService portssvc.PayrollSvcFacade) *payrollHandler {
	return &payrollHandler{payrollService: payrollService}
}

func registerPayrollRoutes(companyGroup *gin.RouterGroup, payrollService portssvc.PayrollSvcFacade) {
	h := newPayrollHandler(payrollService)

	runs := companyGroup.Group("/payroll-runs")
	{
		runs.POST("", h.runPayroll)
		runs.GET("/:run_id", h.getRun)
		runs.POST("/:run_id/approve-hr", h.approveHR)
		runs.POST("/:run_id/approve-accounting", h.approveAccounting)
		runs.POST("/:run_id/reverse", h.reverseRun)
		runs.DELETE("/:run_id", h.deleteDraftRun)
	}
}

func (h *payrollHandler) runPayroll(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")

	var req dto.RunPayrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for runPayroll", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	run, err := h.payrollService.RunPayroll(c.Request.Context(), companyID, req, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to run payroll")
		return
	}

	logger.Info("Payroll run created",
		slog.String("run_id", run.RunID),
		slog.Int("year", run.Year),
		slog.Int("month", run.Month),
	)
	c.JSON(http.StatusCreated, run)
}

func (h *payrollHandler) getRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	runID := c.Param("run_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	run, err := h.payrollService.GetRun(c.Request.Context(), companyID, runID, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve payroll run")
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *payrollHandler) approveHR(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	runID := c.Param("run_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	run, err := h.payrollService.ApproveHR(c.Request.Context(), companyID, runID, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to approve payroll run")
		return
	}

	logger.Info("Payroll run HR-approved", slog.String("run_id", runID))
	c.JSON(http.StatusOK, dto.ToPayrollRunResponse(run, nil))
}

func (h *payrollHandler) approveAccounting(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	runID := c.Param("run_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	run, err := h.payrollService.ApproveAccounting(c.Request.Context(), companyID, runID, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to approve payroll run")
		return
	}

	logger.Info("Payroll run accounting-approved", slog.String("run_id", runID))
	c.JSON(http.StatusOK, dto.ToPayrollRunResponse(run, nil))
}

func (h *payrollHandler) reverseRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	runID := c.Param("run_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	run, err := h.payrollService.ReverseRun(c.Request.Context(), companyID, runID, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to reverse payroll run")
		return
	}

	logger.Info("Payroll run reversed", slog.String("run_id", runID))
	c.JSON(http.StatusOK, dto.ToPayrollRunResponse(run, nil))
}

func (h *payrollHandler) deleteDraftRun(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	runID := c.Param("run_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	if err := h.payrollService.DeleteDraftRun(c.Request.Context(), companyID, runID, userID); err != nil {
		respondServiceError(c, logger, err, "Failed to delete payroll run")
		return
	}

	logger.Info("Payroll run deleted", slog.String("run_id", runID))
	c.Status(http.StatusNoContent)
}
