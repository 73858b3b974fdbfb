package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/dto"
	"github.com/lexpraxis/legal_practice_app/internal/middleware"
)

// expenseHandler handles expense HTTP requests.
type expenseHandler struct {
	expenseService portssvc.ExpenseSvcFacade
}

func newExpenseHandler(expenseService portssvc.ExpenseSvcFacade) *expenseHandler {
	return &expenseHandler{expenseService: expenseService}
}

func registerExpenseRoutes(companyGroup *gin.RouterGroup, expenseService portssvc.ExpenseSvcFacade) {
	h := newExpenseHandler(expenseService)

	expenses := companyGroup.Group("/expenses")
	{
		expenses.POST("", h.createExpense)
		expenses.GET("/:expense_id", h.getExpense)
		expenses.POST("/:expense_id/approve", h.approveExpense)
	}
}

func (h *expenseHandler) createExpense(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")

	var req dto.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for createExpense", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	expense, err := h.expenseService.CreateExpense(c.Request.Context(), companyID, req, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create expense")
		return
	}

	logger.Info("Expense created", slog.String("expense_id", expense.ExpenseID))
	c.JSON(http.StatusCreated, dto.ToExpenseResponse(expense))
}

func (h *expenseHandler) getExpense(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	expenseID := c.Param("expense_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	expense, err := h.expenseService.GetExpense(c.Request.Context(), companyID, expenseID, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve expense")
		return
	}

	c.JSON(http.StatusOK, dto.ToExpenseResponse(expense))
}

func (h *expenseHandler) approveExpense(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	expenseID := c.Param("expense_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	result, err := h.expenseService.ApproveExpense(c.Request.Context(), companyID, expenseID, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to approve expense")
		return
	}

	logger.Info("Expense approved",
		slog.String("expense_id", expenseID),
		slog.String("covered", result.Covered.String()),
		slog.String("residual", result.Residual.String()),
	)
	c.JSON(http.StatusOK, result)
}
