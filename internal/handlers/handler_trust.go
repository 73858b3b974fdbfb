package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/dto"
	"github.com/lexpraxis/legal_practice_app/internal/middleware"
)

// trustHandler handles trust sub-ledger and advance HTTP requests.
type trustHandler struct {
	trustService portssvc.TrustSvcFacade
}

func newTrustHandler(trustService portssvc.TrustSvcFacade) *trustHandler {
	return &trustHandler{trustService: trustService}
}

func registerTrustRoutes(companyGroup *gin.RouterGroup, trustService portssvc.TrustSvcFacade) {
	h := newTrustHandler(trustService)

	companyGroup.POST("/advances", h.addAdvance)

	trust := companyGroup.Group("/trust-accounts")
	{
		trust.POST("/credit", h.credit)
		trust.POST("/debit", h.debit)
		trust.GET("/:trust_account_id/balance", h.balance)
	}
}

func (h *trustHandler) addAdvance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")

	var req dto.AddAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for addAdvance", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	advance, err := h.trustService.AddAdvance(c.Request.Context(), companyID, req, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to record advance")
		return
	}

	logger.Info("Advance recorded",
		slog.String("advance_id", advance.AdvanceID),
		slog.String("project_id", advance.ProjectID),
	)
	c.JSON(http.StatusCreated, dto.ToAdvanceResponse(advance))
}

func (h *trustHandler) credit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")

	var req dto.TrustAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for trust credit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	account, err := h.trustService.Credit(c.Request.Context(), companyID, req, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to credit trust account")
		return
	}

	c.JSON(http.StatusOK, dto.ToTrustAccountResponse(account))
}

func (h *trustHandler) debit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")

	var req dto.TrustAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for trust debit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	account, err := h.trustService.Debit(c.Request.Context(), companyID, req, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to debit trust account")
		return
	}

	c.JSON(http.StatusOK, dto.ToTrustAccountResponse(account))
}

func (h *trustHandler) balance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	companyID := c.Param("company_id")
	trustAccountID := c.Param("trust_account_id")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	balance, err := h.trustService.Balance(c.Request.Context(), companyID, trustAccountID, userID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve trust balance")
		return
	}

	c.JSON(http.StatusOK, balance)
}
