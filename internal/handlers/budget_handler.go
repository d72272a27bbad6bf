package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"repaytrack/internal/contract"
	apperrors "repaytrack/internal/errors"
	"repaytrack/internal/models"
	"repaytrack/internal/storage"
)

// BudgetHandler handles budget and payment requests.
type BudgetHandler struct {
	store storage.Storer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(store storage.Storer) *BudgetHandler {
	return &BudgetHandler{store: store}
}

// Handlers maps contract route names to handler functions.
func (h *BudgetHandler) Handlers() map[string]gin.HandlerFunc {
	return map[string]gin.HandlerFunc{
		contract.ListBudgets:   h.ListBudgets,
		contract.GetBudget:     h.GetBudget,
		contract.CreateBudget:  h.CreateBudget,
		contract.DeleteBudget:  h.DeleteBudget,
		contract.TogglePayment: h.TogglePayment,
		contract.GetProgress:   h.GetProgress,
	}
}

// ListBudgets returns all budgets, oldest first.
// @Summary     List budgets
// @Tags        budgets
// @Produce     json
// @Success     200 {array}  models.Budget
// @Failure     500 {object} contract.InternalError
// @Router      /budgets [get]
func (h *BudgetHandler) ListBudgets(c *gin.Context) {
	budgets, err := h.store.ListBudgets(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, budgets)
}

// GetBudget returns one budget with its payments.
// @Summary     Get a budget with its payments
// @Tags        budgets
// @Produce     json
// @Param       id  path     int true "Budget ID"
// @Success     200 {object} models.BudgetWithPayments
// @Failure     404 {object} contract.NotFoundError
// @Failure     500 {object} contract.InternalError
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	budget, ok := h.lookup(c)
	if !ok {
		return
	}

	payments, err := h.store.ListPayments(c.Request.Context(), budget.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewBudgetWithPayments(*budget, payments))
}

// CreateBudget creates a budget.
// @Summary     Create a budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Param       request body     contract.CreateBudgetRequest true "Budget details"
// @Success     201     {object} models.Budget
// @Failure     400     {object} contract.ValidationError
// @Failure     500     {object} contract.InternalError
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	var req contract.CreateBudgetRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	input, err := req.ToNewBudget()
	if err != nil {
		respondWithError(c, apperrors.WithField(apperrors.ErrInvalidInput, "startDate", err.Error()))
		return
	}

	budget, err := h.store.CreateBudget(c.Request.Context(), input)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, budget)
}

// DeleteBudget deletes a budget and its payments.
// @Summary     Delete a budget and its payments
// @Tags        budgets
// @Param       id  path     int true "Budget ID"
// @Success     204
// @Failure     404 {object} contract.NotFoundError
// @Failure     500 {object} contract.InternalError
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	budget, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := h.store.DeleteBudget(c.Request.Context(), budget.ID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TogglePayment sets the paid flag of one installment.
// @Summary     Set the paid flag of an installment
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Param       id      path     int                           true "Budget ID"
// @Param       request body     contract.TogglePaymentRequest true "Installment and flag"
// @Success     200     {object} models.Payment
// @Failure     400     {object} contract.ValidationError
// @Failure     404     {object} contract.NotFoundError
// @Failure     500     {object} contract.InternalError
// @Router      /budgets/{id}/payments [post]
func (h *BudgetHandler) TogglePayment(c *gin.Context) {
	var req contract.TogglePaymentRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	budget, ok := h.lookup(c)
	if !ok {
		return
	}

	payment, err := h.store.TogglePayment(c.Request.Context(), budget.ID, *req.MonthIndex, *req.IsPaid)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// GetProgress returns the repayment summary and schedule of a budget.
// @Summary     Get repayment progress and schedule
// @Tags        budgets
// @Produce     json
// @Param       id  path     int true "Budget ID"
// @Success     200 {object} models.Progress
// @Failure     404 {object} contract.NotFoundError
// @Failure     500 {object} contract.InternalError
// @Router      /budgets/{id}/progress [get]
func (h *BudgetHandler) GetProgress(c *gin.Context) {
	budget, ok := h.lookup(c)
	if !ok {
		return
	}

	payments, err := h.store.ListPayments(c.Request.Context(), budget.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ComputeProgress(*budget, payments))
}

// lookup loads the budget named by the :id parameter. When it returns false
// the response has already been written.
func (h *BudgetHandler) lookup(c *gin.Context) (*models.Budget, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		respondWithError(c, apperrors.ErrBudgetNotFound)
		return nil, false
	}

	budget, err := h.store.GetBudget(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	if budget == nil {
		respondWithError(c, apperrors.ErrBudgetNotFound)
		return nil, false
	}
	return budget, true
}
