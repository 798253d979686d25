package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/models"
	"github.com/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
)

const requestDateLayout = "2006-01-02"

type saveCostIngredient struct {
	IngredientId int             `json:"ingredient_id" validate:"required,gt=0"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

type saveCostRequest struct {
	ProductId   int                  `json:"product_id" validate:"required,gt=0"`
	Servings    int                  `json:"servings" validate:"required,gt=0"`
	Ingredients []saveCostIngredient `json:"ingredients" validate:"required,min=1,dive"`
}

type costLineResponse struct {
	IngredientId int    `json:"ingredient_id"`
	Quantity     string `json:"quantity"`
	UnitCost     string `json:"unit_cost"`
	LineTotal    string `json:"line_total"`
	Percentage   string `json:"percentage"`
}

type productCostResponse struct {
	Success        bool               `json:"success"`
	ProductId      int                `json:"product_id"`
	Servings       int                `json:"servings"`
	TotalCost      string             `json:"total_cost"`
	CostPerServing string             `json:"cost_per_serving"`
	Lines          []costLineResponse `json:"lines"`
}

type paymentTargetRequest struct {
	ObligationKind models.ObligationKind `json:"obligation_kind" validate:"required"`
	ObligationId   int                   `json:"obligation_id" validate:"required,gt=0"`
	AppliedAmount  decimal.Decimal       `json:"applied_amount"`
}

type registerPaymentRequest struct {
	Amount         decimal.Decimal        `json:"amount"`
	Method         models.PaymentMethod   `json:"method" validate:"required"`
	Date           string                 `json:"date"`
	Notes          string                 `json:"notes" validate:"max=1000"`
	Targets        []paymentTargetRequest `json:"targets" validate:"required,min=1,dive"`
	Strict         bool                   `json:"strict"`
	IdempotencyKey string                 `json:"idempotency_key" validate:"max=100"`
}

type reversePaymentRequest struct {
	Date  string `json:"date"`
	Notes string `json:"notes" validate:"max=1000"`
}

type obligationResponse struct {
	ID            int    `json:"id"`
	Kind          string `json:"kind"`
	Reference     string `json:"reference,omitempty"`
	FinalAmount   string `json:"final_amount"`
	AppliedAmount string `json:"applied_amount"`
	Outstanding   string `json:"outstanding"`
	Status        string `json:"status"`
}

type paymentResponse struct {
	Success            bool                 `json:"success"`
	PaymentId          int                  `json:"payment_id"`
	ReversalOfId       *int                 `json:"reversal_of_id,omitempty"`
	UpdatedObligations []obligationResponse `json:"updated_obligations"`
}

type errorResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	ErrorKind models.ErrorKind `json:"error_kind"`
}

func toProductCostResponse(pc *models.ProductCost) productCostResponse {
	lines := make([]costLineResponse, len(pc.Lines))
	for i, line := range pc.Lines {
		lines[i] = costLineResponse{
			IngredientId: line.IngredientId,
			Quantity:     utils.FormatQuantity(line.Quantity),
			UnitCost:     utils.FormatQuantity(line.UnitCost),
			LineTotal:    utils.FormatCurrency(line.LineTotal),
			Percentage:   utils.FormatPercentage(line.Percentage),
		}
	}
	return productCostResponse{
		Success:        true,
		ProductId:      pc.ProductId,
		Servings:       pc.Servings,
		TotalCost:      utils.FormatCurrency(pc.TotalCost),
		CostPerServing: utils.FormatCurrency(pc.CostPerServing),
		Lines:          lines,
	}
}

func toObligationResponse(o *models.Obligation) obligationResponse {
	return obligationResponse{
		ID:            o.ID,
		Kind:          string(o.Kind),
		Reference:     o.Reference,
		FinalAmount:   utils.FormatCurrency(o.FinalAmount),
		AppliedAmount: utils.FormatCurrency(o.AppliedAmount),
		Outstanding:   utils.FormatCurrency(o.OutstandingBalance()),
		Status:        string(o.Status),
	}
}

func toPaymentResponse(p *models.Payment, obligations []*models.Obligation) paymentResponse {
	updated := make([]obligationResponse, len(obligations))
	for i, o := range obligations {
		updated[i] = toObligationResponse(o)
	}
	return paymentResponse{
		Success:            true,
		PaymentId:          p.ID,
		ReversalOfId:       p.ReversalOfId,
		UpdatedObligations: updated,
	}
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindOverAllocation:
		return http.StatusUnprocessableEntity
	case models.ErrorKindStorageConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the failure envelope. Internal errors do
// not leak storage details to the caller.
func respondError(c *gin.Context, funcName string, data any, err error) {
	kind := models.KindOf(err)
	config.LogError(config.GetLogger(), "Handlers", funcName, string(kind), data, err)

	message := err.Error()
	if kind == models.ErrorKindInternal {
		message = "internal error"
	}
	c.JSON(statusForKind(kind), errorResponse{Success: false, Message: message, ErrorKind: kind})
}

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
}

// bindRequest decodes and validates the JSON body into req.
func bindRequest(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return invalidRequest(err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: failed validation %v", models.ErrInvalidInput, utils.ProcessValidationErrors(err))
	}
	return nil
}

func parseRequestDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(requestDateLayout, raw)
	if err != nil {
		return time.Time{}, invalidRequest(errors.New("date must be YYYY-MM-DD"))
	}
	return date, nil
}

func pathId(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, invalidRequest(errors.New(name + " must be a positive integer"))
	}
	return id, nil
}

func saveProductCostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req saveCostRequest
		if err := bindRequest(c, &req); err != nil {
			respondError(c, "saveProductCostHandler", nil, err)
			return
		}

		usages := make([]models.IngredientUsage, len(req.Ingredients))
		for i, ing := range req.Ingredients {
			usages[i] = models.IngredientUsage{
				IngredientId: ing.IngredientId,
				Quantity:     ing.Quantity,
				UnitCost:     ing.UnitCost,
			}
		}
		productCost, err := models.SaveProductCost(c.Request.Context(), &models.NewProductCost{
			ProductId:   req.ProductId,
			Servings:    req.Servings,
			Ingredients: usages,
		})
		if err != nil {
			respondError(c, "saveProductCostHandler", req.ProductId, err)
			return
		}
		c.JSON(http.StatusOK, toProductCostResponse(productCost))
	}
}

func getProductCostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, err := pathId(c, "product_id")
		if err != nil {
			respondError(c, "getProductCostHandler", nil, err)
			return
		}
		productCost, err := models.GetProductCost(c.Request.Context(), productId)
		if err != nil {
			respondError(c, "getProductCostHandler", productId, err)
			return
		}
		c.JSON(http.StatusOK, toProductCostResponse(productCost))
	}
}

func registerPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerPaymentRequest
		if err := bindRequest(c, &req); err != nil {
			respondError(c, "registerPaymentHandler", nil, err)
			return
		}
		date, err := parseRequestDate(req.Date)
		if err != nil {
			respondError(c, "registerPaymentHandler", req.Date, err)
			return
		}

		targets := make([]models.NewAllocationTarget, len(req.Targets))
		for i, t := range req.Targets {
			targets[i] = models.NewAllocationTarget{
				ObligationKind: t.ObligationKind,
				ObligationId:   t.ObligationId,
				AppliedAmount:  t.AppliedAmount,
			}
		}
		payment, obligations, err := models.RegisterPayment(c.Request.Context(), &models.NewPayment{
			Amount:         req.Amount,
			Method:         req.Method,
			PaymentDate:    date,
			Notes:          req.Notes,
			Targets:        targets,
			Strict:         req.Strict,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			respondError(c, "registerPaymentHandler", req, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(payment, obligations))
	}
}

func reversePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentId, err := pathId(c, "id")
		if err != nil {
			respondError(c, "reversePaymentHandler", nil, err)
			return
		}
		var req reversePaymentRequest
		if c.Request.ContentLength != 0 {
			if err := bindRequest(c, &req); err != nil {
				respondError(c, "reversePaymentHandler", paymentId, err)
				return
			}
		}
		date, err := parseRequestDate(req.Date)
		if err != nil {
			respondError(c, "reversePaymentHandler", req.Date, err)
			return
		}

		reversal, obligations, err := models.ReversePayment(c.Request.Context(), paymentId, &models.NewPaymentReversal{
			PaymentDate: date,
			Notes:       req.Notes,
		})
		if err != nil {
			respondError(c, "reversePaymentHandler", paymentId, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(reversal, obligations))
	}
}

func getObligationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, "getObligationHandler", nil, err)
			return
		}
		obligation, err := models.GetObligation(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getObligationHandler", id, err)
			return
		}
		c.JSON(http.StatusOK, toObligationResponse(obligation))
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorResponse{Success: false, Message: "route not found", ErrorKind: models.ErrorKindNotFound})
}
