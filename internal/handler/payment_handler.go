package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type paymentService interface {
	Create(ctx context.Context, studentID string, req dto.CreatePaymentRequest) (*models.Payment, error)
	List(ctx context.Context, actor service.Actor, query dto.PaymentQuery) ([]models.PaymentDetail, error)
	Approve(ctx context.Context, adminID, id string) (*models.Payment, error)
	Reject(ctx context.Context, adminID, id string) (*models.Payment, error)
}

// PaymentHandler exposes student payments.
type PaymentHandler struct {
	payments paymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// @Summary Report a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.CreatePaymentRequest true "Payment"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreatePaymentRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}
	payment, err := h.payments.Create(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// List godoc
// @Summary List payments
// @Description Students see their own payments.
// @Tags Payments
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.PaymentQuery
	if !bindQuery(c, &query) {
		return
	}
	payments, err := h.payments.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Approve godoc
// @Summary Approve payment
// @Tags Payments
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/approve [post]
func (h *PaymentHandler) Approve(c *gin.Context) {
	h.review(c, h.payments.Approve)
}

// Reject godoc
// @Summary Reject payment
// @Tags Payments
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/reject [post]
func (h *PaymentHandler) Reject(c *gin.Context) {
	h.review(c, h.payments.Reject)
}

func (h *PaymentHandler) review(c *gin.Context, decide func(ctx context.Context, adminID, id string) (*models.Payment, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payment, err := decide(c.Request.Context(), actor.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}
