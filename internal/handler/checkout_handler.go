package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"webcollect/internal/domain"
	"webcollect/internal/logging"
	"webcollect/internal/middleware"
	"webcollect/internal/models"
	"webcollect/internal/repository"
	"webcollect/internal/service"
	"webcollect/pkg/webcollect"

	"github.com/gin-gonic/gin"
)

type OrderReader interface {
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	Notes(ctx context.Context, orderID uint) ([]models.OrderNote, error)
}

type PaymentLister interface {
	ListByOrder(ctx context.Context, orderID uint) ([]models.Payment, error)
}

type CheckoutHandler struct {
	orders   OrderReader
	payments PaymentLister
	checkout *service.CheckoutService
	logger   logging.Logger
}

func NewCheckoutHandler(orders OrderReader, payments PaymentLister, checkout *service.CheckoutService, logger logging.Logger) *CheckoutHandler {
	return &CheckoutHandler{orders: orders, payments: payments, checkout: checkout, logger: logger}
}

// loadOrder resolves :id to an order the caller may see. Signed-in shoppers
// see their own orders, guests only guest orders; anything else is a 404.
func (h *CheckoutHandler) loadOrder(c *gin.Context) (*models.Order, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return nil, false
	}
	order, err := h.orders.GetByID(c.Request.Context(), uint(id))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return nil, false
	}
	if err != nil {
		h.logger.Error("Order lookup failed: "+err.Error(), map[string]any{"order_id": id})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order lookup failed"})
		return nil, false
	}
	if !ownsOrder(middleware.GetUserID(c), order) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return nil, false
	}
	return order, true
}

// Create starts a hosted checkout for a pending order and returns the redirect URL.
func (h *CheckoutHandler) Create(c *gin.Context) {
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if order.Status != domain.OrderStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "order is not awaiting payment"})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), order)
	if err != nil {
		status, msg := checkoutError(err)
		c.JSON(status, gin.H{"result": "failure", "error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":     "success",
		"redirect":   result.URL,
		"session_id": result.ID,
	})
}

// Status reports the order's payment state: its status, the checkout sessions
// created for it and the notes left by completed payments. The storefront's
// order-received page polls it after the shopper returns.
func (h *CheckoutHandler) Status(c *gin.Context) {
	order, ok := h.loadOrder(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sessions, err := h.payments.ListByOrder(ctx, order.ID)
	if err != nil {
		h.logger.Error("Listing sessions failed: "+err.Error(), map[string]any{"order_id": order.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment lookup failed"})
		return
	}
	notes, err := h.orders.Notes(ctx, order.ID)
	if err != nil {
		h.logger.Error("Listing notes failed: "+err.Error(), map[string]any{"order_id": order.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"status":   order.Status,
		"paid_at":  order.PaidAt,
		"sessions": sessions,
		"notes":    notes,
	})
}

func ownsOrder(userID uint, order *models.Order) bool {
	if order.UserID == nil {
		return true
	}
	return *order.UserID == userID
}

// checkoutError maps a checkout failure to a status and a shopper-facing message.
// Network details stay in the logs.
func checkoutError(err error) (int, string) {
	var (
		ve *webcollect.ValidationError
		ae *webcollect.APIError
		ne *webcollect.NetworkError
	)
	switch {
	case errors.Is(err, service.ErrGatewayDisabled):
		return http.StatusServiceUnavailable, "this payment method is currently unavailable"
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &ae):
		return http.StatusBadGateway, ae.Message
	case errors.As(err, &ne):
		return http.StatusBadGateway, "payment gateway unavailable, please try again"
	default:
		return http.StatusBadGateway, "Payment gateway error: Could not create checkout session"
	}
}
