package handler

import (
	"net/http"

	"webcollect/config"
	"webcollect/internal/domain"

	"github.com/gin-gonic/gin"
)

type GatewayHandler struct {
	cfg *config.Config
}

func NewGatewayHandler(cfg *config.Config) *GatewayHandler {
	return &GatewayHandler{cfg: cfg}
}

type paymentMethod struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Get describes the gateway for the storefront's checkout page. Secret keys are never included.
func (h *GatewayHandler) Get(c *gin.Context) {
	g := h.cfg.Gateway
	methods := make([]paymentMethod, 0, len(g.PaymentMethods))
	for _, code := range g.PaymentMethods {
		methods = append(methods, paymentMethod{Code: code, Label: domain.PaymentMethodLabels[code]})
	}
	creds := g.ActiveCredentials()
	c.JSON(http.StatusOK, gin.H{
		"id":              "securitybank_webcollect",
		"enabled":         g.Enabled,
		"title":           g.Title,
		"description":     g.Description,
		"test_mode":       g.TestMode,
		"publishable_key": creds.PublishableKey,
		"payment_methods": methods,
		"webhook_url":     h.cfg.WebhookURL(),
	})
}
