package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"webcollect/config"
	"webcollect/internal/domain"
	"webcollect/internal/logging"
	"webcollect/internal/models"
	"webcollect/pkg/webcollect"
)

var ErrGatewayDisabled = errors.New("security bank webcollect is disabled")

type SessionCreator interface {
	CreateSession(ctx context.Context, creds webcollect.Credentials, req webcollect.SessionRequest) (*webcollect.SessionResult, error)
}

// CustomerResolver is satisfied by *CustomerService.
type CustomerResolver interface {
	ResolveCustomer(ctx context.Context, userID uint, email, name string, creds webcollect.Credentials) (string, bool)
}

// PaymentRecorder keeps a record of each created session.
type PaymentRecorder interface {
	Create(ctx context.Context, p *models.Payment) error
}

// CheckoutService turns an order into a hosted checkout session.
type CheckoutService struct {
	gateway   SessionCreator
	customers CustomerResolver
	payments  PaymentRecorder
	settings  config.GatewayConfig
	storeURL  string
	logger    logging.Logger
}

// NewCheckoutService builds the service. payments may be nil.
func NewCheckoutService(gateway SessionCreator, customers CustomerResolver, payments PaymentRecorder, cfg *config.Config, logger logging.Logger) *CheckoutService {
	return &CheckoutService{
		gateway:   gateway,
		customers: customers,
		payments:  payments,
		settings:  cfg.Gateway,
		storeURL:  cfg.Store.BaseURL,
		logger:    logger,
	}
}

// Checkout creates a session with the configured credentials and payment methods.
func (s *CheckoutService) Checkout(ctx context.Context, order *models.Order) (*webcollect.SessionResult, error) {
	if !s.settings.Enabled {
		return nil, ErrGatewayDisabled
	}
	return s.CreateCheckoutSession(ctx, order, s.settings.ActiveCredentials(), s.settings.PaymentMethods)
}

// CreateCheckoutSession resolves the customer, builds and validates the session
// request, and sends it. Validation failures return before any session call.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, order *models.Order, creds webcollect.Credentials, methods []string) (*webcollect.SessionResult, error) {
	var customerID string
	if order.UserID != nil {
		if id, ok := s.customers.ResolveCustomer(ctx, *order.UserID, order.BillingEmail, order.BillingFullName(), creds); ok {
			customerID = id
		} else {
			s.logger.Info("Proceeding without customer id", map[string]any{"order_id": order.ID})
		}
	}

	req := BuildSessionRequest(order, methods, s.storeURL, customerID)
	if err := req.Validate(); err != nil {
		s.logger.Error("Session request invalid: "+err.Error(), map[string]any{"order_id": order.ID})
		return nil, err
	}
	result, err := s.gateway.CreateSession(ctx, creds, req)
	if err != nil {
		s.logger.Error("Checkout session failed: "+err.Error(), map[string]any{"order_id": order.ID})
		return nil, err
	}
	s.logger.Info("Checkout session created", map[string]any{"order_id": order.ID, "session_id": result.ID})
	s.record(ctx, order.ID, creds.Mode, req, result)
	return result, nil
}

// record stores the session. A failure is logged only; the shopper still gets
// the redirect.
func (s *CheckoutService) record(ctx context.Context, orderID uint, mode webcollect.Mode, req webcollect.SessionRequest, result *webcollect.SessionResult) {
	if s.payments == nil {
		return
	}
	p := &models.Payment{
		OrderID:     orderID,
		SessionID:   result.ID,
		AmountCents: SessionTotal(req),
		Currency:    req.Currency,
		Mode:        string(mode),
		Status:      domain.PaymentStatusOpen,
		CustomerID:  req.Customer,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		s.logger.Error("Failed to record session: "+err.Error(), map[string]any{"order_id": orderID, "session_id": result.ID})
	}
}

// SessionTotal is the sum of amount × quantity over the request's line items.
func SessionTotal(req webcollect.SessionRequest) int64 {
	var total int64
	for _, it := range req.LineItems {
		total += it.Amount * int64(it.Quantity)
	}
	return total
}

// BuildSessionRequest maps an order onto a session request without validating it.
func BuildSessionRequest(order *models.Order, methods []string, storeURL, customerID string) webcollect.SessionRequest {
	items := make([]webcollect.LineItem, 0, len(order.Items)+1)
	for _, it := range order.Items {
		items = append(items, webcollect.LineItem{
			Name:     it.Name,
			Amount:   ToMinorUnits(it.UnitPrice),
			Quantity: it.Quantity,
		})
	}
	if order.ShippingTotal.IsPositive() {
		items = append(items, webcollect.LineItem{
			Name:     domain.ShippingLineName,
			Amount:   ToMinorUnits(order.ShippingTotal),
			Quantity: 1,
		})
	}
	return webcollect.SessionRequest{
		Currency:              webcollect.CurrencyPHP,
		PaymentMethodTypes:    append([]string(nil), methods...),
		LineItems:             items,
		PhoneNumberCollection: true,
		Mode:                  webcollect.ModePayment,
		SuccessURL:            order.ReturnURL(storeURL),
		CancelURL:             order.CancelURL(storeURL),
		ClientReferenceID:     fmt.Sprintf("%s%d", domain.ClientReferencePrefix, order.ID),
		Customer:              customerID,
		Metadata: map[string]any{
			"order_id":       order.ID,
			"customer_email": order.BillingEmail,
			"customer_name":  order.BillingFullName(),
		},
	}
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts pesos to centavos, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
