package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"webcollect/internal/domain"
	"webcollect/internal/logging"
	"webcollect/internal/models"
	"webcollect/internal/repository"
)

var ErrMalformedWebhook = errors.New("malformed webhook payload")

// OrderStore is the narrow view of the storefront's orders the webhook needs.
type OrderStore interface {
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	MarkPaid(ctx context.Context, id uint, note string) (bool, error)
}

// Event is an inbound processor notification. Only the fields the state
// machine reads are extracted; everything else is ignored.
type Event struct {
	Type    string
	OrderID uint
}

// ParseEvent accepts any well-formed JSON document. Missing or oddly typed
// fields yield a zero Event field instead of an error, matching a lenient
// reading of data.metadata.order_id.
func ParseEvent(raw []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedWebhook)
	}
	evt := &Event{}
	obj, _ := doc.(map[string]any)
	evt.Type, _ = obj["type"].(string)
	data, _ := obj["data"].(map[string]any)
	meta, _ := data["metadata"].(map[string]any)
	evt.OrderID = orderRef(meta["order_id"])
	return evt, nil
}

// orderRef reads a positive integer id given as a JSON number or string.
func orderRef(v any) uint {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// WebhookService applies processor events to orders.
type WebhookService struct {
	orders             OrderStore
	logger             logging.Logger
	redeliverOnFailure bool
}

func NewWebhookService(orders OrderStore, logger logging.Logger, redeliverOnFailure bool) *WebhookService {
	return &WebhookService{orders: orders, logger: logger, redeliverOnFailure: redeliverOnFailure}
}

// HandleWebhook returns the HTTP status to answer the processor with: 400 when
// raw is not JSON, otherwise 200. With redeliverOnFailure set, a store failure
// that left a paid order pending answers 500 instead.
func (s *WebhookService) HandleWebhook(ctx context.Context, raw []byte) int {
	evt, err := ParseEvent(raw)
	if err != nil {
		return http.StatusBadRequest
	}
	if err := s.apply(ctx, evt); err != nil {
		s.logger.Error("Webhook error: "+err.Error(), map[string]any{"type": evt.Type, "order_id": evt.OrderID})
		if s.redeliverOnFailure {
			return http.StatusInternalServerError
		}
	}
	return http.StatusOK
}

func (s *WebhookService) apply(ctx context.Context, evt *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if evt.Type != domain.EventPaymentSucceeded {
		s.logger.Debug("Ignoring webhook event", map[string]any{"type": evt.Type})
		return nil
	}
	if evt.OrderID == 0 {
		s.logger.Info("payment_succeeded without order id", nil)
		return nil
	}
	order, err := s.orders.GetByID(ctx, evt.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("payment_succeeded for unknown order", map[string]any{"order_id": evt.OrderID})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order %d: %w", evt.OrderID, err)
	}
	if order.Status != domain.OrderStatusPending {
		s.logger.Info("Order not pending, skipping", map[string]any{"order_id": order.ID, "status": order.Status})
		return nil
	}
	applied, err := s.orders.MarkPaid(ctx, order.ID, domain.PaymentCompletedNote)
	if err != nil {
		return fmt.Errorf("mark order %d paid: %w", order.ID, err)
	}
	if !applied {
		s.logger.Info("Order completed by a concurrent delivery", map[string]any{"order_id": order.ID})
		return nil
	}
	s.logger.Info("Order marked paid", map[string]any{"order_id": order.ID})
	return nil
}
