package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webcollect/config"
	"webcollect/internal/auth"
	"webcollect/internal/database"
	"webcollect/internal/domain"
	"webcollect/internal/logging"
	"webcollect/internal/middleware"
	"webcollect/internal/models"
	"webcollect/internal/repository"
	"webcollect/pkg/webcollect"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type processor struct {
	sessions  atomic.Int32
	customers atomic.Int32
	status    atomic.Int32
}

func (p *processor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s := int(p.status.Load()); s != 0 {
		w.WriteHeader(s)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API key provided"}}`))
		return
	}
	switch r.URL.Path {
	case "/v2/customers":
		n := p.customers.Add(1)
		_, _ = fmt.Fprintf(w, `{"id":"cus_%d"}`, n)
	case "/v2/sessions":
		n := p.sessions.Add(1)
		_, _ = fmt.Fprintf(w, `{"id":"sess_%d","url":"https://pay.example/sess_%d"}`, n, n)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fixture struct {
	engine *gin.Engine
	orders *repository.OrderRepository
	db     *gorm.DB
	proc   *processor
	cfg    *config.Config
}

func newConfig(processorURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "8099", Env: "test", PublicBaseURL: "https://pay-api.shop.example"},
		JWT:    config.JWTConfig{AccessSecret: "jwt-secret", AccessExpiry: time.Minute, Issuer: "storefront"},
		Store:  config.StoreConfig{BaseURL: "https://shop.example"},
		Gateway: config.GatewayConfig{
			Enabled:            true,
			Title:              "Credit/Debit Card & E-Wallets",
			TestMode:           true,
			TestPublishableKey: "pk_test_visible",
			TestSecretKey:      "sk_test_hidden",
			LiveSecretKey:      "sk_live_hidden",
			PaymentMethods:     []string{"card", "gcash"},
			BaseURL:            processorURL,
			Timeout:            2 * time.Second,
		},
	}
}

func newFixture(t *testing.T, tweak func(*config.Config)) *fixture {
	t.Helper()
	proc := &processor{}
	srv := httptest.NewServer(proc)
	t.Cleanup(srv.Close)

	cfg := newConfig(srv.URL)
	if tweak != nil {
		tweak(cfg)
	}

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	appLog := logging.New("test", logging.LevelError)
	appLog.SetOutput(log.New(io.Discard, "", 0))
	client := webcollect.NewClient(cfg.Gateway.BaseURL, webcollect.WithTimeout(cfg.Gateway.Timeout))

	engine, limiter := Setup(cfg, db, client, appLog)
	t.Cleanup(limiter.Close)
	return &fixture{engine: engine, orders: repository.NewOrderRepository(db), db: db, proc: proc, cfg: cfg}
}

func (f *fixture) seed(t *testing.T, userID *uint, status string) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:           userID,
		Status:           status,
		BillingFirstName: "Ana",
		BillingLastName:  "Cruz",
		BillingEmail:     "ana@example.ph",
		Items: []models.OrderItem{
			{Name: "Barong", UnitPrice: decimal.RequireFromString("150.00"), Quantity: 1},
			{Name: "Pili nuts", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 1},
		},
	}
	require.NoError(t, f.db.Create(o).Error)
	return o
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) bearer(t *testing.T, userID uint) map[string]string {
	t.Helper()
	token, err := auth.GenerateAccessToken(&f.cfg.JWT, userID, "ana@example.ph")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (f *fixture) status(t *testing.T, id uint) string {
	t.Helper()
	o, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func uintPtr(v uint) *uint { return &v }

func TestGatewayInfo(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/gateway", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hidden")

	body := decode(t, w)
	assert.Equal(t, "securitybank_webcollect", body["id"])
	assert.Equal(t, "pk_test_visible", body["publishable_key"])
	assert.Equal(t, true, body["test_mode"])
	assert.Equal(t, "https://pay-api.shop.example/api/v1/webhooks/securitybank_webcollect_webhook", body["webhook_url"])
	assert.Equal(t, []any{
		map[string]any{"code": "card", "label": "Credit/Debit Cards"},
		map[string]any{"code": "gcash", "label": "GCash"},
	}, body["payment_methods"])
}

func TestCheckoutGuestOrder(t *testing.T) {
	f := newFixture(t, nil)
	o := f.seed(t, nil, domain.OrderStatusPending)

	w := f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/checkout", o.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "success", body["result"])
	assert.Equal(t, "https://pay.example/sess_1", body["redirect"])
	assert.Equal(t, "sess_1", body["session_id"])
	assert.Zero(t, f.proc.customers.Load())
	assert.Equal(t, domain.OrderStatusPending, f.status(t, o.ID))

	payments, err := repository.NewPaymentRepository(f.db).ListByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "sess_1", payments[0].SessionID)
	assert.Equal(t, int64(20000), payments[0].AmountCents)
	assert.Equal(t, domain.PaymentStatusOpen, payments[0].Status)
}

func TestCheckoutSignedInOrderCreatesCustomerOnce(t *testing.T) {
	f := newFixture(t, nil)
	o := f.seed(t, uintPtr(7), domain.OrderStatusPending)
	path := fmt.Sprintf("/api/v1/orders/%d/checkout", o.ID)

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodPost, path, "", f.bearer(t, 7))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, int32(1), f.proc.customers.Load())
	assert.Equal(t, int32(2), f.proc.sessions.Load())

	remote, err := repository.NewCustomerRepository(f.db).GetRemoteID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", remote)
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t, nil)
	owned := f.seed(t, uintPtr(7), domain.OrderStatusPending)
	paid := f.seed(t, nil, domain.OrderStatusPaid)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"bad id", "/api/v1/orders/abc/checkout", nil, http.StatusBadRequest},
		{"unknown order", "/api/v1/orders/9999/checkout", nil, http.StatusNotFound},
		{"guest paying user order", fmt.Sprintf("/api/v1/orders/%d/checkout", owned.ID), nil, http.StatusNotFound},
		{"other user", fmt.Sprintf("/api/v1/orders/%d/checkout", owned.ID), f.bearer(t, 8), http.StatusNotFound},
		{"bad token", fmt.Sprintf("/api/v1/orders/%d/checkout", owned.ID), map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"already paid", fmt.Sprintf("/api/v1/orders/%d/checkout", paid.ID), nil, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, tt.path, "", tt.headers)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
	assert.Zero(t, f.proc.sessions.Load())
}

func TestCheckoutFailures(t *testing.T) {
	t.Run("processor error", func(t *testing.T) {
		f := newFixture(t, nil)
		f.proc.status.Store(http.StatusUnauthorized)
		o := f.seed(t, nil, domain.OrderStatusPending)

		w := f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/checkout", o.ID), "", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, map[string]any{"result": "failure", "error": "Invalid API key provided"}, decode(t, w))
	})
	t.Run("below minimum", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.seed(t, nil, domain.OrderStatusPending)
		require.NoError(t, f.db.Model(&models.OrderItem{}).Where("order_id = ?", o.ID).Update("unit_price", "0.50").Error)

		w := f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/checkout", o.ID), "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["error"], "minimum amount per item")
		assert.Zero(t, f.proc.sessions.Load())
	})
	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.Gateway.Enabled = false })
		o := f.seed(t, nil, domain.OrderStatusPending)

		w := f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/checkout", o.ID), "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Zero(t, f.proc.sessions.Load())
	})
}

func paidPayload(id uint) string {
	return fmt.Sprintf(`{"type":"payment_succeeded","data":{"metadata":{"order_id":"%d"}}}`, id)
}

func TestWebhookRoutes(t *testing.T) {
	t.Run("named route", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.seed(t, nil, domain.OrderStatusPending)

		w := f.do(http.MethodPost, "/api/v1/webhooks/securitybank_webcollect_webhook", paidPayload(o.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"received": true}, decode(t, w))
		assert.Equal(t, domain.OrderStatusPaid, f.status(t, o.ID))

		notes, err := f.orders.Notes(context.Background(), o.ID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, domain.PaymentCompletedNote, notes[0].Note)

		w = f.do(http.MethodPost, "/api/v1/webhooks/securitybank_webcollect_webhook", paidPayload(o.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		notes, err = f.orders.Notes(context.Background(), o.ID)
		require.NoError(t, err)
		assert.Len(t, notes, 1)
	})
	t.Run("legacy query route", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.seed(t, nil, domain.OrderStatusPending)

		w := f.do(http.MethodPost, "/?wc-api=securitybank_webcollect_webhook", paidPayload(o.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.OrderStatusPaid, f.status(t, o.ID))
	})
	t.Run("legacy route wrong token", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.seed(t, nil, domain.OrderStatusPending)

		w := f.do(http.MethodPost, "/?wc-api=something_else", paidPayload(o.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, domain.OrderStatusPending, f.status(t, o.ID))
	})
	t.Run("malformed", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.do(http.MethodPost, "/api/v1/webhooks/securitybank_webcollect_webhook", `{"type":`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("trailing brace", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.seed(t, nil, domain.OrderStatusPending)

		w := f.do(http.MethodPost, "/api/v1/webhooks/securitybank_webcollect_webhook", paidPayload(o.ID)+"}", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.OrderStatusPending, f.status(t, o.ID))
	})
	t.Run("oversized body", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.seed(t, nil, domain.OrderStatusPending)
		body := fmt.Sprintf(`{"type":"payment_succeeded","pad":"%s","data":{"metadata":{"order_id":"%d"}}}`,
			strings.Repeat("x", middleware.MaxWebhookBody), o.ID)

		w := f.do(http.MethodPost, "/api/v1/webhooks/securitybank_webcollect_webhook", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.OrderStatusPending, f.status(t, o.ID))
	})
	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.do(http.MethodPost, "/api/v1/webhooks/securitybank_webcollect_webhook", paidPayload(4242), nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestWebhookSignature(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Webhook.Secret = "whsec" })
	o := f.seed(t, nil, domain.OrderStatusPending)
	payload := paidPayload(o.ID)
	path := "/api/v1/webhooks/securitybank_webcollect_webhook"

	w := f.do(http.MethodPost, path, payload, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, path, payload, map[string]string{middleware.SignatureHeader: "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domain.OrderStatusPending, f.status(t, o.ID))

	// Signed over a reformatted copy; canonical form makes them equal.
	sig, err := middleware.SignWebhookPayload("whsec", []byte(fmt.Sprintf(`{ "data": {"metadata": {"order_id": "%d"}}, "type": "payment_succeeded" }`, o.ID)))
	require.NoError(t, err)
	w = f.do(http.MethodPost, path, payload, map[string]string{middleware.SignatureHeader: sig})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OrderStatusPaid, f.status(t, o.ID))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Server.RateLimit = 2
		c.Server.RateWindow = time.Minute
	})
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/gateway", "", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/v1/gateway", "", nil).Code)
}

func TestRateLimitSkipsWebhooks(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Server.RateLimit = 3
		c.Server.RateWindow = time.Minute
	})
	paths := []string{
		"/api/v1/webhooks/securitybank_webcollect_webhook",
		"/?wc-api=securitybank_webcollect_webhook",
	}
	var orders []*models.Order
	for i := 0; i < 5; i++ {
		o := f.seed(t, nil, domain.OrderStatusPending)
		orders = append(orders, o)
		w := f.do(http.MethodPost, paths[i%len(paths)], paidPayload(o.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code, "delivery %d", i)
	}
	for _, o := range orders {
		assert.Equal(t, domain.OrderStatusPaid, f.status(t, o.ID))
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/gateway", "", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/v1/gateway", "", nil).Code)
}

func TestPaymentStatus(t *testing.T) {
	f := newFixture(t, nil)
	o := f.seed(t, nil, domain.OrderStatusPending)
	statusPath := fmt.Sprintf("/api/v1/orders/%d/payment", o.ID)

	w := f.do(http.MethodGet, statusPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, domain.OrderStatusPending, body["status"])
	assert.Nil(t, body["paid_at"])
	assert.Empty(t, body["sessions"])
	assert.Empty(t, body["notes"])

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/checkout", o.ID), "", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/webhooks/securitybank_webcollect_webhook", paidPayload(o.ID), nil).Code)

	w = f.do(http.MethodGet, statusPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, float64(o.ID), body["order_id"])
	assert.Equal(t, domain.OrderStatusPaid, body["status"])
	assert.NotNil(t, body["paid_at"])

	sessions, _ := body["sessions"].([]any)
	require.Len(t, sessions, 1)
	session, _ := sessions[0].(map[string]any)
	assert.Equal(t, "sess_1", session["session_id"])
	assert.Equal(t, domain.PaymentStatusCompleted, session["status"])
	assert.Equal(t, float64(20000), session["amount_cents"])

	notes, _ := body["notes"].([]any)
	require.Len(t, notes, 1)
	note, _ := notes[0].(map[string]any)
	assert.Equal(t, domain.PaymentCompletedNote, note["note"])
}

func TestPaymentStatusAccess(t *testing.T) {
	f := newFixture(t, nil)
	owned := f.seed(t, uintPtr(7), domain.OrderStatusPending)
	path := fmt.Sprintf("/api/v1/orders/%d/payment", owned.ID)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"owner", path, f.bearer(t, 7), http.StatusOK},
		{"guest", path, nil, http.StatusNotFound},
		{"other user", path, f.bearer(t, 8), http.StatusNotFound},
		{"unknown order", "/api/v1/orders/9999/payment", nil, http.StatusNotFound},
		{"bad id", "/api/v1/orders/0/payment", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, tt.path, "", tt.headers)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
