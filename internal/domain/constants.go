package domain

// Order statuses. Only pending → paid is driven by this service; the rest
// belong to the storefront.
const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusOnHold     = "on-hold"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusFailed     = "failed"
	OrderStatusProcessing = "processing"
)

// Checkout session record statuses.
const (
	PaymentStatusOpen      = "open"
	PaymentStatusCompleted = "completed"
)

// Webhook event types.
const (
	EventPaymentSucceeded = "payment_succeeded"
)

const (
	PaymentCompletedNote  = "Payment completed via Security Bank WebCollect"
	ShippingLineName      = "Shipping"
	ClientReferencePrefix = "wc-order-"
)

// PaymentMethodLabels lists the method codes a merchant can enable.
var PaymentMethodLabels = map[string]string{
	"card":      "Credit/Debit Cards",
	"bpi":       "BPI Online Banking",
	"gcash":     "GCash",
	"paymaya":   "PayMaya",
	"unionbank": "UnionBank Online",
}
