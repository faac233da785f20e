package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/streamgate/internal/webhook/adapters"
	"github.com/smallbiznis/streamgate/internal/webhook/domain"
)

const gateway = "stripe"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Gateway() string {
	return gateway
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{webhookSecret: secret, tolerance: cfg.Tolerance, now: now}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}
	timestamp, signatures, err := adapters.ParseTimestampedSignature(sigHeader, "v1")
	if err != nil {
		return err
	}
	if err := adapters.CheckTimestamp(timestamp, a.now(), a.tolerance); err != nil {
		return err
	}
	if !adapters.MatchAny(adapters.SignTimestamped(a.webhookSecret, timestamp, payload), signatures) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	eventType := strings.TrimSpace(event.Type)
	switch eventType {
	case "checkout.session.completed":
		return a.parseSession(event, sessionPaidStatus)
	case "checkout.session.async_payment_succeeded":
		return a.parseSession(event, func(checkoutSession) (domain.PaymentStatus, bool) {
			return domain.PaymentStatusFinished, true
		})
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		return a.parseSession(event, func(checkoutSession) (domain.PaymentStatus, bool) {
			return domain.PaymentStatusFailed, true
		})
	case "payment_intent.succeeded":
		return a.parsePaymentIntent(event, domain.PaymentStatusFinished)
	case "payment_intent.payment_failed":
		return a.parsePaymentIntent(event, domain.PaymentStatusFailed)
	default:
		return nil, domain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type checkoutSession struct {
	ID                string            `json:"id"`
	PaymentIntent     json.RawMessage   `json:"payment_intent"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	CustomerEmail     string            `json:"customer_email"`
	CustomerDetails   *customerDetails  `json:"customer_details"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type customerDetails struct {
	Email string `json:"email"`
}

type paymentIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	ReceiptEmail   string            `json:"receipt_email"`
	Metadata       map[string]string `json:"metadata"`
}

// A completed session with a delayed payment method settles later through async_payment_succeeded.
func sessionPaidStatus(session checkoutSession) (domain.PaymentStatus, bool) {
	switch session.PaymentStatus {
	case "paid", "no_payment_required":
		return domain.PaymentStatusFinished, true
	}
	return "", false
}

func (a *Adapter) parseSession(event stripeEvent, status func(checkoutSession) (domain.PaymentStatus, bool)) (*domain.PaymentEvent, error) {
	var session checkoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}
	paymentStatus, ok := status(session)
	if !ok {
		return nil, domain.ErrEventIgnored
	}

	// Sessions and their payment intent must land on the same ledger key.
	// Stripe does not copy session metadata onto the intent, so metadata only
	// keys sessions that never created one.
	paymentID := firstNonEmpty(intentID(session.PaymentIntent), session.Metadata["payment_id"], session.ID)
	email := session.CustomerEmail
	if session.CustomerDetails != nil && strings.TrimSpace(session.CustomerDetails.Email) != "" {
		email = session.CustomerDetails.Email
	}

	return &domain.PaymentEvent{
		Gateway:       gateway,
		PaymentID:     paymentID,
		Status:        paymentStatus,
		Amount:        adapters.FromMinorUnits(session.AmountTotal, session.Currency),
		Currency:      strings.ToUpper(strings.TrimSpace(session.Currency)),
		CustomerEmail: firstNonEmpty(email, session.Metadata["email"]),
		Plan:          strings.TrimSpace(session.Metadata["plan"]),
		UserID:        firstNonEmpty(session.Metadata["user_id"], session.ClientReferenceID),
		RawProvider:   event.Type,
	}, nil
}

func (a *Adapter) parsePaymentIntent(event stripeEvent, status domain.PaymentStatus) (*domain.PaymentEvent, error) {
	var intent paymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	return &domain.PaymentEvent{
		Gateway:       gateway,
		PaymentID:     strings.TrimSpace(intent.ID),
		Status:        status,
		Amount:        adapters.FromMinorUnits(amount, intent.Currency),
		Currency:      strings.ToUpper(strings.TrimSpace(intent.Currency)),
		CustomerEmail: firstNonEmpty(intent.ReceiptEmail, intent.Metadata["email"]),
		Plan:          strings.TrimSpace(intent.Metadata["plan"]),
		UserID:        strings.TrimSpace(intent.Metadata["user_id"]),
		RawProvider:   event.Type,
	}, nil
}

// intentID accepts both the id string and an expanded payment intent object.
func intentID(raw json.RawMessage) string {
	if id := adapters.StringFromRaw(raw); id != "" && !strings.HasPrefix(id, "{") {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err != nil {
		return ""
	}
	return strings.TrimSpace(expanded.ID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
