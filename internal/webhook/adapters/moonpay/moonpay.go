package moonpay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/streamgate/internal/webhook/adapters"
	"github.com/smallbiznis/streamgate/internal/webhook/domain"
)

const gateway = "moonpay"

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
	return &Adapter{webhookKey: secret, tolerance: cfg.Tolerance, now: now}, nil
}

type Adapter struct {
	webhookKey string
	tolerance  time.Duration
	now        func() time.Time
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Moonpay-Signature-V2"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}
	timestamp, signatures, err := adapters.ParseTimestampedSignature(sigHeader, "s")
	if err != nil {
		return err
	}
	if err := adapters.CheckTimestamp(timestamp, a.now(), a.tolerance); err != nil {
		return err
	}
	if !adapters.MatchAny(adapters.SignTimestamped(a.webhookKey, timestamp, payload), signatures) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type moonpayEvent struct {
	Type string      `json:"type"`
	Data transaction `json:"data"`
}

type transaction struct {
	ID                    string          `json:"id"`
	Status                string          `json:"status"`
	BaseCurrencyAmount    json.RawMessage `json:"baseCurrencyAmount"`
	BaseCurrency          *currency       `json:"baseCurrency"`
	ExternalTransactionID string          `json:"externalTransactionId"`
	ExternalCustomerID    string          `json:"externalCustomerId"`
	Email                 string          `json:"email"`
	FailureReason         string          `json:"failureReason"`
}

type currency struct {
	Code string `json:"code"`
}

// Parse maps transaction updates. MoonPay carries no plan, so the plan and
// usually the email come from the checkout draft keyed by externalTransactionId.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var event moonpayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.Data.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	rawStatus := strings.ToLower(strings.TrimSpace(event.Data.Status))
	var status domain.PaymentStatus
	switch rawStatus {
	case "completed":
		status = domain.PaymentStatusFinished
	case "failed":
		status = domain.PaymentStatusFailed
	default:
		return nil, domain.ErrEventIgnored
	}

	paymentID := strings.TrimSpace(event.Data.ExternalTransactionID)
	if paymentID == "" {
		paymentID = strings.TrimSpace(event.Data.ID)
	}
	code := ""
	if event.Data.BaseCurrency != nil {
		code = strings.ToUpper(strings.TrimSpace(event.Data.BaseCurrency.Code))
	}

	return &domain.PaymentEvent{
		Gateway:       gateway,
		PaymentID:     paymentID,
		Status:        status,
		Amount:        adapters.DecimalFromRaw(event.Data.BaseCurrencyAmount),
		Currency:      code,
		CustomerEmail: strings.TrimSpace(event.Data.Email),
		UserID:        strings.TrimSpace(event.Data.ExternalCustomerID),
		RawProvider:   strings.TrimSpace(event.Type) + ":" + rawStatus,
	}, nil
}
