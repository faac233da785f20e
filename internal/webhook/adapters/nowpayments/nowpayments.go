package nowpayments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/streamgate/internal/webhook/adapters"
	"github.com/smallbiznis/streamgate/internal/webhook/domain"
)

const gateway = "nowpayments"

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
	return &Adapter{ipnSecret: secret}, nil
}

type Adapter struct {
	ipnSecret string
}

// Verify checks x-nowpayments-sig, an HMAC-SHA512 over the body. NOWPayments signs the
// body with keys sorted, so both the raw and the key-sorted form are accepted.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.ToLower(strings.TrimSpace(headers.Get("x-nowpayments-sig")))
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	candidates := [][]byte{payload}
	if sorted, err := sortedJSON(payload); err == nil && !bytes.Equal(sorted, payload) {
		candidates = append(candidates, sorted)
	}
	for _, body := range candidates {
		if hmac.Equal([]byte(signature), []byte(Sign(a.ipnSecret, body))) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

// Sign returns hex(HMAC-SHA512(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func sortedJSON(payload []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type ipn struct {
	PaymentID        json.RawMessage `json:"payment_id"`
	PaymentStatus    string          `json:"payment_status"`
	PriceAmount      json.RawMessage `json:"price_amount"`
	PriceCurrency    string          `json:"price_currency"`
	OrderID          string          `json:"order_id"`
	OrderDescription string          `json:"order_description"`
	CustomerEmail    string          `json:"customer_email"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var notification ipn
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	rawStatus := strings.ToLower(strings.TrimSpace(notification.PaymentStatus))
	var status domain.PaymentStatus
	switch rawStatus {
	case "finished":
		status = domain.PaymentStatusFinished
	case "partially_paid":
		status = domain.PaymentStatusPartial
	case "failed", "expired", "refunded":
		status = domain.PaymentStatusFailed
	case "":
		return nil, domain.ErrInvalidPayload
	default:
		// waiting, confirming, confirmed, sending
		return nil, domain.ErrEventIgnored
	}

	paymentID := strings.TrimSpace(notification.OrderID)
	if paymentID == "" {
		paymentID = adapters.StringFromRaw(notification.PaymentID)
	}
	if paymentID == "" {
		return nil, domain.ErrInvalidPayload
	}

	// order_description carries checkout details as a query string: plan=...&email=...&user_id=...
	details, _ := url.ParseQuery(strings.TrimSpace(notification.OrderDescription))
	email := strings.TrimSpace(notification.CustomerEmail)
	if email == "" {
		email = strings.TrimSpace(details.Get("email"))
	}

	return &domain.PaymentEvent{
		Gateway:       gateway,
		PaymentID:     paymentID,
		Status:        status,
		Amount:        adapters.DecimalFromRaw(notification.PriceAmount),
		Currency:      strings.ToUpper(strings.TrimSpace(notification.PriceCurrency)),
		CustomerEmail: email,
		Plan:          strings.TrimSpace(details.Get("plan")),
		UserID:        strings.TrimSpace(details.Get("user_id")),
		RawProvider:   rawStatus,
	}, nil
}
