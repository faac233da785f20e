// Package domain normalizes payment gateway notifications into one event shape.
package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusFinished PaymentStatus = "finished"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusPartial  PaymentStatus = "partial"
)

// PaymentEvent is the gateway-neutral view of a verified notification.
type PaymentEvent struct {
	Gateway       string
	PaymentID     string
	Status        PaymentStatus
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	Plan          string
	UserID        string
	// RawProvider is the gateway's own event type or status.
	RawProvider string
}

// Ack reasons.
const (
	ReasonProvisioned      = "provisioned"
	ReasonAlreadyCompleted = "already_completed"
	ReasonBusy             = "busy"
	ReasonAwaitingRetry    = "awaiting_retry"
	ReasonIgnored          = "ignored"
	ReasonAbandoned        = "abandoned"
	ReasonPartialPayment   = "partial_payment"
)

type Ack struct {
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason"`
	AutomationID string `json:"automation_id,omitempty"`
	PaymentID    string `json:"payment_id,omitempty"`
}

type AdapterConfig struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

// Adapter verifies and parses notifications of one gateway.
type Adapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

type AdapterFactory interface {
	Gateway() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

type Service interface {
	Handle(ctx context.Context, gateway string, payload []byte, headers http.Header) (Ack, error)
}
