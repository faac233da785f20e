package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ProcessPaymentRequest struct {
	PaymentID     string
	Plan          string
	CustomerEmail string
	Gateway       string
	// UserID is the caller identity attached to the payment, if any.
	UserID   string
	Amount   decimal.Decimal
	Currency string
}

type ListRequest struct {
	Status string
	Limit  int
}

// Config bounds a single saga attempt.
type Config struct {
	SagaTimeout   time.Duration
	StepTimeout   time.Duration
	NotifyTimeout time.Duration
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (AutomationResult, error)
	RetryAutomation(ctx context.Context, automationID string) (AutomationResult, error)
	GetAutomationStatus(ctx context.Context, paymentID string) (AutomationRecord, error)
	ListAutomations(ctx context.Context, req ListRequest) ([]AutomationRecord, error)
}
