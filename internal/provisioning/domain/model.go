package domain

import (
	"context"
	"errors"
	"time"
)

type Source string

const (
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
)

var (
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrProviderRejected = errors.New("provider_rejected")
	ErrProviderFailure  = errors.New("provider_failure")
	ErrInvalidResponse  = errors.New("provider_invalid_response")
	ErrNotExtendable    = errors.New("subscription_not_extendable")
)

type CreateRequest struct {
	Email string
	Plan  string
}

// Result is what the provisioning boundary hands back to the saga.
type Result struct {
	Username               string    `json:"username"`
	Password               string    `json:"password"`
	ProviderSubscriptionID string    `json:"providerSubscriptionId"`
	ExpiresAt              time.Time `json:"expiresAt"`
	DNSLink                string    `json:"dnsLink,omitempty"`
	Source                 Source    `json:"source"`
	Plan                   PlanSpec  `json:"plan"`
	// FallbackReason explains why the API path was abandoned.
	FallbackReason string `json:"fallbackReason,omitempty"`
}

func (r Result) IsFallback() bool {
	return r.Source == SourceFallback
}

// Credentials is the payload shown to the customer and stored on the ledger.
type Credentials struct {
	Username               string    `json:"username"`
	Password               string    `json:"password"`
	M3UURL                 string    `json:"m3uUrl"`
	XtreamURL              string    `json:"xtreamUrl"`
	EPGURL                 string    `json:"epgUrl,omitempty"`
	Host                   string    `json:"host"`
	Source                 Source    `json:"source"`
	ProviderSubscriptionID string    `json:"providerSubscriptionId"`
	ExpiresAt              time.Time `json:"expiresAt"`
	Plan                   string    `json:"plan"`
}

// Result rebuilds the provisioning result from a stored credentials payload.
func (c Credentials) Result() Result {
	return Result{
		Username:               c.Username,
		Password:               c.Password,
		ProviderSubscriptionID: c.ProviderSubscriptionID,
		ExpiresAt:              c.ExpiresAt,
		DNSLink:                c.Host,
		Source:                 c.Source,
		Plan:                   MapSubscriptionToPlan(c.Plan),
	}
}

//go:generate mockgen -source=model.go -destination=./mocks/mock_client.go -package=mocks
type Client interface {
	// CreateSubscription always yields usable credentials unless the request itself is invalid.
	CreateSubscription(ctx context.Context, req CreateRequest) (Result, error)
	ExtendSubscription(ctx context.Context, providerSubscriptionID string, plan string) (Result, error)
	GetConnectionDetails(username, password string) Credentials
	GetConnectionDetailsFromProviderResponse(result Result) Credentials
}
