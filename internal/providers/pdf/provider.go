package pdf

import (
	"context"
	"time"
)

// CredentialsData is rendered into the sheet attached to the credentials email.
type CredentialsData struct {
	CustomerEmail string
	PaymentID     string
	Plan          string
	Amount        string
	Currency      string
	Username      string
	Password      string
	M3UURL        string
	XtreamURL     string
	EPGURL        string
	Host          string
	ExpiresAt     time.Time
	Placeholder   bool
}

type Provider interface {
	GenerateCredentials(ctx context.Context, data CredentialsData) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateCredentials(ctx context.Context, data CredentialsData) ([]byte, error) {
	return nil, nil
}
