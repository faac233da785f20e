package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
)

type EnsureIdentityRequest struct {
	Email string
	// UserID is the caller identity carried by the payment, when known.
	UserID   string
	Metadata map[string]any
}

type IdentityResult struct {
	User     User
	Created  bool
	Warnings []string
}

type WriteRecordsRequest struct {
	UserID       snowflake.ID
	PaymentID    string
	Email        string
	AutomationID snowflake.ID
	Plan         string
	Result       provisioningdomain.Result
	Now          time.Time
}

type CreateDraftRequest struct {
	PaymentID string `json:"payment_id"`
	Plan      string `json:"plan"`
	Email     string `json:"email"`
	AutoRenew bool   `json:"auto_renew"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	EnsureIdentity(ctx context.Context, req EnsureIdentityRequest) (IdentityResult, error)
	WriteSubscriptionRecords(ctx context.Context, req WriteRecordsRequest) (Subscription, IPTVAccount, error)
	FindActiveAccount(ctx context.Context, userID snowflake.ID) (*IPTVAccount, error)
	FindSubscriptionByAutomation(ctx context.Context, automationID snowflake.ID) (*Subscription, *IPTVAccount, error)
	CreateDraft(ctx context.Context, req CreateDraftRequest) (Subscription, error)
	// FindDraft returns the pending checkout draft for a payment, or ErrSubscriptionMissing.
	FindDraft(ctx context.Context, paymentID string) (*Subscription, error)
	AbandonDrafts(ctx context.Context, paymentID string) (int64, error)
}
