package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type SignUpRequest struct {
	Email        string
	TempPassword string
	Metadata     map[string]any
}

// IdentityProvider is the managed identity platform boundary.
//
//go:generate mockgen -source=repository.go -destination=./mocks/mock_repository.go -package=mocks
type IdentityProvider interface {
	SignUp(ctx context.Context, req SignUpRequest) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
}

type Repository interface {
	UpsertProfile(ctx context.Context, db *gorm.DB, profile *Profile) error

	UpsertAccount(ctx context.Context, db *gorm.DB, account *IPTVAccount) (*IPTVAccount, error)
	UpsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) (*Subscription, error)
	FindDraft(ctx context.Context, db *gorm.DB, paymentID string) (*Subscription, error)
	ExpireSupersededSubscriptions(ctx context.Context, db *gorm.DB, accountID, keepID snowflake.ID) (int64, error)

	CreateSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindActiveAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*IPTVAccount, error)
	FindAccountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*IPTVAccount, error)
	FindSubscriptionByAutomation(ctx context.Context, db *gorm.DB, automationID snowflake.ID) (*Subscription, error)
	AbandonDrafts(ctx context.Context, db *gorm.DB, paymentID string) (int64, error)
}
