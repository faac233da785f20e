// Package domain contains the end-user identity and subscription records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"gorm.io/datatypes"
)

// User is the end-user identity, unique by lower-cased email.
type User struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Email        string            `gorm:"column:email;type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	PasswordHash string            `gorm:"column:password_hash;type:text;not null" json:"-"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

type Profile struct {
	UserID      snowflake.ID      `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	Email       string            `gorm:"column:email;type:text;not null" json:"email"`
	DisplayName string            `gorm:"column:display_name;type:text;not null;default:''" json:"display_name"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusAbandoned SubscriptionStatus = "abandoned"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the commercial record. Pending rows without an automation are checkout drafts.
type Subscription struct {
	ID            snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID        *snowflake.ID      `gorm:"column:user_id;index" json:"user_id,omitempty"`
	PaymentID     string             `gorm:"column:payment_id;type:text;not null;index:ix_subscriptions_payment_id" json:"payment_id"`
	CustomerEmail string             `gorm:"column:customer_email;type:text;not null;default:''" json:"customer_email,omitempty"`
	AutomationID  *snowflake.ID      `gorm:"column:automation_id;uniqueIndex:ux_subscriptions_automation_id" json:"automation_id,omitempty"`
	IPTVAccountID *snowflake.ID      `gorm:"column:iptv_account_id" json:"iptv_account_id,omitempty"`
	Plan          string             `gorm:"column:plan;type:text;not null" json:"plan"`
	Status        SubscriptionStatus `gorm:"column:status;type:text;not null" json:"status"`
	AutoRenew     bool               `gorm:"column:auto_renew;not null;default:false" json:"auto_renew"`
	ExpiresAt     *time.Time         `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt     time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusExpired   AccountStatus = "expired"
)

// IPTVAccount holds provisioned streaming credentials, unique per (user, provider subscription).
type IPTVAccount struct {
	ID                     snowflake.ID              `gorm:"primaryKey" json:"id"`
	UserID                 snowflake.ID              `gorm:"column:user_id;not null;uniqueIndex:ux_iptv_accounts_user_provider,priority:1" json:"user_id"`
	Username               string                    `gorm:"column:username;type:text;not null" json:"username"`
	Password               string                    `gorm:"column:password;type:text;not null" json:"-"`
	Status                 AccountStatus             `gorm:"column:status;type:text;not null" json:"status"`
	Source                 provisioningdomain.Source `gorm:"column:source;type:text;not null" json:"source"`
	ProviderSubscriptionID string                    `gorm:"column:provider_subscription_id;type:text;not null;uniqueIndex:ux_iptv_accounts_user_provider,priority:2" json:"provider_subscription_id"`
	DNSLink                string                    `gorm:"column:dns_link;type:text;not null;default:''" json:"dns_link"`
	ExpiresAt              time.Time                 `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt              time.Time                 `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time                 `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (IPTVAccount) TableName() string { return "iptv_accounts" }

// Result converts the stored account back into a provisioning result.
func (a IPTVAccount) Result(plan string) provisioningdomain.Result {
	return provisioningdomain.Result{
		Username:               a.Username,
		Password:               a.Password,
		ProviderSubscriptionID: a.ProviderSubscriptionID,
		ExpiresAt:              a.ExpiresAt,
		DNSLink:                a.DNSLink,
		Source:                 a.Source,
		Plan:                   provisioningdomain.MapSubscriptionToPlan(plan),
	}
}
