// Package domain holds the automation ledger: one record per payment driving the provisioning saga.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Step is the last saga step an attempt reached.
type Step string

const (
	StepLedger       Step = "ledger"
	StepIdentity     Step = "identity"
	StepProvisioning Step = "provisioning"
	StepPersistence  Step = "persistence"
	StepNotify       Step = "notify"
	StepCompleted    Step = "completed"
)

type Warning struct {
	Step    Step      `json:"step"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type AutomationRecord struct {
	ID               snowflake.ID                 `gorm:"primaryKey" json:"id"`
	PaymentID        string                       `gorm:"column:payment_id;type:text;not null;uniqueIndex:ux_automation_records_payment_id" json:"payment_id"`
	Gateway          string                       `gorm:"column:gateway;type:text;not null;default:''" json:"gateway"`
	CustomerEmail    string                       `gorm:"column:customer_email;type:text;not null" json:"customer_email"`
	SubscriptionPlan string                       `gorm:"column:subscription_plan;type:text;not null" json:"subscription_plan"`
	Amount           decimal.Decimal              `gorm:"column:amount;type:text;not null;default:'0'" json:"amount"`
	Currency         string                       `gorm:"column:currency;type:text;not null;default:''" json:"currency"`
	Status           Status                       `gorm:"column:status;type:text;not null;index:ix_automation_records_status_updated,priority:1" json:"status"`
	Step             Step                         `gorm:"column:step;type:text;not null;default:'ledger'" json:"step"`
	ProviderResponse datatypes.JSON               `gorm:"column:provider_response;type:jsonb" json:"provider_response,omitempty"`
	ErrorMessage     *string                      `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	Warnings         datatypes.JSONSlice[Warning] `gorm:"column:warnings;type:jsonb" json:"warnings,omitempty"`
	Attempts         int                          `gorm:"column:attempts;not null;default:0" json:"attempts"`
	UserID           *snowflake.ID                `gorm:"column:user_id" json:"user_id,omitempty"`
	SubscriptionID   *snowflake.ID                `gorm:"column:subscription_id" json:"subscription_id,omitempty"`
	NotifiedAt       *time.Time                   `gorm:"column:notified_at" json:"notified_at,omitempty"`
	CompletedAt      *time.Time                   `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time                    `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt        time.Time                    `gorm:"column:updated_at;not null;index:ix_automation_records_status_updated,priority:2" json:"updated_at"`
}

func (AutomationRecord) TableName() string { return "automation_records" }

// StoredCredentials decodes provider_response. It is nil until provisioning succeeded.
func (r AutomationRecord) StoredCredentials() (*provisioningdomain.Credentials, error) {
	if len(r.ProviderResponse) == 0 || string(r.ProviderResponse) == "null" {
		return nil, nil
	}
	var creds provisioningdomain.Credentials
	if err := json.Unmarshal(r.ProviderResponse, &creds); err != nil {
		return nil, err
	}
	if creds.Username == "" {
		return nil, nil
	}
	return &creds, nil
}

// AutomationResult is the outcome handed back to webhook intake and operators.
type AutomationResult struct {
	Success        bool                            `json:"success"`
	Busy           bool                            `json:"busy,omitempty"`
	Cached         bool                            `json:"cached,omitempty"`
	AutomationID   string                          `json:"automation_id,omitempty"`
	PaymentID      string                          `json:"payment_id"`
	Status         Status                          `json:"status"`
	SubscriptionID string                          `json:"subscription_id,omitempty"`
	Credentials    *provisioningdomain.Credentials `json:"credentials,omitempty"`
	Error          string                          `json:"error,omitempty"`
}
