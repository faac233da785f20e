package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem   ActorType = "system"
	ActorTypeGateway  ActorType = "gateway"
	ActorTypeOperator ActorType = "operator"
)

const (
	ActionWebhookReceived     = "webhook.received"
	ActionAutomationStarted   = "automation.started"
	ActionAutomationCompleted = "automation.completed"
	ActionAutomationFailed    = "automation.failed"
	ActionAutomationWarning   = "automation.warning"
	ActionAutomationRetry     = "automation.retry_requested"
	ActionAutomationStalled   = "automation.stalled"
	ActionAuthorizationDenied = "authorization.denied"
	ActionAuthorizationGrant  = "authorization.granted"

	TargetTypeAutomation = "automation"
	TargetTypePayment    = "payment"
	TargetTypeCapability = "capability"
)

// AuditLog is an append-only trail entry.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"column:action;type:text;not null" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null;index:ix_audit_logs_target,priority:1" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id;type:text;index:ix_audit_logs_target,priority:2" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	IPAddress  *string           `gorm:"column:ip_address;type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null;index:ix_audit_logs_target,priority:3" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
