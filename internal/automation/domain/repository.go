package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
	Limit  int
}

// Repository persists the ledger. Every status change is a conditional update
// guarded by the expected current status.
type Repository interface {
	// InsertPending creates the record unless one already exists for the payment id.
	InsertPending(ctx context.Context, db *gorm.DB, record *AutomationRecord) (bool, error)
	FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*AutomationRecord, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AutomationRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AutomationRecord, error)

	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, from Status, now time.Time) (bool, error)
	UpdateProgress(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any, now time.Time) error
	Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any, now time.Time) error
	Fail(ctx context.Context, db *gorm.DB, id snowflake.ID, step Step, message string, now time.Time) error
	MarkStalled(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedBefore time.Time, message string, now time.Time) (bool, error)

	ListStale(ctx context.Context, db *gorm.DB, updatedBefore time.Time, limit int) ([]AutomationRecord, error)
	// ListRetryable returns failed records, and pending ones nobody claimed, idle since updatedBefore.
	ListRetryable(ctx context.Context, db *gorm.DB, updatedBefore time.Time, maxAttempts int, limit int) ([]AutomationRecord, error)
}
