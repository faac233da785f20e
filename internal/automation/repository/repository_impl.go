package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/streamgate/internal/automation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxListLimit = 500

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPending(ctx context.Context, db *gorm.DB, record *domain.AutomationRecord) (bool, error) {
	record.Status = domain.StatusPending
	if record.Step == "" {
		record.Step = domain.StepLedger
	}
	tx := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_id"}}, DoNothing: true}).
		Create(record)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*domain.AutomationRecord, error) {
	var record domain.AutomationRecord
	err := db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAutomationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.AutomationRecord, error) {
	var record domain.AutomationRecord
	err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAutomationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.AutomationRecord, error) {
	stmt := db.WithContext(ctx).Model(&domain.AutomationRecord{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var records []domain.AutomationRecord
	if err := stmt.Order("updated_at desc, id desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Claim moves a record into processing when it is still in the expected state.
// A false result means another caller won the record.
func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, from domain.Status, now time.Time) (bool, error) {
	if from != domain.StatusPending && from != domain.StatusFailed {
		return false, domain.ErrInvalidTransition
	}
	tx := db.WithContext(ctx).Model(&domain.AutomationRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":        domain.StatusProcessing,
			"attempts":      gorm.Expr("attempts + 1"),
			"error_message": nil,
			"updated_at":    now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) UpdateProgress(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any, now time.Time) error {
	return r.updateProcessing(ctx, db, id, fields, now)
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any, now time.Time) error {
	values := map[string]any{}
	for k, v := range fields {
		values[k] = v
	}
	values["status"] = domain.StatusCompleted
	values["step"] = domain.StepCompleted
	values["completed_at"] = now
	values["error_message"] = nil
	return r.updateProcessing(ctx, db, id, values, now)
}

func (r *repo) Fail(ctx context.Context, db *gorm.DB, id snowflake.ID, step domain.Step, message string, now time.Time) error {
	return r.updateProcessing(ctx, db, id, map[string]any{
		"status":        domain.StatusFailed,
		"step":          step,
		"error_message": message,
	}, now)
}

func (r *repo) MarkStalled(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedBefore time.Time, message string, now time.Time) (bool, error) {
	tx := db.WithContext(ctx).Model(&domain.AutomationRecord{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, domain.StatusProcessing, updatedBefore).
		Updates(map[string]any{
			"status":        domain.StatusFailed,
			"error_message": message,
			"updated_at":    now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) ListStale(ctx context.Context, db *gorm.DB, updatedBefore time.Time, limit int) ([]domain.AutomationRecord, error) {
	var records []domain.AutomationRecord
	err := db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.StatusProcessing, updatedBefore).
		Order("updated_at asc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *repo) ListRetryable(ctx context.Context, db *gorm.DB, updatedBefore time.Time, maxAttempts int, limit int) ([]domain.AutomationRecord, error) {
	var records []domain.AutomationRecord
	err := db.WithContext(ctx).
		Where("status IN ? AND updated_at < ? AND attempts < ?", []domain.Status{domain.StatusFailed, domain.StatusPending}, updatedBefore, maxAttempts).
		Order("updated_at asc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *repo) updateProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any, now time.Time) error {
	values := map[string]any{"updated_at": now}
	for k, v := range fields {
		values[k] = v
	}
	tx := db.WithContext(ctx).Model(&domain.AutomationRecord{}).
		Where("id = ? AND status = ?", id, domain.StatusProcessing).
		Updates(values)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}
