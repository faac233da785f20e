package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/streamgate/internal/identity/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertProfile(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "metadata", "updated_at"}),
	}).Create(profile).Error
}

func (r *repo) UpsertAccount(ctx context.Context, db *gorm.DB, account *domain.IPTVAccount) (*domain.IPTVAccount, error) {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "password", "status", "source", "dns_link", "expires_at", "updated_at",
		}),
	}).Create(account).Error
	if err != nil {
		return nil, err
	}

	var stored domain.IPTVAccount
	err = db.WithContext(ctx).
		Where("user_id = ? AND provider_subscription_id = ?", account.UserID, account.ProviderSubscriptionID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repo) UpsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) (*domain.Subscription, error) {
	if sub.AutomationID == nil {
		return nil, domain.ErrInvalidRecords
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "automation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "iptv_account_id", "plan", "status", "expires_at", "updated_at",
		}),
	}).Create(sub).Error
	if err != nil {
		return nil, err
	}

	var stored domain.Subscription
	if err := db.WithContext(ctx).Where("automation_id = ?", *sub.AutomationID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repo) FindDraft(ctx context.Context, db *gorm.DB, paymentID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Where("payment_id = ? AND status = ? AND automation_id IS NULL", paymentID, domain.SubscriptionStatusPending).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) ExpireSupersededSubscriptions(ctx context.Context, db *gorm.DB, accountID, keepID snowflake.ID) (int64, error) {
	tx := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("iptv_account_id = ? AND id <> ? AND status = ?", accountID, keepID, domain.SubscriptionStatusActive).
		Updates(map[string]any{
			"status":     domain.SubscriptionStatusExpired,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return tx.RowsAffected, tx.Error
}

func (r *repo) CreateSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindActiveAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.IPTVAccount, error) {
	var account domain.IPTVAccount
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.AccountStatusActive).
		Order("expires_at DESC").
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindAccountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.IPTVAccount, error) {
	var account domain.IPTVAccount
	err := db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindSubscriptionByAutomation(ctx context.Context, db *gorm.DB, automationID snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Where("automation_id = ?", automationID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriptionMissing
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) AbandonDrafts(ctx context.Context, db *gorm.DB, paymentID string) (int64, error) {
	tx := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("payment_id = ? AND status = ?", paymentID, domain.SubscriptionStatusPending).
		Updates(map[string]any{
			"status":     domain.SubscriptionStatusAbandoned,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return tx.RowsAffected, tx.Error
}
