package domain

import "errors"

var (
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidUserID       = errors.New("invalid_user_id")
	ErrUserNotFound        = errors.New("user_not_found")
	ErrAccountNotFound     = errors.New("iptv_account_not_found")
	ErrSubscriptionMissing = errors.New("subscription_not_found")
	ErrInvalidRecords      = errors.New("invalid_subscription_records")
)
