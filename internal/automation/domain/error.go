package domain

import "errors"

var (
	ErrInvalidPaymentID    = errors.New("invalid_payment_id")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPlan         = errors.New("invalid_plan")
	ErrInvalidAutomationID = errors.New("invalid_automation_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrAutomationNotFound  = errors.New("automation_not_found")
	ErrInvalidTransition   = errors.New("invalid_automation_transition")
	ErrSagaBudgetExceeded  = errors.New("saga_budget_exceeded")
)
