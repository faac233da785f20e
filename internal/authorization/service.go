package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

// Operator is an authenticated holder of an operator API key.
type Operator struct {
	// Subject is a stable, non-secret name for the key, e.g. "operator:3f9a1c2b".
	Subject string
	Role    string
}

type Service interface {
	Authorize(ctx context.Context, operator Operator, object string, action string) error
}
