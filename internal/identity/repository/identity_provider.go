package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/streamgate/internal/identity/domain"
	"github.com/smallbiznis/streamgate/internal/identity/password"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// identityProvider keeps identities in the service database.
type identityProvider struct {
	db    *gorm.DB
	genID *snowflake.Node
}

type ProviderParams struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

func NewIdentityProvider(p ProviderParams) domain.IdentityProvider {
	return &identityProvider{db: p.DB, genID: p.GenID}
}

func (p *identityProvider) SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	hash, err := password.Hash(req.TempPassword)
	if err != nil {
		return nil, err
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	user := &domain.User{
		ID:           p.genID.Generate(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     metadata,
	}
	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (p *identityProvider) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := p.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *identityProvider) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
