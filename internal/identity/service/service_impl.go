package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/identity/domain"
	"github.com/smallbiznis/streamgate/internal/identity/password"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"github.com/smallbiznis/streamgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	provider domain.IdentityProvider
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Provider domain.IdentityProvider
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("identity.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		provider: p.Provider,
	}
}

// EnsureIdentity resolves the caller identity, then looks up by email, then signs up.
func (s *Service) EnsureIdentity(ctx context.Context, req domain.EnsureIdentityRequest) (domain.IdentityResult, error) {
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		return domain.IdentityResult{}, domain.ErrInvalidEmail
	}

	if strings.TrimSpace(req.UserID) != "" {
		id, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
		if err != nil {
			return domain.IdentityResult{}, domain.ErrInvalidUserID
		}
		user, err := s.provider.FindByID(ctx, id)
		switch {
		case err == nil:
			return s.withProfile(ctx, *user, false, req.Metadata), nil
		case !errors.Is(err, domain.ErrUserNotFound):
			return domain.IdentityResult{}, err
		}
		s.log.Info("caller identity not found, resolving by email", zap.String("user_id", req.UserID))
	}

	user, err := s.provider.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.withProfile(ctx, *user, false, req.Metadata), nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return domain.IdentityResult{}, err
	}

	temp, err := password.Generate()
	if err != nil {
		return domain.IdentityResult{}, fmt.Errorf("generate temporary password: %w", err)
	}
	created, err := s.provider.SignUp(ctx, domain.SignUpRequest{
		Email:        email,
		TempPassword: temp,
		Metadata:     signUpMetadata(req.Metadata),
	})
	if err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return domain.IdentityResult{}, fmt.Errorf("sign up: %w", err)
		}
		// Another delivery created the identity first.
		existing, findErr := s.provider.FindByEmail(ctx, email)
		if findErr != nil {
			return domain.IdentityResult{}, fmt.Errorf("sign up: %w", err)
		}
		return s.withProfile(ctx, *existing, false, req.Metadata), nil
	}

	s.log.Info("identity created", zap.String("user_id", created.ID.String()))
	return s.withProfile(ctx, *created, true, req.Metadata), nil
}

// withProfile writes the profile best-effort and reports failures as warnings.
func (s *Service) withProfile(ctx context.Context, user domain.User, created bool, metadata map[string]any) domain.IdentityResult {
	result := domain.IdentityResult{User: user, Created: created}

	profileMeta := datatypes.JSONMap{}
	for k, v := range metadata {
		profileMeta[k] = v
	}
	profile := &domain.Profile{
		UserID:    user.ID,
		Email:     user.Email,
		Metadata:  profileMeta,
		UpdatedAt: s.clock.Now(),
	}
	if err := s.repo.UpsertProfile(ctx, s.db, profile); err != nil {
		s.log.Warn("profile write failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		result.Warnings = append(result.Warnings, "profile write failed: "+err.Error())
	}
	return result
}

// WriteSubscriptionRecords persists the account and subscription in one transaction.
// Re-running for the same automation updates the same rows.
func (s *Service) WriteSubscriptionRecords(ctx context.Context, req domain.WriteRecordsRequest) (domain.Subscription, domain.IPTVAccount, error) {
	if req.UserID == 0 || req.AutomationID == 0 || strings.TrimSpace(req.PaymentID) == "" {
		return domain.Subscription{}, domain.IPTVAccount{}, domain.ErrInvalidRecords
	}
	result := req.Result
	if result.Username == "" || result.Password == "" || result.ProviderSubscriptionID == "" {
		return domain.Subscription{}, domain.IPTVAccount{}, domain.ErrInvalidRecords
	}

	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}
	plan := provisioningdomain.MapSubscriptionToPlan(req.Plan)
	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.AddDate(0, 0, plan.DurationDays)
	}
	expiresAt = expiresAt.UTC()

	var (
		subscription domain.Subscription
		account      domain.IPTVAccount
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		storedAccount, err := s.repo.UpsertAccount(ctx, tx, &domain.IPTVAccount{
			ID:                     s.genID.Generate(),
			UserID:                 req.UserID,
			Username:               result.Username,
			Password:               result.Password,
			Status:                 domain.AccountStatusActive,
			Source:                 result.Source,
			ProviderSubscriptionID: result.ProviderSubscriptionID,
			DNSLink:                result.DNSLink,
			ExpiresAt:              expiresAt,
			CreatedAt:              now,
			UpdatedAt:              now,
		})
		if err != nil {
			return fmt.Errorf("upsert iptv account: %w", err)
		}
		account = *storedAccount

		userID := req.UserID
		automationID := req.AutomationID
		accountID := account.ID
		sub := &domain.Subscription{
			ID:            s.genID.Generate(),
			UserID:        &userID,
			PaymentID:     req.PaymentID,
			CustomerEmail: normalizeEmail(req.Email),
			AutomationID:  &automationID,
			IPTVAccountID: &accountID,
			Plan:          plan.Name,
			Status:        domain.SubscriptionStatusActive,
			ExpiresAt:     &expiresAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		draft, err := s.repo.FindDraft(ctx, tx, req.PaymentID)
		if err != nil {
			return fmt.Errorf("find draft: %w", err)
		}
		if draft != nil {
			// Promote the checkout draft instead of creating a second row.
			sub.ID = draft.ID
			sub.AutoRenew = draft.AutoRenew
			sub.CreatedAt = draft.CreatedAt
			if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
				return fmt.Errorf("promote draft: %w", err)
			}
			subscription = *sub
		} else {
			stored, err := s.repo.UpsertSubscription(ctx, tx, sub)
			if err != nil {
				return fmt.Errorf("upsert subscription: %w", err)
			}
			subscription = *stored
		}

		if _, err := s.repo.ExpireSupersededSubscriptions(ctx, tx, account.ID, subscription.ID); err != nil {
			return fmt.Errorf("expire superseded subscriptions: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Subscription{}, domain.IPTVAccount{}, err
	}
	return subscription, account, nil
}

func (s *Service) FindActiveAccount(ctx context.Context, userID snowflake.ID) (*domain.IPTVAccount, error) {
	account, err := s.repo.FindActiveAccount(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if !account.ExpiresAt.After(s.clock.Now()) {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

// FindSubscriptionByAutomation returns records written by a previous attempt of the same automation.
func (s *Service) FindSubscriptionByAutomation(ctx context.Context, automationID snowflake.ID) (*domain.Subscription, *domain.IPTVAccount, error) {
	sub, err := s.repo.FindSubscriptionByAutomation(ctx, s.db, automationID)
	if err != nil {
		return nil, nil, err
	}
	if sub.IPTVAccountID == nil {
		return sub, nil, domain.ErrAccountNotFound
	}
	account, err := s.repo.FindAccountByID(ctx, s.db, *sub.IPTVAccountID)
	if err != nil {
		return sub, nil, err
	}
	return sub, account, nil
}

func (s *Service) CreateDraft(ctx context.Context, req domain.CreateDraftRequest) (domain.Subscription, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return domain.Subscription{}, domain.ErrInvalidRecords
	}
	if req.Email != "" && !validEmail(normalizeEmail(req.Email)) {
		return domain.Subscription{}, domain.ErrInvalidEmail
	}

	existing, err := s.repo.FindDraft(ctx, s.db, paymentID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	var userID *snowflake.ID
	if req.Email != "" {
		if user, err := s.provider.FindByEmail(ctx, req.Email); err == nil {
			userID = &user.ID
		}
	}

	now := s.clock.Now()
	draft := &domain.Subscription{
		ID:            s.genID.Generate(),
		UserID:        userID,
		PaymentID:     paymentID,
		CustomerEmail: normalizeEmail(req.Email),
		Plan:          provisioningdomain.MapSubscriptionToPlan(req.Plan).Name,
		Status:        domain.SubscriptionStatusPending,
		AutoRenew:     req.AutoRenew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateSubscription(ctx, s.db, draft); err != nil {
		return domain.Subscription{}, err
	}
	return *draft, nil
}

func (s *Service) FindDraft(ctx context.Context, paymentID string) (*domain.Subscription, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.ErrSubscriptionMissing
	}
	draft, err := s.repo.FindDraft(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, domain.ErrSubscriptionMissing
	}
	return draft, nil
}

func (s *Service) AbandonDrafts(ctx context.Context, paymentID string) (int64, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return 0, nil
	}
	n, err := s.repo.AbandonDrafts(ctx, s.db, paymentID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("abandoned draft subscriptions", zap.String("payment_id", paymentID), zap.Int64("count", n))
	}
	return n, nil
}

func signUpMetadata(extra map[string]any) map[string]any {
	out := map[string]any{"source": "payment_automation"}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	local, domainPart, ok := strings.Cut(email, "@")
	return ok && local != "" && strings.Contains(domainPart, ".") && !strings.ContainsAny(email, " \t\r\n")
}
