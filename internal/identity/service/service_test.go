package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/identity/domain"
	"github.com/smallbiznis/streamgate/internal/identity/repository"
	"github.com/smallbiznis/streamgate/internal/identity/service"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"github.com/smallbiznis/streamgate/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	conn := dbtest.Open(t, &domain.User{}, &domain.Profile{}, &domain.IPTVAccount{}, &domain.Subscription{})
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	svc := service.NewService(service.ServiceParam{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(now),
		Repo:     repository.Provide(),
		Provider: repository.NewIdentityProvider(repository.ProviderParams{DB: conn, GenID: node}),
	})
	return svc, conn, node
}

func apiResult(providerID string) provisioningdomain.Result {
	return provisioningdomain.Result{
		Username:               "alice_01",
		Password:               "pw",
		ProviderSubscriptionID: providerID,
		ExpiresAt:              now.AddDate(0, 0, 30),
		Source:                 provisioningdomain.SourceAPI,
		Plan:                   provisioningdomain.MapSubscriptionToPlan("premium_monthly"),
	}
}

func TestEnsureIdentityIsIdempotentByEmail(t *testing.T) {
	svc, conn, _ := setup(t)
	ctx := context.Background()

	first, err := svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "A@B.com"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "a@b.com", first.User.Email)
	assert.Empty(t, first.Warnings)

	second, err := svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "a@b.com"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)

	var users, profiles int64
	conn.Model(&domain.User{}).Count(&users)
	conn.Model(&domain.Profile{}).Count(&profiles)
	assert.EqualValues(t, 1, users)
	assert.EqualValues(t, 1, profiles)
}

func TestEnsureIdentityPrefersCallerIdentity(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	owner, err := svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "owner@b.com"})
	require.NoError(t, err)

	res, err := svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "other@b.com", UserID: owner.User.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, owner.User.ID, res.User.ID)

	_, err = svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "x@b.com", UserID: "not-an-id"})
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestEnsureIdentityRejectsInvalidEmail(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.EnsureIdentity(context.Background(), domain.EnsureIdentityRequest{Email: "no-at-sign"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestEnsureIdentityProfileFailureIsWarning(t *testing.T) {
	svc, conn, _ := setup(t)
	require.NoError(t, conn.Migrator().DropTable(&domain.Profile{}))

	res, err := svc.EnsureIdentity(context.Background(), domain.EnsureIdentityRequest{Email: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "profile write failed")
}

func TestWriteSubscriptionRecordsIsIdempotent(t *testing.T) {
	svc, conn, node := setup(t)
	ctx := context.Background()

	identity, err := svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "a@b.com"})
	require.NoError(t, err)

	req := domain.WriteRecordsRequest{
		UserID:       identity.User.ID,
		PaymentID:    "pay_1",
		AutomationID: node.Generate(),
		Plan:         "premium_monthly",
		Result:       apiResult("4412"),
	}
	sub1, acc1, err := svc.WriteSubscriptionRecords(ctx, req)
	require.NoError(t, err)
	sub2, acc2, err := svc.WriteSubscriptionRecords(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, sub1.ID, sub2.ID)
	assert.Equal(t, acc1.ID, acc2.ID)
	assert.Equal(t, domain.SubscriptionStatusActive, sub1.Status)
	assert.Equal(t, domain.AccountStatusActive, acc1.Status)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), acc1.ExpiresAt, time.Second)

	var subs, accounts int64
	conn.Model(&domain.Subscription{}).Count(&subs)
	conn.Model(&domain.IPTVAccount{}).Count(&accounts)
	assert.EqualValues(t, 1, subs)
	assert.EqualValues(t, 1, accounts)

	foundSub, foundAcc, err := svc.FindSubscriptionByAutomation(ctx, req.AutomationID)
	require.NoError(t, err)
	assert.Equal(t, sub1.ID, foundSub.ID)
	assert.Equal(t, acc1.ID, foundAcc.ID)
}

func TestRenewalReusesAccountAndExpiresPreviousSubscription(t *testing.T) {
	svc, conn, node := setup(t)
	ctx := context.Background()

	identity, err := svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "a@b.com"})
	require.NoError(t, err)

	first, acc, err := svc.WriteSubscriptionRecords(ctx, domain.WriteRecordsRequest{
		UserID: identity.User.ID, PaymentID: "pay_1", AutomationID: node.Generate(), Plan: "premium_monthly", Result: apiResult("4412"),
	})
	require.NoError(t, err)

	active, err := svc.FindActiveAccount(ctx, identity.User.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, active.ID)

	renewed := apiResult("4412")
	renewed.ExpiresAt = now.AddDate(0, 0, 60)
	second, acc2, err := svc.WriteSubscriptionRecords(ctx, domain.WriteRecordsRequest{
		UserID: identity.User.ID, PaymentID: "pay_2", AutomationID: node.Generate(), Plan: "premium_monthly", Result: renewed,
	})
	require.NoError(t, err)
	assert.Equal(t, acc.ID, acc2.ID)
	assert.NotEqual(t, first.ID, second.ID)

	var previous domain.Subscription
	require.NoError(t, conn.First(&previous, "id = ?", first.ID).Error)
	assert.Equal(t, domain.SubscriptionStatusExpired, previous.Status)
}

func TestDraftLifecycle(t *testing.T) {
	svc, conn, node := setup(t)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, domain.CreateDraftRequest{PaymentID: "pay_9", Plan: "basic_yearly", AutoRenew: true})
	require.NoError(t, err)
	again, err := svc.CreateDraft(ctx, domain.CreateDraftRequest{PaymentID: "pay_9", Plan: "basic_yearly"})
	require.NoError(t, err)
	assert.Equal(t, draft.ID, again.ID)

	identity, err := svc.EnsureIdentity(ctx, domain.EnsureIdentityRequest{Email: "a@b.com"})
	require.NoError(t, err)
	sub, _, err := svc.WriteSubscriptionRecords(ctx, domain.WriteRecordsRequest{
		UserID: identity.User.ID, PaymentID: "pay_9", AutomationID: node.Generate(), Plan: "basic_yearly", Result: apiResult("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, draft.ID, sub.ID, "draft is promoted in place")
	assert.True(t, sub.AutoRenew)

	_, err = svc.CreateDraft(ctx, domain.CreateDraftRequest{PaymentID: "pay_10", Plan: "basic_monthly"})
	require.NoError(t, err)
	n, err := svc.AbandonDrafts(ctx, "pay_10")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var abandoned domain.Subscription
	require.NoError(t, conn.First(&abandoned, "payment_id = ?", "pay_10").Error)
	assert.Equal(t, domain.SubscriptionStatusAbandoned, abandoned.Status)

	n, err = svc.AbandonDrafts(ctx, "pay_9")
	require.NoError(t, err)
	assert.Zero(t, n, "active subscriptions are untouched")
}

func TestWriteSubscriptionRecordsValidatesInput(t *testing.T) {
	svc, _, _ := setup(t)

	_, _, err := svc.WriteSubscriptionRecords(context.Background(), domain.WriteRecordsRequest{PaymentID: "pay_1"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecords)
}

func TestFindDraftCarriesCheckoutDetails(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.FindDraft(ctx, "pay_11")
	assert.ErrorIs(t, err, domain.ErrSubscriptionMissing)

	_, err = svc.CreateDraft(ctx, domain.CreateDraftRequest{PaymentID: "pay_11", Plan: "Premium_Yearly", Email: "Buyer@Example.com"})
	require.NoError(t, err)

	draft, err := svc.FindDraft(ctx, "pay_11")
	require.NoError(t, err)
	assert.Equal(t, "premium_yearly", draft.Plan)
	assert.Equal(t, "buyer@example.com", draft.CustomerEmail)
	assert.Nil(t, draft.UserID)

	_, err = svc.AbandonDrafts(ctx, "pay_11")
	require.NoError(t, err)
	_, err = svc.FindDraft(ctx, "pay_11")
	assert.ErrorIs(t, err, domain.ErrSubscriptionMissing)
}
