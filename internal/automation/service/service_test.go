package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	auditrepository "github.com/smallbiznis/streamgate/internal/audit/repository"
	auditservice "github.com/smallbiznis/streamgate/internal/audit/service"
	"github.com/smallbiznis/streamgate/internal/automation/domain"
	"github.com/smallbiznis/streamgate/internal/automation/repository"
	"github.com/smallbiznis/streamgate/internal/automation/service"
	"github.com/smallbiznis/streamgate/internal/clock"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	identityrepository "github.com/smallbiznis/streamgate/internal/identity/repository"
	identityservice "github.com/smallbiznis/streamgate/internal/identity/service"
	"github.com/smallbiznis/streamgate/internal/notification"
	notificationmocks "github.com/smallbiznis/streamgate/internal/notification/mocks"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	provisioningmocks "github.com/smallbiznis/streamgate/internal/provisioning/domain/mocks"
	"github.com/smallbiznis/streamgate/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const streamHost = "http://line.test:8080"

type fakeProvisioner struct {
	mu        sync.Mutex
	creates   int
	extends   int
	createErr error
	extendErr error
	onCreate  func()
	entered   chan struct{}
	release   chan struct{}
}

func (f *fakeProvisioner) CreateSubscription(ctx context.Context, req provisioningdomain.CreateRequest) (provisioningdomain.Result, error) {
	f.mu.Lock()
	f.creates++
	n := f.creates
	err := f.createErr
	hook := f.onCreate
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if hook != nil {
		hook()
	}
	if err != nil {
		return provisioningdomain.Result{}, err
	}
	plan := provisioningdomain.MapSubscriptionToPlan(req.Plan)
	return provisioningdomain.Result{
		Username:               fmt.Sprintf("alice_%d", n),
		Password:               "s3cret",
		ProviderSubscriptionID: fmt.Sprintf("sub_%d", n),
		ExpiresAt:              now.AddDate(0, 0, plan.DurationDays),
		Source:                 provisioningdomain.SourceAPI,
		Plan:                   plan,
	}, nil
}

func (f *fakeProvisioner) ExtendSubscription(ctx context.Context, providerSubscriptionID, plan string) (provisioningdomain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extends++
	if f.extendErr != nil {
		return provisioningdomain.Result{}, f.extendErr
	}
	return provisioningdomain.Result{
		ProviderSubscriptionID: providerSubscriptionID,
		ExpiresAt:              now.AddDate(0, 0, 60),
		Source:                 provisioningdomain.SourceAPI,
		Plan:                   provisioningdomain.MapSubscriptionToPlan(plan),
	}, nil
}

func (f *fakeProvisioner) GetConnectionDetails(username, password string) provisioningdomain.Credentials {
	return provisioningdomain.ConnectionDetails(streamHost, username, password)
}

func (f *fakeProvisioner) GetConnectionDetailsFromProviderResponse(result provisioningdomain.Result) provisioningdomain.Credentials {
	return provisioningdomain.CredentialsFromResult(streamHost, result)
}

func (f *fakeProvisioner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.extends
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []notification.CredentialsNotification
	err  error
}

func (d *fakeDispatcher) SendCredentials(ctx context.Context, n notification.CredentialsNotification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

type fixture struct {
	svc         *service.Service
	db          *gorm.DB
	clock       *clock.FakeClock
	provisioner *fakeProvisioner
	dispatcher  *fakeDispatcher
}

func newFixture(t *testing.T, provisioning provisioningdomain.Client, dispatcher notification.Dispatcher) (*service.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	conn := dbtest.Open(t,
		&domain.AutomationRecord{},
		&identitydomain.User{},
		&identitydomain.Profile{},
		&identitydomain.IPTVAccount{},
		&identitydomain.Subscription{},
		&auditdomain.AuditLog{},
	)
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)
	log := zap.NewNop()

	identity := identityservice.NewService(identityservice.ServiceParam{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Repo:     identityrepository.Provide(),
		Provider: identityrepository.NewIdentityProvider(identityrepository.ProviderParams{DB: conn, GenID: node}),
	})
	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	svc := service.New(service.ServiceParam{
		DB:           conn,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Repo:         repository.Provide(),
		Identity:     identity,
		Provisioning: provisioning,
		Dispatcher:   dispatcher,
		Audit:        audit,
	}, domain.Config{
		SagaTimeout:   time.Minute,
		StepTimeout:   5 * time.Second,
		NotifyTimeout: 5 * time.Second,
	})
	return svc, conn, clk
}

func setup(t *testing.T) fixture {
	t.Helper()
	provisioner := &fakeProvisioner{}
	dispatcher := &fakeDispatcher{}
	svc, conn, clk := newFixture(t, provisioner, dispatcher)
	return fixture{svc: svc, db: conn, clock: clk, provisioner: provisioner, dispatcher: dispatcher}
}

func payment(id, plan string) domain.ProcessPaymentRequest {
	return domain.ProcessPaymentRequest{
		PaymentID:     id,
		Plan:          plan,
		CustomerEmail: "Alice@Example.com",
		Gateway:       "stripe",
		Amount:        decimal.RequireFromString("19.99"),
		Currency:      "usd",
	}
}

func count(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func loadRecord(t *testing.T, conn *gorm.DB, paymentID string) domain.AutomationRecord {
	t.Helper()
	var record domain.AutomationRecord
	require.NoError(t, conn.Where("payment_id = ?", paymentID).First(&record).Error)
	return record
}

func TestProcessPaymentProvisionsAndCompletes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.False(t, res.Cached)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	require.NotNil(t, res.Credentials)
	assert.Equal(t, "alice_1", res.Credentials.Username)
	assert.Equal(t, "premium_monthly", res.Credentials.Plan)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), res.Credentials.ExpiresAt, time.Minute)
	assert.Contains(t, res.Credentials.M3UURL, streamHost+"/get.php?")

	record := loadRecord(t, f.db, "pay_1")
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, domain.StepCompleted, record.Step)
	assert.Equal(t, "alice@example.com", record.CustomerEmail)
	assert.Equal(t, "USD", record.Currency)
	assert.Equal(t, 1, record.Attempts)
	assert.NotNil(t, record.CompletedAt)
	assert.NotNil(t, record.NotifiedAt)
	assert.NotNil(t, record.UserID)
	require.NotNil(t, record.SubscriptionID)
	assert.Equal(t, res.SubscriptionID, record.SubscriptionID.String())
	assert.Empty(t, record.Warnings)

	stored, err := record.StoredCredentials()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "alice_1", stored.Username)

	var sub identitydomain.Subscription
	require.NoError(t, f.db.First(&sub, "id = ?", *record.SubscriptionID).Error)
	assert.Equal(t, identitydomain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "premium_monthly", sub.Plan)
	require.NotNil(t, sub.ExpiresAt)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), *sub.ExpiresAt, time.Minute)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "alice@example.com", f.dispatcher.sent[0].Email)
	assert.Equal(t, "19.99", f.dispatcher.sent[0].Amount)

	var actions []string
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Order("created_at asc").Pluck("action", &actions).Error)
	assert.Contains(t, actions, auditdomain.ActionAutomationStarted)
	assert.Contains(t, actions, auditdomain.ActionAutomationCompleted)
}

func TestProcessPaymentIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, first.AutomationID, second.AutomationID)
	require.NotNil(t, second.Credentials)
	assert.Equal(t, first.Credentials.Username, second.Credentials.Username)

	creates, _ := f.provisioner.counts()
	assert.Equal(t, 1, creates)
	assert.EqualValues(t, 1, count(t, f.db, &domain.AutomationRecord{}))
	assert.EqualValues(t, 1, count(t, f.db, &identitydomain.IPTVAccount{}))
	assert.EqualValues(t, 1, count(t, f.db, &identitydomain.Subscription{}))
	assert.Len(t, f.dispatcher.sent, 1)
}

func TestRedeliveryWithoutPlanOrEmailIsAnsweredFromLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	require.True(t, first.Success)

	// A later gateway event for the same payment may omit plan and email.
	second, err := f.svc.ProcessPayment(ctx, domain.ProcessPaymentRequest{PaymentID: "pay_1", Gateway: "stripe"})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, first.AutomationID, second.AutomationID)

	f.provisioner.mu.Lock()
	f.provisioner.createErr = provisioningdomain.ErrProviderFailure
	f.provisioner.mu.Unlock()
	failed, err := f.svc.ProcessPayment(ctx, payment("pay_2", "basic_monthly"))
	require.NoError(t, err)
	require.False(t, failed.Success)

	again, err := f.svc.ProcessPayment(ctx, domain.ProcessPaymentRequest{PaymentID: "pay_2"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, again.Status)

	creates, _ := f.provisioner.counts()
	assert.Equal(t, 2, creates)
}

func TestConcurrentDeliveryReportsBusy(t *testing.T) {
	f := setup(t)
	f.provisioner.entered = make(chan struct{}, 1)
	f.provisioner.release = make(chan struct{})
	ctx := context.Background()

	done := make(chan domain.AutomationResult, 1)
	go func() {
		res, err := f.svc.ProcessPayment(ctx, payment("pay_1", "basic_monthly"))
		assert.NoError(t, err)
		done <- res
	}()

	<-f.provisioner.entered
	busy, err := f.svc.ProcessPayment(ctx, payment("pay_1", "basic_monthly"))
	require.NoError(t, err)
	assert.True(t, busy.Busy)
	assert.False(t, busy.Success)
	assert.Equal(t, domain.StatusProcessing, busy.Status)

	close(f.provisioner.release)
	first := <-done
	assert.True(t, first.Success)

	creates, _ := f.provisioner.counts()
	assert.Equal(t, 1, creates)
	assert.EqualValues(t, 1, count(t, f.db, &identitydomain.Subscription{}))
}

func TestFailedAutomationWaitsForExplicitRetry(t *testing.T) {
	f := setup(t)
	f.provisioner.createErr = provisioningdomain.ErrProviderFailure
	ctx := context.Background()

	res, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "provisioning")

	record := loadRecord(t, f.db, "pay_1")
	assert.Equal(t, domain.StatusFailed, record.Status)
	assert.Equal(t, domain.StepProvisioning, record.Step)
	require.NotNil(t, record.ErrorMessage)

	// Redelivery does not rerun a failed saga.
	again, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, domain.StatusFailed, again.Status)
	creates, _ := f.provisioner.counts()
	assert.Equal(t, 1, creates)

	f.provisioner.mu.Lock()
	f.provisioner.createErr = nil
	f.provisioner.mu.Unlock()

	retried, err := f.svc.RetryAutomation(ctx, record.ID.String())
	require.NoError(t, err)
	assert.True(t, retried.Success)

	record = loadRecord(t, f.db, "pay_1")
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, 2, record.Attempts)
	assert.Nil(t, record.ErrorMessage)
	assert.EqualValues(t, 1, count(t, f.db, &identitydomain.Subscription{}))
	assert.EqualValues(t, 1, count(t, f.db, &identitydomain.User{}))
}

func TestBudgetExceededKeepsCheckpointForRetry(t *testing.T) {
	f := setup(t)
	f.provisioner.onCreate = func() { f.clock.Advance(2 * time.Minute) }
	ctx := context.Background()

	res, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "sub_1")

	record := loadRecord(t, f.db, "pay_1")
	assert.Equal(t, domain.StatusFailed, record.Status)
	assert.Equal(t, domain.StepPersistence, record.Step)
	require.NotNil(t, record.ErrorMessage)
	assert.Contains(t, *record.ErrorMessage, domain.ErrSagaBudgetExceeded.Error())
	stored, err := record.StoredCredentials()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.EqualValues(t, 0, count(t, f.db, &identitydomain.Subscription{}))

	f.provisioner.mu.Lock()
	f.provisioner.onCreate = nil
	f.provisioner.mu.Unlock()

	retried, err := f.svc.RetryAutomation(ctx, record.ID.String())
	require.NoError(t, err)
	require.True(t, retried.Success)
	assert.Equal(t, "alice_1", retried.Credentials.Username)

	creates, _ := f.provisioner.counts()
	assert.Equal(t, 1, creates)
	assert.EqualValues(t, 1, count(t, f.db, &identitydomain.Subscription{}))
}

func TestRenewalExtendsActiveAccount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.ProcessPayment(ctx, payment("pay_1", "premium_monthly"))
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.svc.ProcessPayment(ctx, payment("pay_2", "premium_monthly"))
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.Equal(t, "alice_1", second.Credentials.Username)
	assert.Equal(t, "sub_1", second.Credentials.ProviderSubscriptionID)
	assert.WithinDuration(t, now.AddDate(0, 0, 60), second.Credentials.ExpiresAt, time.Minute)

	creates, extends := f.provisioner.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, extends)
	assert.EqualValues(t, 1, count(t, f.db, &identitydomain.IPTVAccount{}))

	var subs []identitydomain.Subscription
	require.NoError(t, f.db.Order("created_at asc").Find(&subs).Error)
	require.Len(t, subs, 2)
	statuses := map[string]identitydomain.SubscriptionStatus{}
	for _, sub := range subs {
		statuses[sub.PaymentID] = sub.Status
	}
	assert.Equal(t, identitydomain.SubscriptionStatusExpired, statuses["pay_1"])
	assert.Equal(t, identitydomain.SubscriptionStatusActive, statuses["pay_2"])
}

func TestRenewalFallsBackToCreateWhenExtendFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.ProcessPayment(ctx, payment("pay_1", "basic_monthly"))
	require.NoError(t, err)

	f.provisioner.mu.Lock()
	f.provisioner.extendErr = provisioningdomain.ErrProviderRejected
	f.provisioner.mu.Unlock()

	res, err := f.svc.ProcessPayment(ctx, payment("pay_2", "basic_monthly"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "alice_2", res.Credentials.Username)

	record := loadRecord(t, f.db, "pay_2")
	require.Len(t, record.Warnings, 1)
	assert.Equal(t, domain.StepProvisioning, record.Warnings[0].Step)
	assert.Contains(t, record.Warnings[0].Message, "sub_1")
	assert.EqualValues(t, 2, count(t, f.db, &identitydomain.IPTVAccount{}))
}

func TestNotificationFailureIsRecordedAsWarning(t *testing.T) {
	f := setup(t)
	f.dispatcher.err = errors.New("smtp unavailable")
	ctx := context.Background()

	res, err := f.svc.ProcessPayment(ctx, payment("pay_1", "standard_yearly"))
	require.NoError(t, err)
	assert.True(t, res.Success)

	record := loadRecord(t, f.db, "pay_1")
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Nil(t, record.NotifiedAt)
	require.Len(t, record.Warnings, 1)
	assert.Equal(t, domain.StepNotify, record.Warnings[0].Step)
	assert.Contains(t, record.Warnings[0].Message, "smtp unavailable")

	var warnings int64
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Where("action = ?", auditdomain.ActionAutomationWarning).Count(&warnings).Error)
	assert.EqualValues(t, 1, warnings)
}

func TestSkippedCredentialsPDFIsRecordedAsWarning(t *testing.T) {
	f := setup(t)
	f.dispatcher.err = fmt.Errorf("%w: font missing", notification.ErrAttachmentSkipped)

	res, err := f.svc.ProcessPayment(context.Background(), payment("pay_1", "basic_monthly"))
	require.NoError(t, err)
	require.True(t, res.Success)

	record := loadRecord(t, f.db, "pay_1")
	assert.NotNil(t, record.NotifiedAt)
	require.Len(t, record.Warnings, 1)
	assert.Equal(t, domain.StepNotify, record.Warnings[0].Step)
	assert.Contains(t, record.Warnings[0].Message, "font missing")
}

func TestUnknownPlanIsDefaultedWithWarning(t *testing.T) {
	f := setup(t)

	res, err := f.svc.ProcessPayment(context.Background(), payment("pay_1", "Gold_Weekly"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, provisioningdomain.DefaultPlan, res.Credentials.Plan)

	record := loadRecord(t, f.db, "pay_1")
	assert.Equal(t, "gold_weekly", record.SubscriptionPlan)
	require.Len(t, record.Warnings, 1)
	assert.Contains(t, record.Warnings[0].Message, "gold_weekly")
}

func TestProcessPaymentValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.ProcessPayment(ctx, domain.ProcessPaymentRequest{Plan: "basic_monthly", CustomerEmail: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentID)

	_, err = f.svc.ProcessPayment(ctx, domain.ProcessPaymentRequest{PaymentID: "pay_1", Plan: "basic_monthly", CustomerEmail: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.ProcessPayment(ctx, domain.ProcessPaymentRequest{PaymentID: "pay_1", Plan: "  ", CustomerEmail: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)

	assert.EqualValues(t, 0, count(t, f.db, &domain.AutomationRecord{}))

	_, err = f.svc.RetryAutomation(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidAutomationID)

	_, err = f.svc.ListAutomations(ctx, domain.ListRequest{Status: "exploded"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.GetAutomationStatus(ctx, "pay_missing")
	assert.ErrorIs(t, err, domain.ErrAutomationNotFound)
}

func TestListAutomationsFiltersByStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.ProcessPayment(ctx, payment("pay_1", "basic_monthly"))
	require.NoError(t, err)
	f.provisioner.mu.Lock()
	f.provisioner.createErr = provisioningdomain.ErrProviderFailure
	f.provisioner.mu.Unlock()
	req := payment("pay_2", "basic_monthly")
	req.CustomerEmail = "bob@example.com"
	_, err = f.svc.ProcessPayment(ctx, req)
	require.NoError(t, err)

	failed, err := f.svc.ListAutomations(ctx, domain.ListRequest{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "pay_2", failed[0].PaymentID)

	all, err := f.svc.ListAutomations(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProcessPaymentWithMockCollaborators(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := provisioningmocks.NewMockClient(ctrl)
	dispatcher := notificationmocks.NewMockDispatcher(ctrl)
	svc, _, _ := newFixture(t, client, dispatcher)

	result := provisioningdomain.Result{
		Username:               "fallback_user",
		Password:               "pw",
		ProviderSubscriptionID: "fallback_1700000000",
		ExpiresAt:              now.AddDate(1, 0, 0),
		Source:                 provisioningdomain.SourceFallback,
		Plan:                   provisioningdomain.MapSubscriptionToPlan("premium_yearly"),
		FallbackReason:         "exhausted",
	}
	client.EXPECT().
		CreateSubscription(gomock.Any(), provisioningdomain.CreateRequest{Email: "alice@example.com", Plan: "premium_yearly"}).
		Return(result, nil).
		Times(1)
	client.EXPECT().
		GetConnectionDetailsFromProviderResponse(result).
		DoAndReturn(func(r provisioningdomain.Result) provisioningdomain.Credentials {
			return provisioningdomain.CredentialsFromResult("http://fallback.test", r)
		}).
		Times(1)
	dispatcher.EXPECT().
		SendCredentials(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n notification.CredentialsNotification) error {
			assert.Equal(t, "fallback_user", n.Credentials.Username)
			assert.Equal(t, provisioningdomain.SourceFallback, n.Credentials.Source)
			return nil
		}).
		Times(1)

	res, err := svc.ProcessPayment(context.Background(), payment("pay_9", "premium_yearly"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "http://fallback.test", res.Credentials.Host)

	record, err := svc.GetAutomationStatus(context.Background(), "pay_9")
	require.NoError(t, err)
	require.Len(t, record.Warnings, 1)
	assert.Contains(t, record.Warnings[0].Message, "exhausted")
}
