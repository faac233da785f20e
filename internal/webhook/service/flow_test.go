package service_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	auditrepository "github.com/smallbiznis/streamgate/internal/audit/repository"
	auditservice "github.com/smallbiznis/streamgate/internal/audit/service"
	automationdomain "github.com/smallbiznis/streamgate/internal/automation/domain"
	automationrepository "github.com/smallbiznis/streamgate/internal/automation/repository"
	automationservice "github.com/smallbiznis/streamgate/internal/automation/service"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/config"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	identityrepository "github.com/smallbiznis/streamgate/internal/identity/repository"
	identityservice "github.com/smallbiznis/streamgate/internal/identity/service"
	"github.com/smallbiznis/streamgate/internal/notification"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters/moonpay"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters/nowpayments"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters/stripe"
	"github.com/smallbiznis/streamgate/internal/webhook/domain"
	"github.com/smallbiznis/streamgate/internal/webhook/service"
	"github.com/smallbiznis/streamgate/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lineHost = "http://line.test:8080"

type stubProvisioner struct {
	mu      sync.Mutex
	creates int
}

func (p *stubProvisioner) CreateSubscription(ctx context.Context, req provisioningdomain.CreateRequest) (provisioningdomain.Result, error) {
	p.mu.Lock()
	p.creates++
	n := p.creates
	p.mu.Unlock()

	plan := provisioningdomain.MapSubscriptionToPlan(req.Plan)
	return provisioningdomain.Result{
		Username:               fmt.Sprintf("viewer_%d", n),
		Password:               "s3cret",
		ProviderSubscriptionID: fmt.Sprintf("sub_%d", n),
		ExpiresAt:              now.AddDate(0, 0, plan.DurationDays),
		Source:                 provisioningdomain.SourceAPI,
		Plan:                   plan,
	}, nil
}

func (p *stubProvisioner) ExtendSubscription(ctx context.Context, providerSubscriptionID, plan string) (provisioningdomain.Result, error) {
	return provisioningdomain.Result{
		ProviderSubscriptionID: providerSubscriptionID,
		ExpiresAt:              now.AddDate(0, 0, 60),
		Source:                 provisioningdomain.SourceAPI,
		Plan:                   provisioningdomain.MapSubscriptionToPlan(plan),
	}, nil
}

func (p *stubProvisioner) GetConnectionDetails(username, password string) provisioningdomain.Credentials {
	return provisioningdomain.ConnectionDetails(lineHost, username, password)
}

func (p *stubProvisioner) GetConnectionDetailsFromProviderResponse(result provisioningdomain.Result) provisioningdomain.Credentials {
	return provisioningdomain.CredentialsFromResult(lineHost, result)
}

func (p *stubProvisioner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates
}

type outbox struct {
	mu   sync.Mutex
	sent []notification.CredentialsNotification
}

func (o *outbox) SendCredentials(ctx context.Context, n notification.CredentialsNotification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type flow struct {
	svc         domain.Service
	automation  automationdomain.Service
	identity    identitydomain.Service
	db          *gorm.DB
	provisioner *stubProvisioner
	outbox      *outbox
}

// newFlow wires the webhook service to the real saga, identity and audit services.
func newFlow(t *testing.T) *flow {
	t.Helper()
	conn := dbtest.Open(t,
		&automationdomain.AutomationRecord{},
		&identitydomain.User{},
		&identitydomain.Profile{},
		&identitydomain.IPTVAccount{},
		&identitydomain.Subscription{},
		&auditdomain.AuditLog{},
	)
	node, err := snowflake.NewNode(11)
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
	f := &flow{
		identity:    identity,
		db:          conn,
		provisioner: &stubProvisioner{},
		outbox:      &outbox{},
	}
	f.automation = automationservice.New(automationservice.ServiceParam{
		DB:           conn,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Repo:         automationrepository.Provide(),
		Identity:     identity,
		Provisioning: f.provisioner,
		Dispatcher:   f.outbox,
		Audit:        audit,
	}, automationdomain.Config{
		SagaTimeout:   time.Minute,
		StepTimeout:   5 * time.Second,
		NotifyTimeout: 5 * time.Second,
	})

	gateways := config.NewStaticGatewayConfigHolder(config.GatewayConfig{Gateways: map[string]config.GatewaySettings{
		"stripe":      {Enabled: true, Secret: stripeSecret},
		"nowpayments": {Enabled: true, Secret: nowSecret},
		"moonpay":     {Enabled: true, Secret: moonSecret},
	}})
	f.svc = service.NewService(service.Params{
		Log:        log,
		Clock:      clk,
		Gateways:   gateways,
		Registry:   adapters.NewRegistry(stripe.NewFactory(), nowpayments.NewFactory(), moonpay.NewFactory()),
		Automation: f.automation,
		Identity:   identity,
		Audit:      audit,
	})
	return f
}

func (f *flow) assertCompleted(t *testing.T, paymentID string) {
	t.Helper()
	var records int64
	require.NoError(t, f.db.Model(&automationdomain.AutomationRecord{}).Where("payment_id = ?", paymentID).Count(&records).Error)
	assert.Equal(t, int64(1), records)

	record, err := f.automation.GetAutomationStatus(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, automationdomain.StatusCompleted, record.Status)
	creds, err := record.StoredCredentials()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.NotEmpty(t, creds.Username)
	assert.NotEmpty(t, creds.Password)
}

func moonPayHeaders(body []byte) http.Header {
	timestamp := fmt.Sprintf("%d", now.Unix())
	header := http.Header{}
	header.Set("Moonpay-Signature-V2", "t="+timestamp+",s="+adapters.SignTimestamped(moonSecret, timestamp, body))
	return header
}

func TestGatewayDeliveriesProvisionOnceEndToEnd(t *testing.T) {
	stripeSession := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":"pi_1","payment_status":"paid","amount_total":1999,"currency":"usd","customer_details":{"email":"alice@example.com"},"metadata":{"plan":"basic_monthly"}}}}`)
	stripeIntent := []byte(`{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount_received":1999,"currency":"usd"}}}`)
	ipn := finishedIPN("pay_now")
	moonBody := []byte(`{"type":"transaction_updated","data":{"id":"tx_1","status":"completed","externalTransactionId":"pay_moon","baseCurrencyAmount":19.99,"baseCurrency":{"code":"usd"}}}`)

	tests := []struct {
		name       string
		gateway    string
		paymentID  string
		draft      *identitydomain.CreateDraftRequest
		first      []byte
		redelivery []byte
		headers    func([]byte) http.Header
	}{
		{
			name:       "stripe session then intent",
			gateway:    "stripe",
			paymentID:  "pi_1",
			first:      stripeSession,
			redelivery: stripeIntent,
			headers:    stripeHeaders,
		},
		{
			name:       "nowpayments ipn",
			gateway:    "nowpayments",
			paymentID:  "pay_now",
			first:      ipn,
			redelivery: ipn,
			headers:    nowPaymentsHeaders,
		},
		{
			name:       "moonpay with checkout draft",
			gateway:    "moonpay",
			paymentID:  "pay_moon",
			draft:      &identitydomain.CreateDraftRequest{PaymentID: "pay_moon", Plan: "basic_monthly", Email: "bob@example.com"},
			first:      moonBody,
			redelivery: moonBody,
			headers:    moonPayHeaders,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlow(t)
			ctx := context.Background()
			if tt.draft != nil {
				_, err := f.identity.CreateDraft(ctx, *tt.draft)
				require.NoError(t, err)
			}

			ack, err := f.svc.Handle(ctx, tt.gateway, tt.first, tt.headers(tt.first))
			require.NoError(t, err)
			assert.True(t, ack.Accepted)
			assert.Equal(t, domain.ReasonProvisioned, ack.Reason)
			f.assertCompleted(t, tt.paymentID)

			again, err := f.svc.Handle(ctx, tt.gateway, tt.redelivery, tt.headers(tt.redelivery))
			require.NoError(t, err)
			assert.True(t, again.Accepted)
			assert.Equal(t, domain.ReasonAlreadyCompleted, again.Reason)
			assert.Equal(t, ack.AutomationID, again.AutomationID)

			f.assertCompleted(t, tt.paymentID)
			assert.Equal(t, 1, f.provisioner.count())
			assert.Equal(t, 1, f.outbox.count())
		})
	}
}
