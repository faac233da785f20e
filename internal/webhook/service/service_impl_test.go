package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	auditrepository "github.com/smallbiznis/streamgate/internal/audit/repository"
	auditservice "github.com/smallbiznis/streamgate/internal/audit/service"
	automationdomain "github.com/smallbiznis/streamgate/internal/automation/domain"
	automationmocks "github.com/smallbiznis/streamgate/internal/automation/domain/mocks"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/config"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	identitymocks "github.com/smallbiznis/streamgate/internal/identity/domain/mocks"
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
)

const (
	stripeSecret = "whsec_test"
	nowSecret    = "ipn_test"
	moonSecret   = "wk_test"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc        domain.Service
	audit      auditdomain.Service
	automation *automationmocks.MockService
	identity   *identitymocks.MockService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	conn := dbtest.Open(t, &auditdomain.AuditLog{})
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	fake := clock.NewFakeClock(now)

	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	gateways := config.NewStaticGatewayConfigHolder(config.GatewayConfig{Gateways: map[string]config.GatewaySettings{
		"stripe":      {Enabled: true, Secret: stripeSecret},
		"nowpayments": {Enabled: true, Secret: nowSecret},
		"moonpay":     {Enabled: true, Secret: moonSecret},
	}})

	f := &fixture{
		audit:      audit,
		automation: automationmocks.NewMockService(ctrl),
		identity:   identitymocks.NewMockService(ctrl),
	}
	f.svc = service.NewService(service.Params{
		Log:        zap.NewNop(),
		Clock:      fake,
		Gateways:   gateways,
		Registry:   adapters.NewRegistry(stripe.NewFactory(), nowpayments.NewFactory(), moonpay.NewFactory()),
		Automation: f.automation,
		Identity:   f.identity,
		Audit:      audit,
	})
	return f
}

func (f *fixture) auditRows(t *testing.T, paymentID string) []auditdomain.AuditLog {
	t.Helper()
	rows, err := f.audit.List(context.Background(), auditdomain.ListAuditLogRequest{
		Action:     auditdomain.ActionWebhookReceived,
		TargetType: auditdomain.TargetTypePayment,
		TargetID:   paymentID,
	})
	require.NoError(t, err)
	return rows
}

func nowPaymentsHeaders(body []byte) http.Header {
	header := http.Header{}
	header.Set("x-nowpayments-sig", nowpayments.Sign(nowSecret, body))
	return header
}

func stripeHeaders(body []byte) http.Header {
	timestamp := fmt.Sprintf("%d", now.Unix())
	header := http.Header{}
	header.Set("Stripe-Signature", "t="+timestamp+",v1="+adapters.SignTimestamped(stripeSecret, timestamp, body))
	return header
}

func finishedIPN(paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"payment_id":1,"order_id":%q,"payment_status":"finished","price_amount":10,"price_currency":"usd","order_description":"plan=basic_monthly&email=alice%%40example.com&user_id=1700000000000"}`, paymentID))
}

func TestFinishedPaymentIsProvisioned(t *testing.T) {
	f := newFixture(t)
	body := finishedIPN("pay_1")

	f.automation.EXPECT().
		ProcessPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req automationdomain.ProcessPaymentRequest) (automationdomain.AutomationResult, error) {
			assert.Equal(t, "pay_1", req.PaymentID)
			assert.Equal(t, "basic_monthly", req.Plan)
			assert.Equal(t, "alice@example.com", req.CustomerEmail)
			assert.Equal(t, "nowpayments", req.Gateway)
			assert.Equal(t, "1700000000000", req.UserID)
			assert.Equal(t, "USD", req.Currency)
			return automationdomain.AutomationResult{Success: true, AutomationID: "42", PaymentID: "pay_1"}, nil
		})

	ack, err := f.svc.Handle(context.Background(), "NOWPayments", body, nowPaymentsHeaders(body))
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Equal(t, domain.ReasonProvisioned, ack.Reason)
	assert.Equal(t, "42", ack.AutomationID)

	rows := f.auditRows(t, "pay_1")
	require.Len(t, rows, 1)
	assert.Equal(t, "gateway", rows[0].ActorType)
	assert.Equal(t, "accepted", rows[0].Metadata["outcome"])
	assert.Equal(t, "42", rows[0].Metadata["automation_id"])
	assert.NotEmpty(t, rows[0].Metadata["payload_sha256"])
}

func TestFinishedPaymentReasons(t *testing.T) {
	tests := []struct {
		name   string
		result automationdomain.AutomationResult
		want   string
	}{
		{"cached", automationdomain.AutomationResult{Success: true, Cached: true, AutomationID: "1"}, domain.ReasonAlreadyCompleted},
		{"busy", automationdomain.AutomationResult{Busy: true, AutomationID: "1"}, domain.ReasonBusy},
		{"failed", automationdomain.AutomationResult{AutomationID: "1", Status: automationdomain.StatusFailed}, domain.ReasonAwaitingRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := finishedIPN("pay_" + tt.name)
			f.automation.EXPECT().ProcessPayment(gomock.Any(), gomock.Any()).Return(tt.result, nil)

			ack, err := f.svc.Handle(context.Background(), "nowpayments", body, nowPaymentsHeaders(body))
			require.NoError(t, err)
			assert.True(t, ack.Accepted)
			assert.Equal(t, tt.want, ack.Reason)
		})
	}
}

func TestInvalidSignatureNeverStartsAutomation(t *testing.T) {
	f := newFixture(t)
	body := finishedIPN("pay_forged")
	headers := http.Header{}
	headers.Set("x-nowpayments-sig", nowpayments.Sign("attacker", body))

	_, err := f.svc.Handle(context.Background(), "nowpayments", body, headers)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	rows, err := f.audit.List(context.Background(), auditdomain.ListAuditLogRequest{Action: auditdomain.ActionWebhookReceived})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "rejected", rows[0].Metadata["outcome"])
	assert.Nil(t, rows[0].TargetID)
}

func TestUnknownGateway(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Handle(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrUnknownGateway)

	disabled := newFixture(t)
	disabled.svc = service.NewService(service.Params{
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(now),
		Gateways:   config.NewStaticGatewayConfigHolder(config.GatewayConfig{}),
		Registry:   adapters.NewRegistry(stripe.NewFactory()),
		Automation: disabled.automation,
		Identity:   disabled.identity,
		Audit:      disabled.audit,
	})
	_, err = disabled.svc.Handle(context.Background(), "stripe", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrUnknownGateway)
}

func TestIgnoredEventIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"payment_id":1,"order_id":"pay_wait","payment_status":"confirming"}`)

	ack, err := f.svc.Handle(context.Background(), "nowpayments", body, nowPaymentsHeaders(body))
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Equal(t, domain.ReasonIgnored, ack.Reason)
}

func TestMalformedPayloadIsRejected(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"payment_status":"finished"}`)

	_, err := f.svc.Handle(context.Background(), "nowpayments", body, nowPaymentsHeaders(body))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestFailedPaymentAbandonsDrafts(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"id":"evt_1","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_7","amount":999,"currency":"usd"}}}`)
	f.identity.EXPECT().AbandonDrafts(gomock.Any(), "pi_7").Return(int64(1), nil)

	ack, err := f.svc.Handle(context.Background(), "stripe", body, stripeHeaders(body))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAbandoned, ack.Reason)
	assert.Equal(t, "pi_7", ack.PaymentID)

	rows := f.auditRows(t, "pi_7")
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0].Metadata["status"])
	assert.Equal(t, "payment_intent.payment_failed", rows[0].Metadata["provider_status"])
}

func TestPartialPaymentWaits(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"payment_id":1,"order_id":"pay_part","payment_status":"partially_paid"}`)

	ack, err := f.svc.Handle(context.Background(), "nowpayments", body, nowPaymentsHeaders(body))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonPartialPayment, ack.Reason)
}

func TestCheckoutDraftFillsMissingDetails(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"type":"transaction_updated","data":{"id":"tx_1","status":"completed","externalTransactionId":"pay_moon","externalCustomerId":"not-a-snowflake"}}`)
	timestamp := fmt.Sprintf("%d", now.Unix())
	headers := http.Header{}
	headers.Set("Moonpay-Signature-V2", "t="+timestamp+",s="+adapters.SignTimestamped(moonSecret, timestamp, body))

	f.identity.EXPECT().FindDraft(gomock.Any(), "pay_moon").Return(&identitydomain.Subscription{
		PaymentID:     "pay_moon",
		Plan:          "premium_yearly",
		CustomerEmail: "dana@example.com",
	}, nil)
	f.automation.EXPECT().
		ProcessPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req automationdomain.ProcessPaymentRequest) (automationdomain.AutomationResult, error) {
			assert.Equal(t, "premium_yearly", req.Plan)
			assert.Equal(t, "dana@example.com", req.CustomerEmail)
			assert.Empty(t, req.UserID, "non-snowflake ids are dropped")
			return automationdomain.AutomationResult{Success: true, AutomationID: "7"}, nil
		})

	ack, err := f.svc.Handle(context.Background(), "moonpay", body, headers)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonProvisioned, ack.Reason)
}

func TestValidationFailureIsClientError(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"payment_id":1,"order_id":"pay_noemail","payment_status":"finished","order_description":"plan=basic_monthly"}`)

	f.identity.EXPECT().FindDraft(gomock.Any(), "pay_noemail").Return(nil, identitydomain.ErrSubscriptionMissing)
	f.automation.EXPECT().ProcessPayment(gomock.Any(), gomock.Any()).Return(automationdomain.AutomationResult{}, automationdomain.ErrInvalidEmail)

	_, err := f.svc.Handle(context.Background(), "nowpayments", body, nowPaymentsHeaders(body))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestInfrastructureErrorPropagates(t *testing.T) {
	f := newFixture(t)
	body := finishedIPN("pay_down")
	boom := errors.New("database unavailable")
	f.automation.EXPECT().ProcessPayment(gomock.Any(), gomock.Any()).Return(automationdomain.AutomationResult{}, boom)

	_, err := f.svc.Handle(context.Background(), "nowpayments", body, nowPaymentsHeaders(body))
	assert.ErrorIs(t, err, boom)

	rows := f.auditRows(t, "pay_down")
	require.Len(t, rows, 1)
	assert.Equal(t, "error", rows[0].Metadata["outcome"])
}
