package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	"github.com/smallbiznis/streamgate/internal/audit/masking"
	automationdomain "github.com/smallbiznis/streamgate/internal/automation/domain"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/config"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	obscontext "github.com/smallbiznis/streamgate/internal/observability/context"
	"github.com/smallbiznis/streamgate/internal/observability/logger"
	"github.com/smallbiznis/streamgate/internal/observability/metrics"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters"
	"github.com/smallbiznis/streamgate/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxAuditPayloadBytes = 4096

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Gateways   *config.GatewayConfigHolder
	Registry   *adapters.Registry
	Automation automationdomain.Service
	Identity   identitydomain.Service
	Audit      auditdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	gateways   *config.GatewayConfigHolder
	registry   *adapters.Registry
	automation automationdomain.Service
	identity   identitydomain.Service
	audit      auditdomain.Service
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("webhook.service"),
		clock:      p.Clock,
		gateways:   p.Gateways,
		registry:   p.Registry,
		automation: p.Automation,
		identity:   p.Identity,
		audit:      p.Audit,
		metrics:    p.Metrics,
	}
}

// Handle verifies and routes one gateway delivery. Every delivery is audited,
// whatever the outcome.
func (s *Service) Handle(ctx context.Context, gateway string, payload []byte, headers http.Header) (domain.Ack, error) {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeGateway), gateway)

	ack, event, err := s.handle(ctx, gateway, payload, headers)
	s.auditDelivery(ctx, gateway, payload, event, ack, err)
	s.metrics.RecordWebhook(ctx, gateway, outcome(ack, err))

	log := logger.WithContext(ctx, s.log).With(zap.String("gateway", gateway))
	if event != nil {
		log = log.With(zap.String("payment_id", event.PaymentID), zap.String("status", string(event.Status)))
	}
	switch {
	case err == nil:
		log.Info("webhook handled", zap.String("reason", ack.Reason))
	case isClientError(err):
		log.Warn("webhook rejected", zap.Error(err))
	default:
		log.Error("webhook failed", zap.Error(err))
	}
	return ack, err
}

func (s *Service) handle(ctx context.Context, gateway string, payload []byte, headers http.Header) (domain.Ack, *domain.PaymentEvent, error) {
	if gateway == "" || !s.registry.GatewayExists(gateway) {
		return domain.Ack{}, nil, domain.ErrUnknownGateway
	}
	settings, ok := s.gateways.Get().Lookup(gateway)
	if !ok {
		return domain.Ack{}, nil, domain.ErrUnknownGateway
	}
	adapter, err := s.registry.NewAdapter(gateway, domain.AdapterConfig{
		Secret:    settings.Secret,
		Tolerance: settings.Tolerance,
		Now:       s.clock.Now,
	})
	if err != nil {
		return domain.Ack{}, nil, fmt.Errorf("build %s adapter: %w", gateway, err)
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return domain.Ack{}, nil, domain.ErrInvalidSignature
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return domain.Ack{Accepted: true, Reason: domain.ReasonIgnored}, nil, nil
		}
		return domain.Ack{}, nil, domain.ErrInvalidPayload
	}

	switch event.Status {
	case domain.PaymentStatusFinished:
		ack, err := s.processFinished(ctx, event)
		return ack, event, err
	case domain.PaymentStatusFailed:
		if _, err := s.identity.AbandonDrafts(ctx, event.PaymentID); err != nil {
			return domain.Ack{}, event, fmt.Errorf("abandon drafts: %w", err)
		}
		return domain.Ack{Accepted: true, Reason: domain.ReasonAbandoned, PaymentID: event.PaymentID}, event, nil
	case domain.PaymentStatusPartial:
		// Wait for a possible top-up.
		return domain.Ack{Accepted: true, Reason: domain.ReasonPartialPayment, PaymentID: event.PaymentID}, event, nil
	default:
		return domain.Ack{}, event, domain.ErrInvalidPayload
	}
}

func (s *Service) processFinished(ctx context.Context, event *domain.PaymentEvent) (domain.Ack, error) {
	if err := s.fillFromCheckout(ctx, event); err != nil {
		return domain.Ack{}, err
	}

	res, err := s.automation.ProcessPayment(ctx, automationdomain.ProcessPaymentRequest{
		PaymentID:     event.PaymentID,
		Plan:          event.Plan,
		CustomerEmail: event.CustomerEmail,
		Gateway:       event.Gateway,
		UserID:        callerID(event.UserID),
		Amount:        event.Amount,
		Currency:      event.Currency,
	})
	if err != nil {
		if errors.Is(err, automationdomain.ErrInvalidPaymentID) ||
			errors.Is(err, automationdomain.ErrInvalidEmail) ||
			errors.Is(err, automationdomain.ErrInvalidPlan) {
			return domain.Ack{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		return domain.Ack{}, err
	}

	ack := domain.Ack{Accepted: true, AutomationID: res.AutomationID, PaymentID: event.PaymentID}
	switch {
	case res.Success && res.Cached:
		ack.Reason = domain.ReasonAlreadyCompleted
	case res.Success:
		ack.Reason = domain.ReasonProvisioned
	case res.Busy:
		ack.Reason = domain.ReasonBusy
	default:
		ack.Reason = domain.ReasonAwaitingRetry
	}
	return ack, nil
}

// fillFromCheckout completes plan and email from the checkout draft when the gateway omits them.
func (s *Service) fillFromCheckout(ctx context.Context, event *domain.PaymentEvent) error {
	if event.Plan != "" && event.CustomerEmail != "" {
		return nil
	}
	draft, err := s.identity.FindDraft(ctx, event.PaymentID)
	if err != nil {
		if errors.Is(err, identitydomain.ErrSubscriptionMissing) {
			return nil
		}
		return fmt.Errorf("load checkout draft: %w", err)
	}
	if event.Plan == "" {
		event.Plan = draft.Plan
	}
	if event.CustomerEmail == "" {
		event.CustomerEmail = draft.CustomerEmail
	}
	if event.UserID == "" && draft.UserID != nil {
		event.UserID = draft.UserID.String()
	}
	return nil
}

func callerID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := snowflake.ParseString(raw); err != nil {
		return ""
	}
	return raw
}

func (s *Service) auditDelivery(ctx context.Context, gateway string, payload []byte, event *domain.PaymentEvent, ack domain.Ack, handleErr error) {
	if s.audit == nil {
		return
	}
	digest := sha256.Sum256(payload)
	metadata := map[string]any{
		"gateway":        gateway,
		"outcome":        outcome(ack, handleErr),
		"reason":         ack.Reason,
		"payload_sha256": hex.EncodeToString(digest[:]),
		"payload":        auditPayload(payload),
	}
	if handleErr != nil {
		metadata["error"] = handleErr.Error()
	}

	targetType := auditdomain.TargetTypePayment
	var targetID *string
	if event != nil {
		id := event.PaymentID
		targetID = &id
		metadata["payment_id"] = event.PaymentID
		metadata["status"] = string(event.Status)
		metadata["provider_status"] = event.RawProvider
	}
	if ack.AutomationID != "" {
		metadata["automation_id"] = ack.AutomationID
	}

	actorID := gateway
	if err := s.audit.AuditLog(ctx, string(auditdomain.ActorTypeGateway), &actorID, auditdomain.ActionWebhookReceived, targetType, targetID, metadata); err != nil {
		logger.WithContext(ctx, s.log).Warn("audit write failed", zap.String("action", auditdomain.ActionWebhookReceived), zap.Error(err))
	}
}

// auditPayload masks sensitive fields and bounds the stored size.
func auditPayload(payload []byte) any {
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		masked := masking.MaskSensitive(decoded)
		encoded, err := json.Marshal(masked)
		if err == nil && len(encoded) <= maxAuditPayloadBytes {
			return masked
		}
		if err == nil {
			return string(encoded[:maxAuditPayloadBytes])
		}
	}
	if len(payload) > maxAuditPayloadBytes {
		payload = payload[:maxAuditPayloadBytes]
	}
	return masking.MaskSecret(string(payload))
}

func outcome(ack domain.Ack, err error) string {
	switch {
	case err == nil && ack.Accepted:
		return "accepted"
	case err != nil && isClientError(err):
		return "rejected"
	case err != nil:
		return "error"
	}
	return "rejected"
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidSignature) ||
		errors.Is(err, domain.ErrInvalidPayload) ||
		errors.Is(err, domain.ErrUnknownGateway)
}
