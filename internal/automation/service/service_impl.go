package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	"github.com/smallbiznis/streamgate/internal/automation/domain"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/config"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	"github.com/smallbiznis/streamgate/internal/notification"
	obscontext "github.com/smallbiznis/streamgate/internal/observability/context"
	"github.com/smallbiznis/streamgate/internal/observability/logger"
	"github.com/smallbiznis/streamgate/internal/observability/metrics"
	"github.com/smallbiznis/streamgate/internal/observability/tracing"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultSagaTimeout   = 30 * time.Second
	defaultStepTimeout   = 10 * time.Second
	defaultNotifyTimeout = 10 * time.Second
	defaultListLimit     = 50
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   domain.Config
	repo  domain.Repository

	identity     identitydomain.Service
	provisioning provisioningdomain.Client
	dispatcher   notification.Dispatcher
	audit        auditdomain.Service

	metrics *metrics.Metrics
	saga    *metrics.SagaMetrics
	tracer  trace.Tracer
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
	Repo  domain.Repository

	Identity     identitydomain.Service
	Provisioning provisioningdomain.Client
	Dispatcher   notification.Dispatcher
	Audit        auditdomain.Service

	Metrics     *metrics.Metrics     `optional:"true"`
	SagaMetrics *metrics.SagaMetrics `optional:"true"`
}

func NewService(p ServiceParam) domain.Service {
	return New(p, domain.Config{
		SagaTimeout:   p.Cfg.Automation.SagaTimeout,
		StepTimeout:   p.Cfg.Automation.StepTimeout,
		NotifyTimeout: p.Cfg.Automation.NotifyTimeout,
	})
}

// New builds the orchestrator with an explicit saga configuration.
func New(p ServiceParam, cfg domain.Config) *Service {
	if cfg.SagaTimeout <= 0 {
		cfg.SagaTimeout = defaultSagaTimeout
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("automation.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   cfg,
		repo:  p.Repo,

		identity:     p.Identity,
		provisioning: p.Provisioning,
		dispatcher:   p.Dispatcher,
		audit:        p.Audit,

		metrics: p.Metrics,
		saga:    p.SagaMetrics,
		tracer:  otel.Tracer("streamgate/automation"),
	}
}

// ProcessPayment runs the provisioning saga once per payment id. Deliveries
// for a payment already on the ledger are answered from the record, so plan
// and email are only required to open a new one.
func (s *Service) ProcessPayment(ctx context.Context, req domain.ProcessPaymentRequest) (domain.AutomationResult, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return domain.AutomationResult{}, domain.ErrInvalidPaymentID
	}
	callerID := strings.TrimSpace(req.UserID)

	existing, err := s.repo.FindByPaymentID(ctx, s.db, paymentID)
	switch {
	case err == nil:
		return s.resume(ctx, existing, callerID)
	case !errors.Is(err, domain.ErrAutomationNotFound):
		return domain.AutomationResult{}, fmt.Errorf("load automation record: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if email == "" || !strings.Contains(email, "@") {
		return domain.AutomationResult{}, domain.ErrInvalidEmail
	}
	plan := provisioningdomain.NormalizePlan(req.Plan)
	if plan == "" {
		return domain.AutomationResult{}, domain.ErrInvalidPlan
	}

	now := s.clock.Now()
	record := &domain.AutomationRecord{
		ID:               s.genID.Generate(),
		PaymentID:        paymentID,
		Gateway:          strings.TrimSpace(req.Gateway),
		CustomerEmail:    email,
		SubscriptionPlan: plan,
		Amount:           req.Amount,
		Currency:         strings.ToUpper(strings.TrimSpace(req.Currency)),
		Status:           domain.StatusPending,
		Step:             domain.StepLedger,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.repo.InsertPending(ctx, s.db, record)
	if err != nil {
		return domain.AutomationResult{}, fmt.Errorf("create automation record: %w", err)
	}
	if !created {
		// Lost the insert race to a concurrent delivery.
		existing, err := s.repo.FindByPaymentID(ctx, s.db, paymentID)
		if err != nil {
			return domain.AutomationResult{}, fmt.Errorf("load automation record: %w", err)
		}
		return s.resume(ctx, existing, callerID)
	}

	return s.claimAndRun(ctx, record, domain.StatusPending, callerID)
}

// resume answers a delivery for a payment the ledger already holds.
func (s *Service) resume(ctx context.Context, record *domain.AutomationRecord, callerID string) (domain.AutomationResult, error) {
	switch record.Status {
	case domain.StatusCompleted:
		return s.cachedResult(*record), nil
	case domain.StatusProcessing:
		return busyResult(*record), nil
	case domain.StatusFailed:
		// Failed records rerun only through RetryAutomation.
		return failedResult(*record), nil
	}
	return s.claimAndRun(ctx, record, domain.StatusPending, callerID)
}

// RetryAutomation re-enters a failed saga at the identity step, reusing any fragments already written.
func (s *Service) RetryAutomation(ctx context.Context, automationID string) (domain.AutomationResult, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(automationID))
	if err != nil || id == 0 {
		return domain.AutomationResult{}, domain.ErrInvalidAutomationID
	}
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.AutomationResult{}, err
	}

	switch record.Status {
	case domain.StatusCompleted:
		return s.cachedResult(*record), nil
	case domain.StatusProcessing:
		return busyResult(*record), nil
	}

	s.auditLog(ctx, record, auditdomain.ActionAutomationRetry, map[string]any{
		"previous_status": string(record.Status),
		"attempts":        record.Attempts,
	})
	return s.claimAndRun(ctx, record, record.Status, "")
}

func (s *Service) GetAutomationStatus(ctx context.Context, paymentID string) (domain.AutomationRecord, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.AutomationRecord{}, domain.ErrInvalidPaymentID
	}
	record, err := s.repo.FindByPaymentID(ctx, s.db, paymentID)
	if err != nil {
		return domain.AutomationRecord{}, err
	}
	return *record, nil
}

func (s *Service) ListAutomations(ctx context.Context, req domain.ListRequest) ([]domain.AutomationRecord, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.List(ctx, s.db, domain.ListFilter{Status: status, Limit: limit})
}

func (s *Service) claimAndRun(ctx context.Context, record *domain.AutomationRecord, from domain.Status, callerUserID string) (domain.AutomationResult, error) {
	now := s.clock.Now()
	claimed, err := s.repo.Claim(ctx, s.db, record.ID, from, now)
	if err != nil {
		return domain.AutomationResult{}, fmt.Errorf("claim automation: %w", err)
	}
	if !claimed {
		current, err := s.repo.FindByID(ctx, s.db, record.ID)
		if err != nil {
			return domain.AutomationResult{}, fmt.Errorf("load automation record: %w", err)
		}
		if current.Status == domain.StatusCompleted {
			return s.cachedResult(*current), nil
		}
		return busyResult(*current), nil
	}
	s.saga.IncTransition(string(from), string(domain.StatusProcessing))

	record.Status = domain.StatusProcessing
	record.Attempts++
	record.ErrorMessage = nil
	record.UpdatedAt = now
	return s.run(ctx, record, callerUserID), nil
}

// run executes steps 2-6 for a record this caller owns in processing.
func (s *Service) run(parent context.Context, record *domain.AutomationRecord, callerUserID string) domain.AutomationResult {
	ctx := obscontext.WithAttemptID(context.WithoutCancel(parent), ulid.Make().String())
	ctx, span := s.tracer.Start(ctx, "automation.run", trace.WithAttributes(
		tracing.SafeAttributes(
			attribute.String("automation_id", record.ID.String()),
			attribute.String("plan", record.SubscriptionPlan),
			attribute.Int("attempt", record.Attempts),
		)...,
	))
	defer span.End()

	log := logger.WithContext(ctx, s.log).With(
		zap.String("automation_id", record.ID.String()),
		zap.String("payment_id", record.PaymentID),
		zap.Int("attempt", record.Attempts),
	)
	log.Info("automation started", zap.String("plan", record.SubscriptionPlan))
	s.auditLog(ctx, record, auditdomain.ActionAutomationStarted, map[string]any{"attempt": record.Attempts})

	run := &sagaRun{
		svc:      s,
		record:   record,
		log:      log,
		deadline: s.clock.Now().Add(s.cfg.SagaTimeout),
		callerID: callerUserID,
	}

	if step, err := run.execute(ctx); err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, string(step))
		return s.fail(ctx, run, step, err)
	}

	s.saga.IncTransition(string(domain.StatusProcessing), string(domain.StatusCompleted))
	s.metrics.RecordAutomation(ctx, "completed")
	s.auditLog(ctx, record, auditdomain.ActionAutomationCompleted, map[string]any{
		"source":          string(run.creds.Source),
		"subscription_id": run.subscription.ID.String(),
		"warnings":        len(record.Warnings),
	})
	log.Info("automation completed",
		zap.String("source", string(run.creds.Source)),
		zap.String("subscription_id", run.subscription.ID.String()),
	)

	creds := run.creds
	return domain.AutomationResult{
		Success:        true,
		AutomationID:   record.ID.String(),
		PaymentID:      record.PaymentID,
		Status:         domain.StatusCompleted,
		SubscriptionID: run.subscription.ID.String(),
		Credentials:    &creds,
	}
}

func (s *Service) fail(ctx context.Context, run *sagaRun, step domain.Step, cause error) domain.AutomationResult {
	record := run.record
	message := fmt.Sprintf("%s: %v", step, cause)
	if run.result != nil && run.result.ProviderSubscriptionID != "" {
		// Provider-side subscriptions are not cancelled; keep the id for manual reconciliation.
		message += fmt.Sprintf(" (provider_subscription_id=%s)", run.result.ProviderSubscriptionID)
	}

	if err := s.repo.Fail(ctx, s.db, record.ID, step, message, s.clock.Now()); err != nil {
		run.log.Error("failed to mark automation failed", zap.String("step", string(step)), zap.Error(err))
	} else {
		s.saga.IncTransition(string(domain.StatusProcessing), string(domain.StatusFailed))
	}
	s.metrics.RecordAutomation(ctx, "failed")
	s.auditLog(ctx, record, auditdomain.ActionAutomationFailed, map[string]any{
		"step":  string(step),
		"error": message,
	})
	run.log.Warn("automation failed", zap.String("step", string(step)), zap.Error(cause))

	return domain.AutomationResult{
		Success:      false,
		AutomationID: record.ID.String(),
		PaymentID:    record.PaymentID,
		Status:       domain.StatusFailed,
		Error:        message,
	}
}

func (s *Service) cachedResult(record domain.AutomationRecord) domain.AutomationResult {
	result := domain.AutomationResult{
		Success:      true,
		Cached:       true,
		AutomationID: record.ID.String(),
		PaymentID:    record.PaymentID,
		Status:       record.Status,
	}
	if record.SubscriptionID != nil {
		result.SubscriptionID = record.SubscriptionID.String()
	}
	creds, err := record.StoredCredentials()
	if err != nil {
		s.log.Warn("stored credentials unreadable", zap.String("automation_id", record.ID.String()), zap.Error(err))
	}
	result.Credentials = creds
	return result
}

func busyResult(record domain.AutomationRecord) domain.AutomationResult {
	return domain.AutomationResult{
		Busy:         true,
		AutomationID: record.ID.String(),
		PaymentID:    record.PaymentID,
		Status:       record.Status,
	}
}

func failedResult(record domain.AutomationRecord) domain.AutomationResult {
	result := domain.AutomationResult{
		AutomationID: record.ID.String(),
		PaymentID:    record.PaymentID,
		Status:       record.Status,
	}
	if record.ErrorMessage != nil {
		result.Error = *record.ErrorMessage
	}
	return result
}

// recordWarning keeps a swallowed failure on the ledger and in the audit trail.
func (s *Service) recordWarning(ctx context.Context, run *sagaRun, step domain.Step, message string) {
	record := run.record
	record.Warnings = append(record.Warnings, domain.Warning{Step: step, Message: message, At: s.clock.Now()})
	if err := s.repo.UpdateProgress(ctx, s.db, record.ID, map[string]any{"warnings": record.Warnings}, s.clock.Now()); err != nil {
		run.log.Error("failed to persist automation warning", zap.String("step", string(step)), zap.Error(err))
	}
	s.auditLog(ctx, record, auditdomain.ActionAutomationWarning, map[string]any{
		"step":    string(step),
		"message": message,
	})
	run.log.Warn("automation warning", zap.String("step", string(step)), zap.String("warning", message))
}

func (s *Service) auditLog(ctx context.Context, record *domain.AutomationRecord, action string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	payload := map[string]any{"payment_id": record.PaymentID}
	for k, v := range metadata {
		payload[k] = v
	}
	target := record.ID.String()
	if err := s.audit.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, action, auditdomain.TargetTypeAutomation, &target, payload); err != nil {
		logger.WithContext(ctx, s.log).Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func marshalCredentials(creds provisioningdomain.Credentials) (datatypes.JSON, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, identitydomain.ErrSubscriptionMissing) || errors.Is(err, identitydomain.ErrAccountNotFound)
}
