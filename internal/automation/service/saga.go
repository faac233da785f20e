package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/streamgate/internal/automation/domain"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	"github.com/smallbiznis/streamgate/internal/notification"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"go.uber.org/zap"
)

// sagaRun carries the state of one attempt between steps.
type sagaRun struct {
	svc      *Service
	record   *domain.AutomationRecord
	log      *zap.Logger
	deadline time.Time
	callerID string

	identity     identitydomain.IdentityResult
	result       *provisioningdomain.Result
	creds        provisioningdomain.Credentials
	subscription identitydomain.Subscription
	account      identitydomain.IPTVAccount
}

type sagaStep struct {
	step domain.Step
	run  func(context.Context) error
}

// execute runs the steps in order. Each step gets its own timeout and is never
// interrupted by the attempt budget; the budget is only checked between steps.
func (r *sagaRun) execute(ctx context.Context) (domain.Step, error) {
	steps := []sagaStep{
		{domain.StepIdentity, r.resolveIdentity},
		{domain.StepProvisioning, r.provision},
		{domain.StepPersistence, r.persist},
		{domain.StepNotify, r.notify},
		{domain.StepCompleted, r.finalize},
	}

	for _, st := range steps {
		if r.svc.clock.Now().After(r.deadline) {
			return st.step, fmt.Errorf("%w before %s", domain.ErrSagaBudgetExceeded, st.step)
		}

		timeout := r.svc.cfg.StepTimeout
		if st.step == domain.StepNotify {
			timeout = r.svc.cfg.NotifyTimeout
		}
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		started := time.Now()
		err := st.run(stepCtx)
		cancel()

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.svc.saga.ObserveStep(string(st.step), outcome, time.Since(started))
		if err != nil {
			return st.step, err
		}
	}
	return domain.StepCompleted, nil
}

func (r *sagaRun) progress(ctx context.Context, fields map[string]any) error {
	return r.svc.repo.UpdateProgress(ctx, r.svc.db, r.record.ID, fields, r.svc.clock.Now())
}

func (r *sagaRun) resolveIdentity(ctx context.Context) error {
	userID := r.callerID
	if r.record.UserID != nil {
		userID = r.record.UserID.String()
	}

	res, err := r.svc.identity.EnsureIdentity(ctx, identitydomain.EnsureIdentityRequest{
		Email:  r.record.CustomerEmail,
		UserID: userID,
		Metadata: map[string]any{
			"payment_id": r.record.PaymentID,
			"gateway":    r.record.Gateway,
			"plan":       r.record.SubscriptionPlan,
		},
	})
	if err != nil {
		return fmt.Errorf("ensure identity: %w", err)
	}
	r.identity = res
	for _, warning := range res.Warnings {
		r.svc.recordWarning(ctx, r, domain.StepIdentity, warning)
	}

	id := res.User.ID
	r.record.UserID = &id
	return r.progress(ctx, map[string]any{"step": domain.StepIdentity, "user_id": id})
}

func (r *sagaRun) provision(ctx context.Context) error {
	stored, err := r.record.StoredCredentials()
	if err != nil {
		r.svc.recordWarning(ctx, r, domain.StepProvisioning, "stored provisioning checkpoint unreadable: "+err.Error())
	}
	if stored != nil {
		r.log.Info("reusing provisioning checkpoint", zap.String("source", string(stored.Source)))
		return r.checkpoint(ctx, stored.Result())
	}

	_, account, err := r.svc.identity.FindSubscriptionByAutomation(ctx, r.record.ID)
	switch {
	case err == nil && account != nil:
		r.log.Info("reusing account written by a previous attempt", zap.String("account_id", account.ID.String()))
		return r.checkpoint(ctx, account.Result(r.record.SubscriptionPlan))
	case err != nil && !isNotFound(err):
		return fmt.Errorf("lookup previous records: %w", err)
	}

	plan := provisioningdomain.MapSubscriptionToPlan(r.record.SubscriptionPlan)
	if plan.Defaulted {
		r.svc.recordWarning(ctx, r, domain.StepProvisioning,
			fmt.Sprintf("unknown plan %q provisioned as %s", r.record.SubscriptionPlan, plan.Name))
	}

	result, renewed := r.renew(ctx, plan)
	if !renewed {
		result, err = r.svc.provisioning.CreateSubscription(ctx, provisioningdomain.CreateRequest{
			Email: r.record.CustomerEmail,
			Plan:  plan.Name,
		})
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
	}

	if result.IsFallback() {
		r.svc.recordWarning(ctx, r, domain.StepProvisioning,
			fmt.Sprintf("fallback credentials issued (%s); provider account requires manual reconciliation", result.FallbackReason))
	}
	r.svc.metrics.RecordProvisioning(ctx, string(result.Source), plan.Name)
	return r.checkpoint(ctx, result)
}

// renew extends the customer's active provider account instead of creating a second one.
func (r *sagaRun) renew(ctx context.Context, plan provisioningdomain.PlanSpec) (provisioningdomain.Result, bool) {
	if r.identity.Created || r.record.UserID == nil {
		return provisioningdomain.Result{}, false
	}
	account, err := r.svc.identity.FindActiveAccount(ctx, *r.record.UserID)
	if err != nil {
		if !errors.Is(err, identitydomain.ErrAccountNotFound) {
			r.log.Warn("active account lookup failed", zap.Error(err))
		}
		return provisioningdomain.Result{}, false
	}
	if account.Source != provisioningdomain.SourceAPI {
		return provisioningdomain.Result{}, false
	}

	extended, err := r.svc.provisioning.ExtendSubscription(ctx, account.ProviderSubscriptionID, plan.Name)
	if err != nil {
		r.svc.recordWarning(ctx, r, domain.StepProvisioning,
			fmt.Sprintf("renewal of provider subscription %s failed, creating a new one: %v", account.ProviderSubscriptionID, err))
		return provisioningdomain.Result{}, false
	}

	if extended.Username == "" {
		extended.Username = account.Username
	}
	if extended.Password == "" {
		extended.Password = account.Password
	}
	if extended.DNSLink == "" {
		extended.DNSLink = account.DNSLink
	}
	if extended.ProviderSubscriptionID == "" {
		extended.ProviderSubscriptionID = account.ProviderSubscriptionID
	}
	extended.Source = provisioningdomain.SourceAPI
	extended.Plan = plan
	r.log.Info("renewed existing provider subscription", zap.String("provider_subscription_id", extended.ProviderSubscriptionID))
	return extended, true
}

// checkpoint stores the provisioning result so a retry never provisions twice.
func (r *sagaRun) checkpoint(ctx context.Context, result provisioningdomain.Result) error {
	r.result = &result
	r.creds = r.svc.provisioning.GetConnectionDetailsFromProviderResponse(result)

	raw, err := marshalCredentials(r.creds)
	if err != nil {
		return err
	}
	r.record.ProviderResponse = raw
	return r.progress(ctx, map[string]any{"step": domain.StepProvisioning, "provider_response": raw})
}

func (r *sagaRun) persist(ctx context.Context) error {
	sub, account, err := r.svc.identity.WriteSubscriptionRecords(ctx, identitydomain.WriteRecordsRequest{
		UserID:       *r.record.UserID,
		PaymentID:    r.record.PaymentID,
		Email:        r.record.CustomerEmail,
		AutomationID: r.record.ID,
		Plan:         r.record.SubscriptionPlan,
		Result:       *r.result,
		Now:          r.svc.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("write subscription records: %w", err)
	}
	r.subscription = sub
	r.account = account

	subID := sub.ID
	r.record.SubscriptionID = &subID
	return r.progress(ctx, map[string]any{"step": domain.StepPersistence, "subscription_id": subID})
}

// notify sends credentials at most once per automation. Delivery failures are warnings.
func (r *sagaRun) notify(ctx context.Context) error {
	if r.record.NotifiedAt != nil {
		r.log.Info("credentials already delivered, skipping notification")
		return r.progress(ctx, map[string]any{"step": domain.StepNotify})
	}

	err := r.svc.dispatcher.SendCredentials(ctx, notification.CredentialsNotification{
		Email:       r.record.CustomerEmail,
		PaymentID:   r.record.PaymentID,
		Amount:      r.record.Amount.String(),
		Currency:    r.record.Currency,
		Credentials: r.creds,
	})
	switch {
	case errors.Is(err, notification.ErrAttachmentSkipped):
		r.svc.recordWarning(ctx, r, domain.StepNotify, "credentials sent without pdf: "+err.Error())
	case err != nil:
		r.svc.metrics.RecordNotification(ctx, "failed")
		r.svc.recordWarning(ctx, r, domain.StepNotify, "credentials notification failed: "+err.Error())
		return r.progress(ctx, map[string]any{"step": domain.StepNotify})
	}

	r.svc.metrics.RecordNotification(ctx, "sent")
	now := r.svc.clock.Now()
	r.record.NotifiedAt = &now
	return r.progress(ctx, map[string]any{"step": domain.StepNotify, "notified_at": now})
}

func (r *sagaRun) finalize(ctx context.Context) error {
	raw, err := marshalCredentials(r.creds)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"provider_response": raw,
		"subscription_id":   r.subscription.ID,
		"user_id":           *r.record.UserID,
	}
	if err := r.svc.repo.Complete(ctx, r.svc.db, r.record.ID, fields, r.svc.clock.Now()); err != nil {
		return fmt.Errorf("finalize ledger: %w", err)
	}
	r.record.Status = domain.StatusCompleted
	return nil
}
