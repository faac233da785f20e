package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/config"
	"github.com/smallbiznis/streamgate/internal/observability/metrics"
	"github.com/smallbiznis/streamgate/internal/observability/tracing"
	"github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"github.com/smallbiznis/streamgate/pkg/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	maxResponseBytes  = 1 << 20
	usernameBaseLimit = 20
)

type Client struct {
	cfg     config.ProvisioningConfig
	http    *http.Client
	policy  retry.Policy
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.SagaMetrics
	tracer  trace.Tracer
	random  io.Reader
}

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Metrics    *metrics.SagaMetrics `optional:"true"`
	HTTPClient *http.Client         `optional:"true"`
}

func NewClient(p Params) domain.Client {
	policy := retry.Policy{
		MaxAttempts: p.Config.Provisioning.MaxAttempts,
		BaseDelay:   p.Config.Provisioning.BaseDelay,
		MaxDelay:    p.Config.Provisioning.MaxDelay,
	}
	return New(p.Config.Provisioning, policy, p.HTTPClient, p.Clock, p.Log, p.Metrics)
}

// New builds a client from an explicit configuration and retry policy.
func New(cfg config.ProvisioningConfig, policy retry.Policy, httpClient *http.Client, clk clock.Clock, log *zap.Logger, m *metrics.SagaMetrics) *Client {
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.FallbackPrefix) == "" {
		cfg.FallbackPrefix = "sg"
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		policy:  policy,
		clock:   clk,
		log:     log.Named("provisioning.client"),
		metrics: m,
		tracer:  otel.Tracer("streamgate/provisioning"),
		random:  rand.Reader,
	}
}

type createPayload struct {
	Type           string `json:"type"`
	Username       string `json:"username"`
	PackageID      int    `json:"packageId"`
	MaxConnections int    `json:"maxConnections"`
	Country        string `json:"country"`
	Adult          bool   `json:"adult"`
	Paid           bool   `json:"paid"`
}

type extendPayload struct {
	PackageID int `json:"packageId"`
	Days      int `json:"days"`
}

type providerResponse struct {
	ID         json.RawMessage `json:"id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	DNSLink    string          `json:"dnsLink"`
	ExpiringAt json.RawMessage `json:"expiringAt"`
}

// CreateSubscription implements domain.Client.
func (c *Client) CreateSubscription(ctx context.Context, req domain.CreateRequest) (domain.Result, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Result{}, domain.ErrInvalidEmail
	}
	plan := domain.MapSubscriptionToPlan(req.Plan)
	if plan.Defaulted {
		c.log.Warn("unknown plan mapped to default tier",
			zap.String("requested_plan", req.Plan),
			zap.String("plan", plan.Name),
		)
	}

	ctx, span := c.tracer.Start(ctx, "provisioning.create_subscription", trace.WithAttributes(
		tracing.SafeAttributes(
			attribute.String("plan", plan.Name),
			attribute.Int("package_id", plan.PackageID),
		)...,
	))
	defer span.End()

	if c.cfg.FallbackOnly() {
		return c.fallback(plan, "fallback_mode")
	}

	username, err := c.usernameFor(email)
	if err != nil {
		return domain.Result{}, err
	}
	payload := createPayload{
		Type:           "M3U",
		Username:       username,
		PackageID:      plan.PackageID,
		MaxConnections: plan.MaxConnections,
		Country:        c.cfg.Country,
		Adult:          false,
		Paid:           true,
	}

	result, err := c.call(ctx, "create", c.cfg.BaseURL+"/subscriptions", payload, plan)
	if err == nil && (result.Password == "" || result.ProviderSubscriptionID == "") {
		// Without both the account cannot be persisted or extended later.
		err = fmt.Errorf("%w: missing id or password", domain.ErrInvalidResponse)
	}
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "provider unavailable")
		reason := "exhausted"
		switch {
		case errors.Is(err, domain.ErrProviderRejected):
			reason = "rejected"
		case errors.Is(err, domain.ErrInvalidResponse):
			reason = "invalid_response"
		}
		c.log.Warn("provisioning api failed, using fallback credentials",
			zap.String("plan", plan.Name),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return c.fallback(plan, reason)
	}
	if result.Username == "" {
		result.Username = username
	}
	span.SetAttributes(attribute.String("source", string(result.Source)))
	return result, nil
}

// ExtendSubscription implements domain.Client. Errors are returned to the caller.
func (c *Client) ExtendSubscription(ctx context.Context, providerSubscriptionID string, planName string) (domain.Result, error) {
	providerSubscriptionID = strings.TrimSpace(providerSubscriptionID)
	if providerSubscriptionID == "" || strings.HasPrefix(providerSubscriptionID, "fallback_") {
		return domain.Result{}, domain.ErrNotExtendable
	}
	if c.cfg.FallbackOnly() {
		return domain.Result{}, domain.ErrNotExtendable
	}
	plan := domain.MapSubscriptionToPlan(planName)

	ctx, span := c.tracer.Start(ctx, "provisioning.extend_subscription", trace.WithAttributes(
		attribute.String("plan", plan.Name),
	))
	defer span.End()

	endpoint := c.cfg.BaseURL + "/subscriptions/" + url.PathEscape(providerSubscriptionID) + "/extend"
	result, err := c.call(ctx, "extend", endpoint, extendPayload{PackageID: plan.PackageID, Days: plan.DurationDays}, plan)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "extend failed")
		return domain.Result{}, err
	}
	if result.ProviderSubscriptionID == "" {
		result.ProviderSubscriptionID = providerSubscriptionID
	}
	return result, nil
}

// GetConnectionDetails implements domain.Client.
func (c *Client) GetConnectionDetails(username, password string) domain.Credentials {
	return domain.ConnectionDetails(c.cfg.StreamHost, username, password)
}

// GetConnectionDetailsFromProviderResponse implements domain.Client.
func (c *Client) GetConnectionDetailsFromProviderResponse(result domain.Result) domain.Credentials {
	host := c.cfg.StreamHost
	if result.IsFallback() {
		host = c.cfg.FallbackHost
	}
	return domain.CredentialsFromResult(host, result)
}

func (c *Client) call(ctx context.Context, op, endpoint string, payload any, plan domain.PlanSpec) (domain.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Result{}, err
	}

	policy := c.policy
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.log.Info("retrying provisioning request",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return retry.Do(ctx, policy, func(ctx context.Context) (domain.Result, error) {
		result, err := c.do(ctx, endpoint, body, plan)
		switch {
		case err == nil:
			c.metrics.IncProviderCall(op, metrics.ProvisioningOutcomeSuccess)
		case retry.IsPermanent(err):
			c.metrics.IncProviderCall(op, metrics.ProvisioningOutcomePermanent)
		default:
			c.metrics.IncProviderCall(op, metrics.ProvisioningOutcomeRetryable)
		}
		return result, err
	})
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte, plan domain.PlanSpec) (domain.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Result{}, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: read body: %v", domain.ErrProviderFailure, err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return domain.Result{}, fmt.Errorf("%w: status %d", domain.ErrProviderFailure, resp.StatusCode)
	case resp.StatusCode >= 400:
		return domain.Result{}, retry.Permanent(fmt.Errorf("%w: status %d: %s", domain.ErrProviderRejected, resp.StatusCode, truncate(raw, 200)))
	}

	var decoded providerResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.Result{}, retry.Permanent(fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err))
	}
	if decoded.Password == "" && decoded.Username == "" && len(decoded.ID) == 0 {
		return domain.Result{}, retry.Permanent(domain.ErrInvalidResponse)
	}

	now := c.clock.Now()
	expiresAt, ok := parseExpiry(decoded.ExpiringAt)
	if !ok {
		expiresAt = now.AddDate(0, 0, plan.DurationDays)
	}

	return domain.Result{
		Username:               decoded.Username,
		Password:               decoded.Password,
		ProviderSubscriptionID: rawID(decoded.ID),
		ExpiresAt:              expiresAt.UTC(),
		DNSLink:                strings.TrimRight(decoded.DNSLink, "/"),
		Source:                 domain.SourceAPI,
		Plan:                   plan,
	}, nil
}

func (c *Client) fallback(plan domain.PlanSpec, reason string) (domain.Result, error) {
	now := c.clock.Now()
	suffix, err := c.randomHex(3)
	if err != nil {
		return domain.Result{}, fmt.Errorf("generate fallback username: %w", err)
	}
	password, err := c.randomPassword()
	if err != nil {
		return domain.Result{}, fmt.Errorf("generate fallback password: %w", err)
	}
	username := fmt.Sprintf("%s_%d_%s", c.cfg.FallbackPrefix, now.Unix(), suffix)

	c.metrics.IncFallback(reason)
	return domain.Result{
		Username:               username,
		Password:               password,
		ProviderSubscriptionID: "fallback_" + username,
		ExpiresAt:              now.AddDate(0, 0, plan.DurationDays).UTC(),
		DNSLink:                c.cfg.FallbackHost,
		Source:                 domain.SourceFallback,
		Plan:                   plan,
		FallbackReason:         reason,
	}, nil
}

// usernameFor builds a provider username from the email local part.
func (c *Client) usernameFor(email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := strings.ReplaceAll(slug.Make(local), "-", "")
	if base == "" {
		base = c.cfg.FallbackPrefix
	}
	if len(base) > usernameBaseLimit {
		base = base[:usernameBaseLimit]
	}
	suffix, err := c.randomHex(3)
	if err != nil {
		return "", err
	}
	return base + "_" + suffix, nil
}

func (c *Client) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.random, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (c *Client) randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := io.ReadFull(c.random, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func parseExpiry(raw json.RawMessage) (time.Time, bool) {
	value := strings.TrimSpace(string(raw))
	if value == "" || value == "null" {
		return time.Time{}, false
	}
	if unquoted, err := strconv.Unquote(value); err == nil {
		value = strings.TrimSpace(unquoted)
	}
	if value == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, true
	}
	if ts, err := time.ParseInLocation(time.DateTime, value, time.UTC); err == nil {
		return ts, true
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}

func rawID(raw json.RawMessage) string {
	value := strings.TrimSpace(string(raw))
	if value == "" || value == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(value); err == nil {
		return unquoted
	}
	return value
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n])
}
