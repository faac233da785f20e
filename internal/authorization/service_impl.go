package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleOperator = "operator"
	RoleSupport  = "support"
)

const (
	ObjectAutomation = "automation"
	ObjectAuditLog   = "audit_log"
)

const (
	ActionAutomationView  = "automation.view"
	ActionAutomationList  = "automation.list"
	ActionAutomationRetry = "automation.retry"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, operator Operator, object string, action string) error {
	subject := strings.TrimSpace(operator.Subject)
	role := strings.ToLower(strings.TrimSpace(operator.Role))
	if subject == "" || role == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	if err := s.ensureGrouping(subject, roleName(role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.audit(ctx, auditdomain.ActionAuthorizationDenied, subject, role, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.audit(ctx, auditdomain.ActionAuthorizationGrant, subject, role, object, action)
	}
	return nil
}

// ensureGrouping binds the key subject to exactly one role, so a key moved
// to another role in config loses its previous grants.
func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func (s *ServiceImpl) audit(ctx context.Context, auditAction string, subject string, role string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := object
	actorID := subject
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeOperator), &actorID, auditAction, auditdomain.TargetTypeCapability, &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   role,
	}); err != nil {
		s.log.Warn("audit write failed", zap.String("action", auditAction), zap.Error(err))
	}
}

func roleName(role string) string {
	return fmt.Sprintf("role:%s", role)
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionAutomationRetry:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Support (read-only)
		{roleName(RoleSupport), ObjectAutomation, ActionAutomationView},
		{roleName(RoleSupport), ObjectAutomation, ActionAutomationList},
		{roleName(RoleSupport), ObjectAuditLog, ActionAuditLogView},

		// Operator
		{roleName(RoleOperator), ObjectAutomation, ActionAutomationView},
		{roleName(RoleOperator), ObjectAutomation, ActionAutomationList},
		{roleName(RoleOperator), ObjectAutomation, ActionAutomationRetry},
		{roleName(RoleOperator), ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
