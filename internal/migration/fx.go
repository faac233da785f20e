package migration

import (
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	automationdomain "github.com/smallbiznis/streamgate/internal/automation/domain"
	"github.com/smallbiznis/streamgate/internal/config"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBRunMigrations {
			return nil
		}
		if cfg.DBType != "postgres" {
			// Local sqlite/mysql setups get the schema from the models.
			log.Info("auto-migrating schema", zap.String("db_type", cfg.DBType))
			return conn.AutoMigrate(Models()...)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&identitydomain.User{},
		&identitydomain.Profile{},
		&automationdomain.AutomationRecord{},
		&identitydomain.IPTVAccount{},
		&identitydomain.Subscription{},
		&auditdomain.AuditLog{},
	}
}
