package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/streamgate/internal/audit"
	"github.com/smallbiznis/streamgate/internal/authorization"
	"github.com/smallbiznis/streamgate/internal/automation"
	"github.com/smallbiznis/streamgate/internal/clock"
	"github.com/smallbiznis/streamgate/internal/config"
	"github.com/smallbiznis/streamgate/internal/identity"
	"github.com/smallbiznis/streamgate/internal/lock"
	"github.com/smallbiznis/streamgate/internal/migration"
	"github.com/smallbiznis/streamgate/internal/notification"
	"github.com/smallbiznis/streamgate/internal/observability"
	"github.com/smallbiznis/streamgate/internal/providers"
	"github.com/smallbiznis/streamgate/internal/provisioning"
	"github.com/smallbiznis/streamgate/internal/ratelimit"
	"github.com/smallbiznis/streamgate/internal/server"
	"github.com/smallbiznis/streamgate/internal/webhook"
	"github.com/smallbiznis/streamgate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		ratelimit.Module,

		// Functional Domains
		audit.Module,
		authorization.Module,
		identity.Module,
		provisioning.Module,
		providers.Module,
		notification.Module,
		automation.Module,
		webhook.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
