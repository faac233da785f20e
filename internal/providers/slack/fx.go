package slack

import (
	"strings"

	"github.com/smallbiznis/streamgate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if strings.TrimSpace(cfg.Alerts.SlackWebhookURL) == "" {
		log.Info("SLACK_WEBHOOK_URL not set, operator alerts are disabled")
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.Alerts.SlackWebhookURL, nil)
}
