package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultSignatureTolerance = 5 * time.Minute

// GatewaySettings configures one payment gateway webhook source.
type GatewaySettings struct {
	Enabled   bool          `mapstructure:"enabled"`
	Secret    string        `mapstructure:"secret"`
	Tolerance time.Duration `mapstructure:"tolerance"`
}

type GatewayConfig struct {
	Gateways map[string]GatewaySettings `mapstructure:"gateways"`
}

// Lookup returns the settings for an enabled gateway.
func (c GatewayConfig) Lookup(name string) (GatewaySettings, bool) {
	settings, ok := c.Gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok || !settings.Enabled || strings.TrimSpace(settings.Secret) == "" {
		return GatewaySettings{}, false
	}
	if settings.Tolerance <= 0 {
		settings.Tolerance = defaultSignatureTolerance
	}
	return settings, true
}

type GatewayConfigHolder struct {
	current atomic.Value // holds GatewayConfig
}

// NewStaticGatewayConfigHolder wraps a fixed configuration.
func NewStaticGatewayConfigHolder(cfg GatewayConfig) *GatewayConfigHolder {
	holder := &GatewayConfigHolder{}
	holder.current.Store(normalizeGatewayConfig(cfg))
	return holder
}

// NewGatewayConfigHolder loads gateways.yml (when present) over the env defaults
// and keeps watching the file so secrets can be rotated without a restart.
func NewGatewayConfigHolder(cfg Config, log *zap.Logger) (*GatewayConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.gateways")

	v := viper.New()
	if cfg.GatewayConfig != "" {
		v.SetConfigFile(cfg.GatewayConfig)
	} else {
		v.SetConfigName("gateways")
		v.SetConfigType("yml")
		v.AddConfigPath("/var/lib/streamgate/config")
		v.AddConfigPath("/etc/streamgate")
		v.AddConfigPath(".")
	}

	setGatewayDefault(v, "stripe", cfg.Gateways.Stripe)
	setGatewayDefault(v, "nowpayments", cfg.Gateways.NowPayments)
	setGatewayDefault(v, "moonpay", cfg.Gateways.MoonPay)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read gateway config: %w", err)
		}
		fileLoaded = false
	}

	loaded, err := unmarshalGatewayConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &GatewayConfigHolder{}
	holder.current.Store(loaded)

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := unmarshalGatewayConfig(v)
			if err != nil {
				log.Warn("gateway config reload failed", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("gateway config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *GatewayConfigHolder) Get() GatewayConfig {
	return h.current.Load().(GatewayConfig)
}

func setGatewayDefault(v *viper.Viper, name, secret string) {
	v.SetDefault("gateways."+name+".secret", secret)
	v.SetDefault("gateways."+name+".enabled", secret != "")
	v.SetDefault("gateways."+name+".tolerance", defaultSignatureTolerance)
}

func unmarshalGatewayConfig(v *viper.Viper) (GatewayConfig, error) {
	var cfg GatewayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return GatewayConfig{}, fmt.Errorf("decode gateway config: %w", err)
	}
	if err := validateGatewayConfig(cfg); err != nil {
		return GatewayConfig{}, err
	}
	return normalizeGatewayConfig(cfg), nil
}

func validateGatewayConfig(cfg GatewayConfig) error {
	for name, settings := range cfg.Gateways {
		if settings.Enabled && strings.TrimSpace(settings.Secret) == "" {
			return fmt.Errorf("gateways.%s.secret is required when enabled", name)
		}
	}
	return nil
}

func normalizeGatewayConfig(cfg GatewayConfig) GatewayConfig {
	out := GatewayConfig{Gateways: make(map[string]GatewaySettings, len(cfg.Gateways))}
	for name, settings := range cfg.Gateways {
		settings.Secret = strings.TrimSpace(settings.Secret)
		out.Gateways[strings.ToLower(strings.TrimSpace(name))] = settings
	}
	return out
}
