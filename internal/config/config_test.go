package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsProvisioningSettings(t *testing.T) {
	t.Setenv("PROVISIONING_API_URL", "https://panel.example.com/api/")
	t.Setenv("PROVISIONING_MODE", "FALLBACK")
	t.Setenv("PROVISIONING_BASE_DELAY", "250ms")
	t.Setenv("AUTOMATION_SAGA_TIMEOUT", "45")
	t.Setenv("OPERATOR_API_KEYS", "operator:key-1, support:key-2,broken,:nokey")

	cfg := Load()

	assert.Equal(t, "https://panel.example.com/api", cfg.Provisioning.BaseURL)
	assert.Equal(t, ProvisioningModeFallback, cfg.Provisioning.Mode)
	assert.True(t, cfg.Provisioning.FallbackOnly())
	assert.Equal(t, 250*time.Millisecond, cfg.Provisioning.BaseDelay)
	assert.Equal(t, 45*time.Second, cfg.Automation.SagaTimeout)
	assert.Equal(t, []OperatorKey{
		{Role: "operator", Key: "key-1"},
		{Role: "support", Key: "key-2"},
	}, cfg.OperatorKeys)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROVISIONING_API_URL", "")
	t.Setenv("PROVISIONING_MODE", "")

	cfg := Load()

	assert.Equal(t, ProvisioningModeLive, cfg.Provisioning.Mode)
	assert.True(t, cfg.Provisioning.FallbackOnly(), "missing base url forces fallback")
	assert.Equal(t, 3, cfg.Provisioning.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Automation.SagaTimeout)
	assert.False(t, cfg.Redis.Enabled())
}
