// Package masking redacts credentials and personal data before they reach the audit trail.
package masking

import "strings"

const maskToken = "****"

var sensitiveMarkers = []string{"password", "secret", "token", "signature", "card", "cvc", "iban", "wallet_address"}

// MaskSecret keeps a short suffix so operators can still correlate values.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(value), "@")
	if !ok || local == "" {
		return MaskSecret(value)
	}
	return local[:1] + maskToken + "@" + domain
}

// MaskSensitive returns a copy of input with sensitive keys redacted at any depth.
func MaskSensitive(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = maskField(key, value)
	}
	return out
}

func maskField(key string, value any) any {
	lower := strings.ToLower(key)
	if str, ok := value.(string); ok {
		switch {
		case isSensitive(lower):
			return MaskSecret(str)
		case strings.Contains(lower, "email"):
			return MaskEmail(str)
		}
		return str
	}

	switch cast := value.(type) {
	case map[string]any:
		return MaskSensitive(cast)
	case []any:
		items := make([]any, 0, len(cast))
		for _, item := range cast {
			items = append(items, maskField(key, item))
		}
		return items
	default:
		return value
	}
}

func isSensitive(key string) bool {
	for _, marker := range sensitiveMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
