package adapters

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/streamgate/internal/webhook/domain"
)

// ParseTimestampedSignature reads headers shaped like "t=1700000000,v1=abc,v1=def".
func ParseTimestampedSignature(header, signatureKey string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "t":
			timestamp = value
		case signatureKey:
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, domain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

// CheckTimestamp rejects signatures older or newer than tolerance.
func CheckTimestamp(timestamp string, now time.Time, tolerance time.Duration) error {
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if tolerance <= 0 {
		return nil
	}
	skew := now.Sub(time.Unix(seconds, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return domain.ErrInvalidSignature
	}
	return nil
}

// SignTimestamped computes hex(HMAC-SHA256(secret, timestamp + "." + payload)).
func SignTimestamped(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// MatchAny compares expected against candidates in constant time.
func MatchAny(expected string, candidates []string) bool {
	matched := false
	for _, candidate := range candidates {
		if hmac.Equal([]byte(strings.ToLower(candidate)), []byte(expected)) {
			matched = true
		}
	}
	return matched
}
