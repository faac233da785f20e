package authorization

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/smallbiznis/streamgate/internal/config"
)

type operatorKey struct {
	digest  [sha256.Size]byte
	subject string
	role    string
}

// KeyRing resolves bearer tokens to operators. Only digests are kept in memory.
type KeyRing struct {
	keys []operatorKey
}

func NewKeyRing(cfg config.Config) *KeyRing {
	ring := &KeyRing{}
	for _, key := range cfg.OperatorKeys {
		secret := strings.TrimSpace(key.Key)
		role := strings.ToLower(strings.TrimSpace(key.Role))
		if secret == "" || role == "" {
			continue
		}
		digest := sha256.Sum256([]byte(secret))
		ring.keys = append(ring.keys, operatorKey{
			digest:  digest,
			subject: "operator:" + hex.EncodeToString(digest[:4]),
			role:    role,
		})
	}
	return ring
}

// Resolve compares the token against every key so the time taken does not
// depend on which key matched.
func (r *KeyRing) Resolve(token string) (Operator, bool) {
	token = strings.TrimSpace(token)
	if r == nil || token == "" {
		return Operator{}, false
	}
	digest := sha256.Sum256([]byte(token))

	var found Operator
	matched := false
	for _, key := range r.keys {
		if subtle.ConstantTimeCompare(digest[:], key.digest[:]) == 1 && !matched {
			found = Operator{Subject: key.subject, Role: key.role}
			matched = true
		}
	}
	return found, matched
}
