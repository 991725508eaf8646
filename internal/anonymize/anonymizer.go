package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"
)

// sensitiveFragments are matched against lower-cased parameter keys with a
// substring test, so "user_email" and "USER_ID" both count as sensitive.
var sensitiveFragments = []string{
	"email",
	"name",
	"phone",
	"address",
	"user_id",
	"device_id",
	"ip",
	"location",
	"personal",
	"private",
}

// Anonymizer replaces string values under sensitive keys with a stable
// one-way hash before records are queued. Non-string values under sensitive
// keys pass through unchanged; that matches the shipped app behavior and is
// a known limitation, not something to fix silently.
type Anonymizer struct{}

// NewAnonymizer creates a new anonymizer
func NewAnonymizer() *Anonymizer {
	return &Anonymizer{}
}

// Anonymize returns a copy of params with sensitive string values hashed.
// The input map is not modified.
func (a *Anonymizer) Anonymize(params models.Params) models.Params {
	if params == nil {
		return nil
	}

	out := make(models.Params, len(params))
	for key, value := range params {
		if a.IsSensitiveKey(key) {
			if s, ok := value.AsString(); ok {
				out[key] = models.String(HashValue(s))
				continue
			}
		}
		out[key] = value
	}
	return out
}

// IsSensitiveKey reports whether key matches any sensitive fragment,
// case-insensitively
func (a *Anonymizer) IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// HashValue produces the stable one-way form of a sensitive value. The hash
// must be deterministic across processes because journaled records are
// reloaded after restart.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "anon_" + hex.EncodeToString(sum[:16])
}
