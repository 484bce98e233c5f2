// Package messageid maps provider-native message ids to stable internal
// UUIDs. The mapping is the system's at-most-once ingestion key: the same
// provider id must always produce the same internal id, including across
// reimplementations against an existing store.
package messageid

import (
	"strings"

	"github.com/google/uuid"
)

// fallbackNamespace seeds SHA-1 UUIDs for provider ids that are not
// 32-or-fewer hex characters. Fixed forever.
var fallbackNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// FromProviderID derives the internal message id for a provider-native id.
//
// Gmail ids are short hex strings; those are zero-padded to 32 characters
// and hyphenated into UUID form, which matches the ids already persisted
// by earlier versions of this system. Anything else gets a deterministic
// SHA-1 UUID in a fixed namespace.
func FromProviderID(providerID string) string {
	id := strings.ToLower(strings.TrimSpace(providerID))
	if id == "" {
		return ""
	}

	if len(id) <= 32 && isHex(id) {
		padded := strings.Repeat("0", 32-len(id)) + id
		return padded[0:8] + "-" + padded[8:12] + "-" + padded[12:16] + "-" +
			padded[16:20] + "-" + padded[20:]
	}

	return uuid.NewSHA1(fallbackNamespace, []byte(id)).String()
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
