package domain

import (
	"strings"
	"time"
)

// APIKey backs both static keys and HMAC credentials. The raw key is never
// stored; only a SHA-256 hash plus the first 16 characters for lookup. HMAC
// credentials additionally carry a vault reference to their shared secret;
// the secret itself never touches this table.
type APIKey struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	TenantID        string     `gorm:"size:36;not null;index" json:"tenant_id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	KeyPrefix       string     `gorm:"uniqueIndex;size:16;not null" json:"key_prefix"`
	KeyHash         string     `gorm:"size:64;not null" json:"-"`
	Scopes          string     `gorm:"size:512" json:"scopes"`
	RateLimitPerMin int        `gorm:"not null;default:0" json:"rate_limit_per_min"`
	Environment     string     `gorm:"size:32;not null;default:live" json:"environment"`
	HMACSecretRef   string     `gorm:"size:255" json:"-"`
	ExpiresAt       *time.Time `gorm:"index" json:"expires_at,omitempty"`
	RevokedAt       *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const WildcardScope = "*"

// IsHMAC reports whether this key is an HMAC signing credential rather than
// a plain presented-in-clear static key.
func (k *APIKey) IsHMAC() bool {
	return k.HMACSecretRef != ""
}

// Usable reports whether the key is neither revoked nor past its expiry.
func (k *APIKey) Usable(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}

// ScopeList splits the stored comma-separated scope string.
func (k *APIKey) ScopeList() []string {
	return SplitScopes(k.Scopes)
}

func SplitScopes(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}

func JoinScopes(scopes []string) string {
	cleaned := make([]string, 0, len(scopes))
	for _, s := range scopes {
		trim := strings.TrimSpace(s)
		if trim != "" {
			cleaned = append(cleaned, trim)
		}
	}
	return strings.Join(cleaned, ",")
}
