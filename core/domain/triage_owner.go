package domain

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// OwnerSettings are per-owner triage preferences stored as a JSON blob.
// Unknown fields in stored settings are tolerated and preserved on
// round trip via Raw.
type OwnerSettings struct {
	Timezone          string  `json:"timezone,omitempty"`
	BriefEnabled      bool    `json:"brief_enabled"`
	BriefHour         int     `json:"brief_hour,omitempty"`
	AutoScheduling    bool    `json:"auto_scheduling"`
	SimilarityCutoff  float64 `json:"similarity_cutoff,omitempty"`
	SpamFilterEnabled bool    `json:"spam_filter_enabled"`

	Raw json.RawMessage `json:"-"`
}

// DefaultOwnerSettings returns the settings applied when an owner has
// no stored settings row.
func DefaultOwnerSettings() OwnerSettings {
	return OwnerSettings{
		Timezone:          "UTC",
		BriefEnabled:      true,
		BriefHour:         7,
		AutoScheduling:    true,
		SpamFilterEnabled: true,
	}
}

// ParseOwnerSettings decodes stored settings, keeping the original
// payload so fields this build does not know about survive updates.
func ParseOwnerSettings(raw []byte) (OwnerSettings, error) {
	s := DefaultOwnerSettings()
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultOwnerSettings(), err
	}
	s.Raw = append(json.RawMessage(nil), raw...)
	return s, nil
}

// Owner is a mailbox owner whose inbox the worker triages.
type Owner struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	DisplayName  string        `json:"display_name"`
	RefreshToken string        `json:"-"`
	Settings     OwnerSettings `json:"settings"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
