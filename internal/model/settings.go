package model

import (
	"database/sql/driver"
	"time"
)

const DefaultTimezone = "Europe/Helsinki"

// FallbackDueOffsets are used when a user never stored offsets: 1 hour and 1 day.
var FallbackDueOffsets = []int64{3600, 86400}

type QuietHours struct {
	Enabled bool   `json:"enabled"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func (q QuietHours) Value() (driver.Value, error) { return jsonValue(q) }
func (q *QuietHours) Scan(src any) error          { return scanJSON(src, q) }

// NoDueNudge is kept for clients; nothing schedules it yet.
type NoDueNudge struct {
	Enabled bool `json:"enabled"`
	Hour    int  `json:"hour"`
}

func (n NoDueNudge) Value() (driver.Value, error) { return jsonValue(n) }
func (n *NoDueNudge) Scan(src any) error          { return scanJSON(src, n) }

// DueOffsets are seconds before the due time.
type DueOffsets []int64

func (d DueOffsets) Value() (driver.Value, error) { return jsonValue(d) }
func (d *DueOffsets) Scan(src any) error          { return scanJSON(src, d) }

type EnabledTypes map[NotificationType]bool

func (e EnabledTypes) Value() (driver.Value, error) { return jsonValue(e) }
func (e *EnabledTypes) Scan(src any) error          { return scanJSON(src, e) }

// ReminderSettings is the per-user notification preference record.
type ReminderSettings struct {
	UserID            string       `db:"user_id" json:"-"`
	Timezone          string       `db:"timezone" json:"timezone"`
	QuietHours        QuietHours   `db:"quiet_hours" json:"quiet_hours"`
	NoDueNudge        NoDueNudge   `db:"no_due_nudge" json:"no_due_nudge"`
	DefaultDueOffsets DueOffsets   `db:"default_due_offsets" json:"default_due_offsets"`
	EnabledTypes      EnabledTypes `db:"enabled_types" json:"enabled_types"`
	CreatedAt         time.Time    `db:"created_at" json:"-"`
	UpdatedAt         time.Time    `db:"updated_at" json:"-"`
}

// DefaultSettings returns the settings a user has before ever saving any.
func DefaultSettings(userID string) ReminderSettings {
	enabled := make(EnabledTypes, len(AllTypes))
	for _, t := range AllTypes {
		enabled[t] = true
	}
	return ReminderSettings{
		UserID:            userID,
		Timezone:          DefaultTimezone,
		QuietHours:        QuietHours{Enabled: false, From: "22:00", To: "08:00"},
		NoDueNudge:        NoDueNudge{Enabled: true, Hour: 10},
		DefaultDueOffsets: append(DueOffsets(nil), FallbackDueOffsets...),
		EnabledTypes:      enabled,
	}
}

// IsEnabled reports whether notifications of type t are wanted.
// A type missing from the map counts as enabled.
func (s ReminderSettings) IsEnabled(t NotificationType) bool {
	v, ok := s.EnabledTypes[t]
	return !ok || v
}

// DueOffsets returns the positive configured offsets. FallbackDueOffsets apply
// only when nothing is stored; a stored empty list means no deadline reminders.
func (s ReminderSettings) DueOffsets() []int64 {
	if s.DefaultDueOffsets == nil {
		return append([]int64(nil), FallbackDueOffsets...)
	}
	out := make([]int64, 0, len(s.DefaultDueOffsets))
	for _, sec := range s.DefaultDueOffsets {
		if sec > 0 {
			out = append(out, sec)
		}
	}
	return out
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	Timezone          *string      `json:"timezone,omitempty"`
	QuietHours        *QuietHours  `json:"quiet_hours,omitempty"`
	NoDueNudge        *NoDueNudge  `json:"no_due_nudge,omitempty"`
	DefaultDueOffsets DueOffsets   `json:"default_due_offsets,omitempty"`
	EnabledTypes      EnabledTypes `json:"enabled_types,omitempty"`
}

// Apply merges p into s. EnabledTypes entries are merged key by key.
func (s *ReminderSettings) Apply(p SettingsPatch) {
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.QuietHours != nil {
		s.QuietHours = *p.QuietHours
	}
	if p.NoDueNudge != nil {
		s.NoDueNudge = *p.NoDueNudge
	}
	if p.DefaultDueOffsets != nil {
		s.DefaultDueOffsets = append(DueOffsets{}, p.DefaultDueOffsets...)
	}
	if len(p.EnabledTypes) > 0 {
		merged := make(EnabledTypes, len(s.EnabledTypes)+len(p.EnabledTypes))
		for k, v := range s.EnabledTypes {
			merged[k] = v
		}
		for k, v := range p.EnabledTypes {
			merged[k] = v
		}
		s.EnabledTypes = merged
	}
}
