package models

import "time"

// SettingType defines supported types for account setting values.
type SettingType string

const (
	SettingTypeString  SettingType = "STRING"
	SettingTypeBoolean SettingType = "BOOLEAN"
)

// Well-known setting keys.
const (
	SettingSISPostEnabled    = "sis_post_enabled"
	SettingSISRequireDueDate = "sis_require_due_date"
	SettingDefaultTermID     = "default_term_id"
)

// Setting represents a persisted account setting entry.
type Setting struct {
	Key         string      `db:"key" json:"key"`
	Value       string      `db:"value" json:"value"`
	Type        SettingType `db:"type" json:"type"`
	Description *string     `db:"description" json:"description,omitempty"`
	UpdatedBy   *string     `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}
