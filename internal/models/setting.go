package models

import "time"

// SettingType tells readers how to parse a stored setting value.
type SettingType string

const (
	SettingTypeString  SettingType = "STRING"
	SettingTypeInteger SettingType = "INTEGER"
)

// SettingKeyMaxWorkload stores the per-lecturer allocation cap.
const SettingKeyMaxWorkload = "max_workload"

// Setting is one runtime-tunable scheduler value.
type Setting struct {
	Key         string      `db:"key" json:"key"`
	Value       string      `db:"value" json:"value"`
	Type        SettingType `db:"type" json:"type"`
	Description string      `db:"description" json:"description"`
	UpdatedBy   *string     `db:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}
