package models

import "time"

// Setting is a named flag or piece of app state. Value is an opaque
// payload — usually a small JSON document — interpreted by the owner
// of the key.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:text"           json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

func (Setting) TableName() string { return "settings" }

// Reserved setting keys.
const (
	// SettingMigrationCompleted gates the one-time flat→structured
	// migration. Once written, migration never runs again.
	SettingMigrationCompleted = "migrationCompleted"

	// SettingOrderCounter holds the business-facing sequential order
	// number, incremented at every checkout.
	SettingOrderCounter = "orderCounter"

	// SettingEmergencySnapshot is the reserved slot holding the
	// automatic pre-restore backup. Never listed with user backups.
	SettingEmergencySnapshot = "emergencyBackupSnapshot"
)

// MigrationFlag is the JSON payload stored under SettingMigrationCompleted.
type MigrationFlag struct {
	Completed     bool      `json:"completed"`
	Date          time.Time `json:"date"`
	SchemaVersion int       `json:"schemaVersion"`
}
