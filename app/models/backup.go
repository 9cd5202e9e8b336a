package models

import "time"

// SchemaVersion is the current backup envelope schema. An envelope is
// restorable only when its version is at most this value.
const SchemaVersion = 3

// SystemVersion is the release string stamped into exported envelopes.
const SystemVersion = "1.4.0"

// BackupMeta is the self-describing header of an envelope.
type BackupMeta struct {
	Version       int       `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	SystemVersion string    `json:"systemVersion"`
}

// Stats is the derived summary block carried inside an envelope.
type Stats struct {
	TotalOrders   int        `json:"totalOrders"`
	TotalRevenue  float64    `json:"totalRevenue"`
	AverageTicket float64    `json:"averageTicket"`
	FirstOrderAt  *time.Time `json:"firstOrderAt,omitempty"`
	LastOrderAt   *time.Time `json:"lastOrderAt,omitempty"`
}

// BackupEnvelope is a full dataset snapshot. It is a value type: it is
// validated as a whole before any destructive action and never
// partially trusted.
type BackupEnvelope struct {
	Backup   BackupMeta        `json:"backup"`
	Orders   []Order           `json:"orders"`
	Cart     []CartEntry       `json:"cart"`
	Settings map[string]string `json:"settings"`
	Products []Product         `json:"products"`
	Stats    Stats             `json:"stats"`
}
