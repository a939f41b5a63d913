package catalog

import "time"

// TouchedEntity names one record an import changed. PostHash is the record's
// fingerprint right after the import; rollback uses it to detect later edits.
type TouchedEntity struct {
	Key      Key    `json:"key"`
	PostHash string `json:"postHash,omitempty"`
}

// EntityChanges lists the records of one sheet an import added, updated or deleted.
type EntityChanges struct {
	Added   []TouchedEntity `json:"added,omitempty"`
	Updated []TouchedEntity `json:"updated,omitempty"`
	Deleted []TouchedEntity `json:"deleted,omitempty"`
}

// Len returns the number of touched records.
func (c EntityChanges) Len() int {
	return len(c.Added) + len(c.Updated) + len(c.Deleted)
}

// Manifest lists every record an import touched, per sheet.
// Applications deleted by cascade appear under Applications.Deleted.
type Manifest struct {
	Parts        EntityChanges `json:"parts"`
	Applications EntityChanges `json:"vehicleApplications"`
	Aliases      EntityChanges `json:"aliases"`
}

// Snapshot is the pre-apply state of the catalog plus the manifest of what the
// apply changed. It is written once with the import record and never modified.
type Snapshot struct {
	CapturedAt      time.Time `json:"capturedAt"`
	BaseFingerprint string    `json:"baseFingerprint"`
	State           State     `json:"state"`
	Manifest        Manifest  `json:"manifest"`
}

// ImportSummary aggregates the counts of an applied import.
type ImportSummary struct {
	Adds    int `json:"adds"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

// ImportRecord is the history entry written for every successful apply.
type ImportRecord struct {
	ID           string        `json:"id"`
	FileName     string        `json:"fileName"`
	FileSize     int64         `json:"fileSize"`
	RowsImported int           `json:"rowsImported"`
	Summary      ImportSummary `json:"importSummary"`
	Snapshot     Snapshot      `json:"snapshotData"`
	CreatedAt    time.Time     `json:"createdAt"`

	// RolledBackAt is read from the rollback log; the record itself is immutable.
	RolledBackAt *time.Time `json:"rolledBackAt,omitempty"`
}

// RestoredCounts reports how many records a rollback restored or removed.
type RestoredCounts struct {
	Parts               int `json:"parts"`
	VehicleApplications int `json:"vehicleApplications"`
	CrossReferences     int `json:"crossReferences"`
	Aliases             int `json:"aliases"`
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Severity     string    `json:"severity"`
	ImportID     string    `json:"importId,omitempty"`
	RowsAffected int       `json:"rowsAffected"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	Action   string
	ImportID string
	Limit    int
	Offset   int
}
