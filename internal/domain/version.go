package domain

import "time"

// ApplyVersion represents a versioned snapshot of the compiled object set.
// Used for audit trail and rollback capability.
type ApplyVersion struct {
	ID              string     `json:"id" db:"id"`
	VersionNumber   int        `json:"version_number" db:"version_number"`
	RenderedObjects string     `json:"rendered_objects" db:"rendered_objects"` // JSON string
	ApplyStatus     string     `json:"apply_status" db:"apply_status"`         // "pending", "success", "failed"
	ApplyError      string     `json:"apply_error,omitempty" db:"apply_error"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	AppliedAt       *time.Time `json:"applied_at,omitempty" db:"applied_at"`
}

// SyncResponse is the result of an apply (or rollback) operation.
type SyncResponse struct {
	VersionID     string   `json:"version_id,omitempty"`
	VersionNumber int      `json:"version_number,omitempty"`
	Status        string   `json:"status"` // "success", "failed", "skipped"
	Error         string   `json:"error,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}
