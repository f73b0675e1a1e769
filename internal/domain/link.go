package domain

import (
	"time"

	"github.com/google/uuid"
)

// PortfolioLink is a URL registered by the administrator for the public listing
type PortfolioLink struct {
	ID        uuid.UUID `json:"id" db:"id"`
	URL       string    `json:"url" db:"url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy *string   `json:"created_by,omitempty" db:"created_by"`

	// Last stored preview snapshot, resolved by the worker
	Preview          *PreviewRecord `json:"preview,omitempty" db:"preview"`
	PreviewStatus    string         `json:"preview_status" db:"preview_status"`
	PreviewUpdatedAt *time.Time     `json:"preview_updated_at,omitempty" db:"preview_updated_at"`
}

// Preview status constants
const (
	PreviewStatusPending = "pending"
	PreviewStatusReady   = "ready"
	PreviewStatusFailed  = "failed"
)

// IsValidPreviewStatus checks if the status is one the schema accepts
func IsValidPreviewStatus(status string) bool {
	switch status {
	case PreviewStatusPending, PreviewStatusReady, PreviewStatusFailed:
		return true
	}
	return false
}
