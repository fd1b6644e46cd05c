package types

import "github.com/google/uuid"

// StaticFields is the embedded column set shared by static (non-generated)
// resources: plain ownership, no run lifecycle.
type StaticFields struct {
	OwnerID        uuid.UUID `gorm:"type:uuid;column:owner_id;index" json:"owner_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;column:organization_id;index" json:"organization_id"`
}
