package agent

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Fields is the embedded column set shared by every agent resource type.
// Status, Cost, Metadata and Error are owned by the run workflow; nothing
// else is allowed to write them.
type Fields struct {
	ParentResourceID   uuid.UUID      `gorm:"type:uuid;column:parent_resource_id;index" json:"parent_resource_id"`
	ParentResourceType string         `gorm:"column:parent_resource_type" json:"parent_resource_type"`
	Status             Status         `gorm:"column:status;not null;default:idle;index" json:"status"`
	Cost               int            `gorm:"column:cost;not null;default:0" json:"cost"`
	Metadata           datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	Error              string         `gorm:"column:error" json:"error,omitempty"`
}

// Resource is implemented by every persisted agent resource type.
type Resource interface {
	GetID() uuid.UUID
	Kind() string
	Agent() *Fields
}
