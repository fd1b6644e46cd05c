package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArtifactFileType string

const (
	ArtifactHTML ArtifactFileType = "html"
	ArtifactPDF  ArtifactFileType = "pdf"
	ArtifactJSON ArtifactFileType = "json"
)

// Artifact is a generated output file descriptor linked to an agent
// resource. URL points at stored bytes; Content optionally carries the text
// inline.
type Artifact struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ParentID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"parent_id"`
	FileName  string           `gorm:"not null;column:file_name" json:"file_name"`
	FileType  ArtifactFileType `gorm:"not null;column:file_type" json:"file_type"`
	URL       string           `gorm:"not null;column:url" json:"url"`
	Content   string           `gorm:"column:content" json:"content,omitempty"`
	CreatedAt time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Artifact) TableName() string { return "artifact" }
