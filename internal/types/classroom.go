package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Classroom struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StaticFields
	Name       string         `gorm:"not null;column:name" json:"name"`
	GradeLevel string         `gorm:"not null;column:grade_level" json:"grade_level"`
	Subject    string         `gorm:"not null;column:subject" json:"subject"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Classroom) TableName() string { return "classroom" }
