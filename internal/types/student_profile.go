package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StudentProfile struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StaticFields
	StudentName    string         `gorm:"not null;column:student_name" json:"student_name"`
	Needs          string         `gorm:"column:needs" json:"needs"`
	LearningStyle  string         `gorm:"column:learning_style" json:"learning_style"`
	ClassroomID    *uuid.UUID     `gorm:"type:uuid;column:classroom_id;index" json:"classroom_id,omitempty"`
	GradeLevel     string         `gorm:"column:grade_level" json:"grade_level"`
	AdditionalInfo datatypes.JSON `gorm:"column:additional_info" json:"additional_info"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StudentProfile) TableName() string { return "student_profile" }
