package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
)

const KindLessonPlan = "lesson_plan"

// LessonPlan is the one concrete agent resource: an AI-drafted lesson tied
// to a classroom via ParentResourceID.
type LessonPlan struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	agent.Fields
	Topic      string         `gorm:"not null;column:topic" json:"topic"`
	Title      string         `gorm:"column:title" json:"title"`
	Content    string         `gorm:"column:content" json:"content"`
	Objectives datatypes.JSON `gorm:"column:objectives" json:"objectives"`
	Duration   int            `gorm:"not null;default:0;column:duration" json:"duration"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LessonPlan) TableName() string { return "lesson_plan" }

func (lp *LessonPlan) GetID() uuid.UUID     { return lp.ID }
func (lp *LessonPlan) Kind() string         { return KindLessonPlan }
func (lp *LessonPlan) Agent() *agent.Fields { return &lp.Fields }
