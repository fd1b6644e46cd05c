package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleSchoolAdmin UserRole = "school_admin"
	RoleTeacher     UserRole = "teacher"
	RoleParent      UserRole = "parent"
	RoleStudent     UserRole = "student"
)

type User struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password string     `gorm:"not null;column:password" json:"-"`
	Name     string     `gorm:"not null;column:name" json:"name"`
	Role     UserRole   `gorm:"not null;column:role" json:"role"`
	SchoolID *uuid.UUID `gorm:"type:uuid;column:school_id" json:"school_id,omitempty"`
	// Credits is mutated only through the ledger service; generic update
	// paths must never write this column.
	Credits   int            `gorm:"not null;default:0;column:credits" json:"credits"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }
