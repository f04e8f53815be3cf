package models

import (
	"time"

	"gorm.io/gorm"
)

// Student represents an enrolled student whose bills are payable online
type Student struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name          string `gorm:"type:varchar(255)" json:"name"`
	StudentNumber string `gorm:"type:varchar(50);uniqueIndex" json:"student_number"`
	ClassName     string `gorm:"type:varchar(100)" json:"class_name"`

	// Guardian contact used as the payer identity on gateway transactions
	GuardianName  string `gorm:"type:varchar(255)" json:"guardian_name"`
	GuardianEmail string `gorm:"type:varchar(255)" json:"guardian_email"`
	GuardianPhone string `gorm:"type:varchar(50)" json:"guardian_phone"`

	// Relationships
	Bills []StudentBill `gorm:"foreignKey:StudentID" json:"bills,omitempty"`
}
