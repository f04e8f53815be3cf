package models

import (
	"time"

	"gorm.io/gorm"
)

// BillStatus represents the lifecycle of a student bill
type BillStatus string

const (
	BillStatusPending  BillStatus = "pending"
	BillStatusPaid     BillStatus = "paid"
	BillStatusOverdue  BillStatus = "overdue"
	BillStatusCanceled BillStatus = "canceled"
)

// StudentBill represents a single billed amount for a student (tuition,
// registration, activity fee). Online payments are always created against
// one bill.
type StudentBill struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	StudentID         uint       `gorm:"index" json:"student_id"`
	BillingScheduleID *uint      `gorm:"index" json:"billing_schedule_id,omitempty"`
	Title             string     `gorm:"type:varchar(255)" json:"title"`
	Period            string     `gorm:"type:varchar(100)" json:"period"` // e.g. "January 2026"
	Amount            int64      `json:"amount"`                          // whole rupiah
	Status            BillStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	DueDate           time.Time  `json:"due_date"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`

	// Relationships
	Student  Student         `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Payments []PaymentRecord `gorm:"foreignKey:StudentBillID" json:"payments,omitempty"`
}
