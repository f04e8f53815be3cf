package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PaymentStatus is the internal order-status vocabulary. Gateway raw statuses
// are mapped onto it exactly once, in services.MapStatus.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusAuthorized    PaymentStatus = "AUTHORIZED"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusFailed        PaymentStatus = "FAILED"
	PaymentStatusCancelled     PaymentStatus = "CANCELLED"
	PaymentStatusExpired       PaymentStatus = "EXPIRED"
	PaymentStatusRefunded      PaymentStatus = "REFUNDED"
	PaymentStatusPartialRefund PaymentStatus = "PARTIAL_REFUND"
	PaymentStatusUnknown       PaymentStatus = "UNKNOWN"
)

// IsTerminal reports whether no further transition is valid from this status,
// except the explicit refund edges out of PAID.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled,
		PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentRecord is the persisted lifecycle of one gateway transaction.
// Created once at charge time, mutated only through validated status
// transitions, never deleted.
type PaymentRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderID              string        `gorm:"type:varchar(100);uniqueIndex" json:"order_id"`
	GatewayTransactionID *string       `gorm:"type:varchar(100)" json:"gateway_transaction_id,omitempty"`
	StudentBillID        uint          `gorm:"index" json:"student_bill_id"`
	GrossAmount          int64         `json:"gross_amount"` // whole rupiah
	Method               string        `gorm:"type:varchar(50)" json:"method"`
	Status               PaymentStatus `gorm:"type:varchar(20);index" json:"status"`

	// StatusVersion is bumped on every status change and used as an
	// optimistic check so two concurrent notifications cannot both win
	// an invalid transition.
	StatusVersion int `gorm:"default:0" json:"status_version"`

	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata,omitempty"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata,omitempty"`
	LastNotification json.RawMessage `gorm:"type:jsonb" json:"last_notification,omitempty"`

	// Relationships
	StudentBill StudentBill `gorm:"foreignKey:StudentBillID" json:"student_bill,omitempty"`
	Refunds     []Refund    `gorm:"foreignKey:OrderID;references:OrderID" json:"refunds,omitempty"`
}
