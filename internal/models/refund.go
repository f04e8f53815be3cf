package models

import (
	"time"

	"gorm.io/gorm"
)

// Refund records a refund issued against a paid transaction
type Refund struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderID         string         `gorm:"type:varchar(100);index" json:"order_id"`
	StudentBillID   uint           `gorm:"index" json:"student_bill_id"`
	GatewayRefundID string         `gorm:"type:varchar(100)" json:"gateway_refund_id"`
	Amount          int64          `json:"amount"` // whole rupiah
	Reason          string         `gorm:"type:varchar(255)" json:"reason"`
	PaymentGateway  PaymentGateway `gorm:"type:varchar(50)" json:"payment_gateway"`
	RefundDate      time.Time      `json:"refund_date"`
}
