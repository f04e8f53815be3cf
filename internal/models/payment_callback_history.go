package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// PaymentCallbackHistory is an append-only audit row for every inbound
// gateway notification, including the ones that were rejected.
type PaymentCallbackHistory struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentGateway PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID        string          `gorm:"type:varchar(100);index" json:"order_id"`
	RawStatus      string          `gorm:"type:varchar(50)" json:"raw_status"`
	SignatureOK    bool            `json:"signature_ok"`
	Applied        bool            `json:"applied"`
	Note           string          `gorm:"type:varchar(255)" json:"note"`
	Metadata       json.RawMessage `gorm:"type:jsonb" json:"metadata"`
}
