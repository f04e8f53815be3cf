package services

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"sekolah_app_echo/internal/models"
)

// StatusUpdate is the mutation applied when a validated notification moves
// a record to a new status.
type StatusUpdate struct {
	Status               models.PaymentStatus
	GatewayTransactionID *string
	RawNotification      json.RawMessage
}

// PaymentStore persists the payment lifecycle. Records are created once at
// charge time and mutated only through validated status transitions; they
// are never deleted. Implementations provide their own concurrency control
// via the version check in UpdateStatusCAS.
type PaymentStore interface {
	Create(rec *models.PaymentRecord) error
	GetByOrderID(orderID string) (*models.PaymentRecord, error)

	// UpdateStatusCAS applies the update only when the stored
	// status_version still equals fromVersion, and reports whether it won.
	UpdateStatusCAS(orderID string, fromVersion int, update StatusUpdate) (bool, error)

	// Touch refreshes UpdatedAt and the audit payload without a
	// transition, for idempotent re-applies.
	Touch(orderID string, raw json.RawMessage) error

	// SetGatewayResponse attaches the gateway transaction id and the raw
	// charge response after a successful charge.
	SetGatewayResponse(orderID, gatewayTxnID string, resp json.RawMessage) error

	AppendCallback(h *models.PaymentCallbackHistory) error
	CreateRefund(r *models.Refund) error
	MarkBillPaid(billID uint, at time.Time) error

	// ListStalePending returns PENDING records created before the cutoff,
	// for worker reconciliation.
	ListStalePending(cutoff time.Time, limit int) ([]models.PaymentRecord, error)
}

// GormPaymentStore is the database-backed PaymentStore
type GormPaymentStore struct {
	db *gorm.DB
}

func NewGormPaymentStore(db *gorm.DB) *GormPaymentStore {
	return &GormPaymentStore{db: db}
}

func (s *GormPaymentStore) Create(rec *models.PaymentRecord) error {
	return s.db.Create(rec).Error
}

func (s *GormPaymentStore) GetByOrderID(orderID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := s.db.Where("order_id = ?", orderID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *GormPaymentStore) UpdateStatusCAS(orderID string, fromVersion int, update StatusUpdate) (bool, error) {
	values := map[string]interface{}{
		"status":         update.Status,
		"status_version": fromVersion + 1,
	}
	if update.GatewayTransactionID != nil {
		values["gateway_transaction_id"] = *update.GatewayTransactionID
	}
	if update.RawNotification != nil {
		values["last_notification"] = update.RawNotification
	}

	res := s.db.Model(&models.PaymentRecord{}).
		Where("order_id = ? AND status_version = ?", orderID, fromVersion).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormPaymentStore) Touch(orderID string, raw json.RawMessage) error {
	values := map[string]interface{}{"updated_at": time.Now()}
	if raw != nil {
		values["last_notification"] = raw
	}
	return s.db.Model(&models.PaymentRecord{}).
		Where("order_id = ?", orderID).
		Updates(values).Error
}

func (s *GormPaymentStore) SetGatewayResponse(orderID, gatewayTxnID string, resp json.RawMessage) error {
	return s.db.Model(&models.PaymentRecord{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"gateway_transaction_id": gatewayTxnID,
			"response_metadata":      resp,
		}).Error
}

func (s *GormPaymentStore) AppendCallback(h *models.PaymentCallbackHistory) error {
	return s.db.Create(h).Error
}

func (s *GormPaymentStore) CreateRefund(r *models.Refund) error {
	return s.db.Create(r).Error
}

func (s *GormPaymentStore) MarkBillPaid(billID uint, at time.Time) error {
	return s.db.Model(&models.StudentBill{}).
		Where("id = ? AND status != ?", billID, models.BillStatusPaid).
		Updates(map[string]interface{}{
			"status":  models.BillStatusPaid,
			"paid_at": at,
		}).Error
}

func (s *GormPaymentStore) ListStalePending(cutoff time.Time, limit int) ([]models.PaymentRecord, error) {
	var recs []models.PaymentRecord
	err := s.db.Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
