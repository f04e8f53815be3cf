package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/midtrans/midtrans-go/coreapi"

	"sekolah_app_echo/internal/models"
)

// memoryPaymentStore is an in-memory PaymentStore for tests
type memoryPaymentStore struct {
	mu        sync.Mutex
	records   map[string]*models.PaymentRecord
	callbacks []models.PaymentCallbackHistory
	refunds   []models.Refund
	paidBills map[uint]time.Time
}

func newMemoryPaymentStore() *memoryPaymentStore {
	return &memoryPaymentStore{
		records:   make(map[string]*models.PaymentRecord),
		paidBills: make(map[uint]time.Time),
	}
}

func (s *memoryPaymentStore) Create(rec *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.records[rec.OrderID] = &cp
	return nil
}

func (s *memoryPaymentStore) GetByOrderID(orderID string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryPaymentStore) UpdateStatusCAS(orderID string, fromVersion int, update StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if !ok {
		return false, ErrPaymentNotFound
	}
	if rec.StatusVersion != fromVersion {
		return false, nil
	}
	rec.Status = update.Status
	rec.StatusVersion = fromVersion + 1
	if update.GatewayTransactionID != nil {
		rec.GatewayTransactionID = update.GatewayTransactionID
	}
	if update.RawNotification != nil {
		rec.LastNotification = update.RawNotification
	}
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (s *memoryPaymentStore) Touch(orderID string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if !ok {
		return ErrPaymentNotFound
	}
	if raw != nil {
		rec.LastNotification = raw
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *memoryPaymentStore) SetGatewayResponse(orderID, gatewayTxnID string, resp json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if !ok {
		return ErrPaymentNotFound
	}
	rec.GatewayTransactionID = &gatewayTxnID
	rec.ResponseMetadata = resp
	return nil
}

func (s *memoryPaymentStore) AppendCallback(h *models.PaymentCallbackHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, *h)
	return nil
}

func (s *memoryPaymentStore) CreateRefund(r *models.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds = append(s.refunds, *r)
	return nil
}

func (s *memoryPaymentStore) MarkBillPaid(billID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paidBills[billID] = at
	return nil
}

func (s *memoryPaymentStore) ListStalePending(cutoff time.Time, limit int) ([]models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentRecord
	for _, rec := range s.records {
		if rec.Status == models.PaymentStatusPending && rec.CreatedAt.Before(cutoff) {
			out = append(out, *rec)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// stubGateway records calls and returns canned responses
type stubGateway struct {
	mu          sync.Mutex
	chargeCalls int
	chargeResp  *coreapi.ChargeResponse
	chargeErr   error
	statusResp  *coreapi.TransactionStatusResponse
	statusErr   error
	cancelErr   error
	refundResp  *coreapi.RefundResponse
	refundErr   error
}

func (g *stubGateway) Charge(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, error) {
	g.mu.Lock()
	g.chargeCalls++
	g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	resp := *g.chargeResp
	resp.OrderID = req.TransactionDetails.OrderID
	return &resp, nil
}

func (g *stubGateway) CheckStatus(orderID string) (*coreapi.TransactionStatusResponse, error) {
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	resp := *g.statusResp
	resp.OrderID = orderID
	return &resp, nil
}

func (g *stubGateway) Cancel(orderID string) error {
	return g.cancelErr
}

func (g *stubGateway) Refund(orderID string, amount int64, reason string) (*coreapi.RefundResponse, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return g.refundResp, nil
}

func (g *stubGateway) charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chargeCalls
}
