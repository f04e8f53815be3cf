package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/midtrans/midtrans-go/coreapi"

	"sekolah_app_echo/internal/models"
)

// PaymentService orchestrates the payment lifecycle: build, charge,
// persist, reconcile. All collaborators are injected at construction.
type PaymentService struct {
	store    PaymentStore
	gateway  Gateway
	builder  *TransactionBuilder
	catalog  *FeeCatalog
	webhooks *WebhookService
	cache    *RedisCache // optional; nil disables poll caching
}

func NewPaymentService(store PaymentStore, gateway Gateway, builder *TransactionBuilder, catalog *FeeCatalog, webhooks *WebhookService, cache *RedisCache) *PaymentService {
	return &PaymentService{
		store:    store,
		gateway:  gateway,
		builder:  builder,
		catalog:  catalog,
		webhooks: webhooks,
		cache:    cache,
	}
}

// CreatePaymentResult holds everything the instruction surface needs after
// a successful charge
type CreatePaymentResult struct {
	Record      *models.PaymentRecord
	Instruction *PaymentInstruction
	Quote       PaymentMethodQuote
}

// CreatePayment validates the request, persists a PENDING record and
// charges the gateway. The record is written before the charge goes out so
// a timed-out charge leaves a PENDING row for reconciliation instead of an
// unknown orphan; the charge itself is never retried here.
func (s *PaymentService) CreatePayment(req PaymentRequest, billID uint) (*CreatePaymentResult, error) {
	built, err := s.builder.Build(req)
	if err != nil {
		return nil, err
	}

	reqMeta, _ := json.Marshal(built.Req)
	rec := &models.PaymentRecord{
		OrderID:         built.OrderID,
		StudentBillID:   billID,
		GrossAmount:     built.Quote.Total,
		Method:          string(req.Method),
		Status:          models.PaymentStatusPending,
		ExpiresAt:       &built.ExpiresAt,
		RequestMetadata: reqMeta,
	}
	if err := s.store.Create(rec); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	resp, err := s.gateway.Charge(built.Req)
	if err != nil {
		// record stays PENDING; the caller reconciles via CheckStatus
		// before deciding whether to retry with a new order id
		return nil, err
	}

	respMeta, _ := json.Marshal(resp)
	if err := s.store.SetGatewayResponse(rec.OrderID, resp.TransactionID, respMeta); err != nil {
		log.Printf("payment: failed to attach gateway response for order %s: %v", rec.OrderID, err)
	}
	rec.GatewayTransactionID = &resp.TransactionID
	rec.ResponseMetadata = respMeta

	return &CreatePaymentResult{
		Record:      rec,
		Instruction: InstructionFromCharge(resp, req.Method, built.Quote.Total, built.ExpiresAt),
		Quote:       built.Quote,
	}, nil
}

// GetPayment returns the record and, when the charge response is on file,
// the rebuilt payment instruction with its expired flag up to date.
func (s *PaymentService) GetPayment(orderID string) (*models.PaymentRecord, *PaymentInstruction, error) {
	rec, err := s.store.GetByOrderID(orderID)
	if err != nil {
		return nil, nil, err
	}

	var instr *PaymentInstruction
	if len(rec.ResponseMetadata) > 0 && rec.ExpiresAt != nil {
		var resp coreapi.ChargeResponse
		if err := json.Unmarshal(rec.ResponseMetadata, &resp); err == nil {
			instr = InstructionFromCharge(&resp, Method(rec.Method), rec.GrossAmount, *rec.ExpiresAt)
			instr.Expired = instr.ExpiredAt(time.Now())
		}
	}
	return rec, instr, nil
}

// pollCacheTTL absorbs aggressive client polling; within the window the
// gateway is asked once.
const pollCacheTTL = 5 * time.Second

// CheckAndApplyStatus is the on-demand status check behind the payer's
// "check status" action and the worker's reconciliation. It queries the
// gateway and routes any change through the same Apply as the webhook path,
// so both paths converge on identical state.
func (s *PaymentService) CheckAndApplyStatus(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	rec, err := s.store.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}

	status, err := s.fetchStatus(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			// charge may never have reached the gateway; nothing to apply
			return rec, nil
		}
		return nil, err
	}

	mapped, known := MapStatus(status.TransactionStatus)
	if !known || mapped == rec.Status {
		return rec, nil
	}

	raw, _ := json.Marshal(status)
	if _, err := s.webhooks.Apply(&WebhookNotification{
		OrderID:           status.OrderID,
		TransactionID:     status.TransactionID,
		TransactionStatus: status.TransactionStatus,
		StatusCode:        status.StatusCode,
		GrossAmount:       status.GrossAmount,
		Raw:               raw,
	}); err != nil {
		var anomaly *AnomalousTransitionError
		if errors.As(err, &anomaly) {
			// benign race: the webhook path already advanced the record
			return s.store.GetByOrderID(orderID)
		}
		return nil, err
	}

	return s.store.GetByOrderID(orderID)
}

// fetchStatus queries the gateway, caching the response briefly
func (s *PaymentService) fetchStatus(ctx context.Context, orderID string) (*coreapi.TransactionStatusResponse, error) {
	if s.cache == nil {
		return s.gateway.CheckStatus(orderID)
	}
	return GetOrSet(s.cache, ctx, "payment-status:"+orderID, pollCacheTTL, func() (*coreapi.TransactionStatusResponse, error) {
		return s.gateway.CheckStatus(orderID)
	})
}

// Cancel voids a transaction. Only valid while the record is PENDING;
// anything else is rejected, not silently ignored.
func (s *PaymentService) Cancel(orderID string) error {
	rec, err := s.store.GetByOrderID(orderID)
	if err != nil {
		return err
	}
	if rec.Status != models.PaymentStatusPending {
		return ErrNotCancelable
	}

	if err := s.gateway.Cancel(orderID); err != nil {
		// a 404 means the gateway never saw the charge; cancel locally
		if !errors.Is(err, ErrOrderNotFound) {
			var gwErr *GatewayError
			if !errors.As(err, &gwErr) || gwErr.StatusCode != 404 {
				return err
			}
		}
	}

	_, err = s.webhooks.Apply(&WebhookNotification{
		OrderID:           orderID,
		TransactionStatus: "cancel",
	})
	return err
}

// Refund refunds part or all of a paid transaction and records the refund.
// Only valid from PAID or PARTIAL_REFUND.
func (s *PaymentService) Refund(orderID string, amount int64, reason string) (*models.Refund, error) {
	rec, err := s.store.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.PaymentStatusPaid && rec.Status != models.PaymentStatusPartialRefund {
		return nil, ErrNotRefundable
	}
	if amount <= 0 || amount > rec.GrossAmount {
		return nil, &ValidationError{
			Code:    ValidationAmountMismatch,
			Field:   "amount",
			Message: fmt.Sprintf("refund amount %d must be within (0, %d]", amount, rec.GrossAmount),
		}
	}

	resp, err := s.gateway.Refund(orderID, amount, reason)
	if err != nil {
		return nil, err
	}

	refund := &models.Refund{
		OrderID:         orderID,
		StudentBillID:   rec.StudentBillID,
		GatewayRefundID: resp.RefundKey,
		Amount:          amount,
		Reason:          reason,
		PaymentGateway:  models.PaymentGatewayMidtrans,
		RefundDate:      time.Now(),
	}
	if err := s.store.CreateRefund(refund); err != nil {
		return nil, err
	}

	rawStatus := "partial_refund"
	if amount == rec.GrossAmount {
		rawStatus = "refund"
	}
	if _, err := s.webhooks.Apply(&WebhookNotification{
		OrderID:           orderID,
		TransactionStatus: rawStatus,
	}); err != nil {
		// the refund went through; a duplicate webhook will settle the status
		log.Printf("payment: refund recorded but status apply failed for order %s: %v", orderID, err)
	}

	return refund, nil
}

// ReconcileStalePending re-queries the gateway for PENDING records past
// their expiry window and applies whatever the gateway says. Records the
// gateway has never heard of are expired locally once their window passed.
func (s *PaymentService) ReconcileStalePending(ctx context.Context, limit int) (int, error) {
	recs, err := s.store.ListStalePending(time.Now(), limit)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return reconciled, ctx.Err()
		}
		if rec.ExpiresAt != nil && time.Now().Before(*rec.ExpiresAt) {
			continue
		}

		status, err := s.gateway.CheckStatus(rec.OrderID)
		if errors.Is(err, ErrOrderNotFound) {
			// charge never reached the gateway and the window has
			// passed: expire locally
			if _, err := s.webhooks.Apply(&WebhookNotification{
				OrderID:           rec.OrderID,
				TransactionStatus: "expire",
			}); err != nil {
				log.Printf("reconcile: failed to expire order %s: %v", rec.OrderID, err)
				continue
			}
			reconciled++
			continue
		}
		if err != nil {
			log.Printf("reconcile: status query failed for order %s: %v", rec.OrderID, err)
			continue
		}

		mapped, known := MapStatus(status.TransactionStatus)
		if !known || mapped == rec.Status {
			continue
		}

		raw, _ := json.Marshal(status)
		if _, err := s.webhooks.Apply(&WebhookNotification{
			OrderID:           status.OrderID,
			TransactionID:     status.TransactionID,
			TransactionStatus: status.TransactionStatus,
			StatusCode:        status.StatusCode,
			GrossAmount:       status.GrossAmount,
			Raw:               raw,
		}); err != nil {
			log.Printf("reconcile: failed to apply status for order %s: %v", rec.OrderID, err)
			continue
		}
		reconciled++
	}

	return reconciled, nil
}
