package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/midtrans/midtrans-go/coreapi"

	"sekolah_app_echo/internal/models"
)

func newTestPaymentService(gw *stubGateway) (*PaymentService, *memoryPaymentStore) {
	store := newMemoryPaymentStore()
	catalog := NewFeeCatalog(10000, 100000000)
	builder := NewTransactionBuilder(BuilderConfig{OrderPrefix: "SCH"}, catalog)
	webhooks := NewWebhookService(store, testServerKey)
	return NewPaymentService(store, gw, builder, catalog, webhooks, nil), store
}

func bankTransferChargeResp() *coreapi.ChargeResponse {
	return &coreapi.ChargeResponse{
		TransactionID:     "mt-txn-1",
		TransactionStatus: "pending",
		StatusCode:        "201",
		VaNumbers: []coreapi.VANumber{
			{Bank: "bca", VANumber: "9912345678"},
		},
	}
}

func TestCreatePaymentBankTransfer(t *testing.T) {
	gw := &stubGateway{chargeResp: bankTransferChargeResp()}
	svc, store := newTestPaymentService(gw)

	res, err := svc.CreatePayment(validRequest(MethodBankTransfer), 7)
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}

	if gw.charges() != 1 {
		t.Errorf("gateway charged %d times, want 1", gw.charges())
	}
	if res.Quote.Total != 154000 {
		t.Errorf("quote total = %d, want 154000", res.Quote.Total)
	}
	if res.Instruction.Reference != "9912345678" {
		t.Errorf("instruction reference = %q, want the VA number", res.Instruction.Reference)
	}
	remaining := res.Instruction.RemainingSeconds(time.Now())
	if remaining < 23*3600 || remaining > 24*3600 {
		t.Errorf("remaining seconds = %d, want close to 24 hours", remaining)
	}

	rec, err := store.GetByOrderID(res.Record.OrderID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if rec.Status != models.PaymentStatusPending {
		t.Errorf("record status = %s, want PENDING", rec.Status)
	}
	if rec.GrossAmount != 154000 || rec.StudentBillID != 7 {
		t.Errorf("record fields off: gross %d bill %d", rec.GrossAmount, rec.StudentBillID)
	}
	if rec.GatewayTransactionID == nil || *rec.GatewayTransactionID != "mt-txn-1" {
		t.Error("gateway transaction id not attached to the record")
	}
}

func TestCreatePaymentValidationFailureSkipsGateway(t *testing.T) {
	gw := &stubGateway{chargeResp: bankTransferChargeResp()}
	svc, store := newTestPaymentService(gw)

	req := validRequest(MethodBankTransfer)
	req.Amount = 5000
	req.Items[0].Price = 5000

	_, err := svc.CreatePayment(req, 7)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != ValidationAmountTooLow {
		t.Fatalf("CreatePayment returned %v, want AmountTooLow validation error", err)
	}
	if gw.charges() != 0 {
		t.Errorf("gateway charged %d times on a rejected request, want 0", gw.charges())
	}
	if len(store.records) != 0 {
		t.Errorf("%d records persisted for a rejected request, want 0", len(store.records))
	}
}

// A failed or timed-out charge must leave a PENDING record behind so
// reconciliation can resolve the true outcome; the charge is not retried.
func TestCreatePaymentChargeFailureLeavesPending(t *testing.T) {
	gw := &stubGateway{chargeErr: &GatewayError{StatusCode: 500, Message: "internal error"}}
	svc, store := newTestPaymentService(gw)

	_, err := svc.CreatePayment(validRequest(MethodBankTransfer), 7)
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("CreatePayment returned %v, want GatewayError", err)
	}
	if gw.charges() != 1 {
		t.Errorf("gateway charged %d times, want exactly 1 with no retry", gw.charges())
	}
	if len(store.records) != 1 {
		t.Fatalf("%d records persisted, want the PENDING row", len(store.records))
	}
	for _, rec := range store.records {
		if rec.Status != models.PaymentStatusPending {
			t.Errorf("record status = %s, want PENDING", rec.Status)
		}
	}
}

func TestCheckAndApplyStatusConverges(t *testing.T) {
	gw := &stubGateway{
		chargeResp: bankTransferChargeResp(),
		statusResp: &coreapi.TransactionStatusResponse{
			TransactionID:     "mt-txn-1",
			TransactionStatus: "settlement",
			StatusCode:        "200",
			GrossAmount:       "154000.00",
		},
	}
	svc, _ := newTestPaymentService(gw)

	res, err := svc.CreatePayment(validRequest(MethodBankTransfer), 7)
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}

	rec, err := svc.CheckAndApplyStatus(context.Background(), res.Record.OrderID)
	if err != nil {
		t.Fatalf("CheckAndApplyStatus returned error: %v", err)
	}
	if rec.Status != models.PaymentStatusPaid {
		t.Errorf("record status = %s, want PAID", rec.Status)
	}

	// polling again with the same gateway answer changes nothing
	rec, err = svc.CheckAndApplyStatus(context.Background(), res.Record.OrderID)
	if err != nil {
		t.Fatalf("second CheckAndApplyStatus returned error: %v", err)
	}
	if rec.Status != models.PaymentStatusPaid || rec.StatusVersion != 1 {
		t.Errorf("repeat poll mutated the record: %s v%d", rec.Status, rec.StatusVersion)
	}
}

func TestCheckAndApplyStatusUnknownAtGateway(t *testing.T) {
	gw := &stubGateway{chargeResp: bankTransferChargeResp(), statusErr: ErrOrderNotFound}
	svc, _ := newTestPaymentService(gw)

	res, err := svc.CreatePayment(validRequest(MethodBankTransfer), 7)
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}

	rec, err := svc.CheckAndApplyStatus(context.Background(), res.Record.OrderID)
	if err != nil {
		t.Fatalf("CheckAndApplyStatus returned error: %v", err)
	}
	if rec.Status != models.PaymentStatusPending {
		t.Errorf("record status = %s, want PENDING left for reconciliation", rec.Status)
	}
}

func TestCancelPendingOnly(t *testing.T) {
	gw := &stubGateway{chargeResp: bankTransferChargeResp()}
	svc, store := newTestPaymentService(gw)

	res, err := svc.CreatePayment(validRequest(MethodBankTransfer), 7)
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}

	if err := svc.Cancel(res.Record.OrderID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	rec, _ := store.GetByOrderID(res.Record.OrderID)
	if rec.Status != models.PaymentStatusCancelled {
		t.Errorf("record status = %s, want CANCELLED", rec.Status)
	}

	// cancel again: no longer PENDING
	if err := svc.Cancel(res.Record.OrderID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("Cancel on CANCELLED returned %v, want ErrNotCancelable", err)
	}

	seedRecord(t, store, "SCH-PAID", models.PaymentStatusPaid)
	if err := svc.Cancel("SCH-PAID"); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("Cancel on PAID returned %v, want ErrNotCancelable", err)
	}
}

func TestCancelToleratesUnknownAtGateway(t *testing.T) {
	gw := &stubGateway{chargeResp: bankTransferChargeResp(), cancelErr: &GatewayError{StatusCode: 404, Message: "not found"}}
	svc, store := newTestPaymentService(gw)

	res, err := svc.CreatePayment(validRequest(MethodBankTransfer), 7)
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if err := svc.Cancel(res.Record.OrderID); err != nil {
		t.Fatalf("Cancel with gateway 404 returned error: %v", err)
	}
	rec, _ := store.GetByOrderID(res.Record.OrderID)
	if rec.Status != models.PaymentStatusCancelled {
		t.Errorf("record status = %s, want CANCELLED locally", rec.Status)
	}
}

func TestRefundPartialThenFull(t *testing.T) {
	gw := &stubGateway{refundResp: &coreapi.RefundResponse{RefundKey: "ref-1"}}
	svc, store := newTestPaymentService(gw)
	seedRecord(t, store, "SCH-1", models.PaymentStatusPaid)

	refund, err := svc.Refund("SCH-1", 50000, "overpayment")
	if err != nil {
		t.Fatalf("partial Refund returned error: %v", err)
	}
	if refund.Amount != 50000 || refund.GatewayRefundID != "ref-1" {
		t.Errorf("refund row off: %+v", refund)
	}
	rec, _ := store.GetByOrderID("SCH-1")
	if rec.Status != models.PaymentStatusPartialRefund {
		t.Errorf("record status = %s, want PARTIAL_REFUND", rec.Status)
	}

	// full refund of the gross amount from PARTIAL_REFUND
	if _, err := svc.Refund("SCH-1", 154000, "student withdrew"); err != nil {
		t.Fatalf("full Refund returned error: %v", err)
	}
	rec, _ = store.GetByOrderID("SCH-1")
	if rec.Status != models.PaymentStatusRefunded {
		t.Errorf("record status = %s, want REFUNDED", rec.Status)
	}
	if len(store.refunds) != 2 {
		t.Errorf("%d refund rows, want 2", len(store.refunds))
	}
}

func TestRefundRejectsInvalidStates(t *testing.T) {
	gw := &stubGateway{refundResp: &coreapi.RefundResponse{RefundKey: "ref-1"}}
	svc, store := newTestPaymentService(gw)

	seedRecord(t, store, "SCH-PENDING", models.PaymentStatusPending)
	if _, err := svc.Refund("SCH-PENDING", 50000, "oops"); !errors.Is(err, ErrNotRefundable) {
		t.Errorf("Refund on PENDING returned %v, want ErrNotRefundable", err)
	}

	seedRecord(t, store, "SCH-PAID", models.PaymentStatusPaid)
	if _, err := svc.Refund("SCH-PAID", 200000, "too much"); err == nil {
		t.Error("Refund above the gross amount was accepted")
	}
	if _, err := svc.Refund("SCH-PAID", 0, "zero"); err == nil {
		t.Error("zero-amount Refund was accepted")
	}
}

func TestReconcileStalePending(t *testing.T) {
	gw := &stubGateway{statusErr: ErrOrderNotFound}
	svc, store := newTestPaymentService(gw)

	past := time.Now().Add(-time.Hour)
	if err := store.Create(&models.PaymentRecord{
		OrderID:     "SCH-STALE",
		GrossAmount: 154000,
		Method:      string(MethodBankTransfer),
		Status:      models.PaymentStatusPending,
		ExpiresAt:   &past,
	}); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	store.records["SCH-STALE"].CreatedAt = time.Now().Add(-25 * time.Hour)

	n, err := svc.ReconcileStalePending(context.Background(), 100)
	if err != nil {
		t.Fatalf("ReconcileStalePending returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("reconciled %d records, want 1", n)
	}
	rec, _ := store.GetByOrderID("SCH-STALE")
	if rec.Status != models.PaymentStatusExpired {
		t.Errorf("record status = %s, want EXPIRED", rec.Status)
	}
}

func TestReconcileAppliesGatewayAnswer(t *testing.T) {
	gw := &stubGateway{
		statusResp: &coreapi.TransactionStatusResponse{
			TransactionID:     "mt-txn-1",
			TransactionStatus: "settlement",
			StatusCode:        "200",
			GrossAmount:       "154000.00",
		},
	}
	svc, store := newTestPaymentService(gw)

	past := time.Now().Add(-time.Hour)
	if err := store.Create(&models.PaymentRecord{
		OrderID:     "SCH-STALE",
		GrossAmount: 154000,
		Method:      string(MethodBankTransfer),
		Status:      models.PaymentStatusPending,
		ExpiresAt:   &past,
	}); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	store.records["SCH-STALE"].CreatedAt = time.Now().Add(-25 * time.Hour)

	n, err := svc.ReconcileStalePending(context.Background(), 100)
	if err != nil {
		t.Fatalf("ReconcileStalePending returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("reconciled %d records, want 1", n)
	}
	rec, _ := store.GetByOrderID("SCH-STALE")
	if rec.Status != models.PaymentStatusPaid {
		t.Errorf("record status = %s, want PAID per the gateway", rec.Status)
	}
}
