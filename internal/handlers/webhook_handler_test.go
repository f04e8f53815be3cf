package handlers

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"sekolah_app_echo/internal/models"
	"sekolah_app_echo/internal/services"
)

const testServerKey = "SB-Mid-server-testkey"

// fakePaymentStore is a minimal in-memory services.PaymentStore for
// webhook-path tests.
type fakePaymentStore struct {
	mu        sync.Mutex
	records   map[string]*models.PaymentRecord
	callbacks []models.PaymentCallbackHistory
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{records: make(map[string]*models.PaymentRecord)}
}

func (s *fakePaymentStore) Create(rec *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.OrderID] = &cp
	return nil
}

func (s *fakePaymentStore) GetByOrderID(orderID string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if !ok {
		return nil, services.ErrPaymentNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakePaymentStore) UpdateStatusCAS(orderID string, fromVersion int, update services.StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	if !ok {
		return false, services.ErrPaymentNotFound
	}
	if rec.StatusVersion != fromVersion {
		return false, nil
	}
	rec.Status = update.Status
	rec.StatusVersion = fromVersion + 1
	return true, nil
}

func (s *fakePaymentStore) Touch(orderID string, raw json.RawMessage) error { return nil }

func (s *fakePaymentStore) SetGatewayResponse(orderID, gatewayTxnID string, resp json.RawMessage) error {
	return nil
}

func (s *fakePaymentStore) AppendCallback(h *models.PaymentCallbackHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, *h)
	return nil
}

func (s *fakePaymentStore) CreateRefund(r *models.Refund) error { return nil }

func (s *fakePaymentStore) MarkBillPaid(billID uint, at time.Time) error { return nil }

func (s *fakePaymentStore) ListStalePending(cutoff time.Time, limit int) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (s *fakePaymentStore) status(orderID string) models.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[orderID].Status
}

func newWebhookTestServer(store *fakePaymentStore) *echo.Echo {
	e := echo.New()
	h := NewWebhookHandler(services.NewWebhookService(store, testServerKey))
	e.POST("/api/payments/notification", h.HandleNotification)
	return e
}

func notificationBody(t *testing.T, orderID, rawStatus string, tamper bool) string {
	t.Helper()
	statusCode := "200"
	gross := "154000.00"
	sum := sha512.Sum512([]byte(orderID + statusCode + gross + testServerKey))
	sig := hex.EncodeToString(sum[:])
	if tamper {
		// flip the first hex character so the signature is guaranteed to differ
		if sig[0] == '0' {
			sig = "1" + sig[1:]
		} else {
			sig = "0" + sig[1:]
		}
	}
	body, err := json.Marshal(map[string]string{
		"order_id":           orderID,
		"transaction_id":     "mt-txn-1",
		"transaction_status": rawStatus,
		"status_code":        statusCode,
		"gross_amount":       gross,
		"signature_key":      sig,
		"payment_type":       "bank_transfer",
	})
	if err != nil {
		t.Fatalf("failed to marshal notification: %v", err)
	}
	return string(body)
}

func postNotification(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/notification", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleNotificationSettlement(t *testing.T) {
	store := newFakePaymentStore()
	store.Create(&models.PaymentRecord{OrderID: "SCH-1", Status: models.PaymentStatusPending})
	e := newWebhookTestServer(store)

	res := postNotification(e, notificationBody(t, "SCH-1", "settlement", false))
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", res.Code, res.Body.String())
	}
	if store.status("SCH-1") != models.PaymentStatusPaid {
		t.Errorf("record status = %s, want PAID", store.status("SCH-1"))
	}
}

func TestHandleNotificationDuplicate(t *testing.T) {
	store := newFakePaymentStore()
	store.Create(&models.PaymentRecord{OrderID: "SCH-1", Status: models.PaymentStatusPending})
	e := newWebhookTestServer(store)

	body := notificationBody(t, "SCH-1", "settlement", false)
	if res := postNotification(e, body); res.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d, want 200", res.Code)
	}
	res := postNotification(e, body)
	if res.Code != http.StatusOK {
		t.Fatalf("duplicate delivery status = %d, want 200", res.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload["note"] != "duplicate" {
		t.Errorf("duplicate delivery response = %v, want the duplicate note", payload)
	}
}

func TestHandleNotificationTamperedSignature(t *testing.T) {
	store := newFakePaymentStore()
	store.Create(&models.PaymentRecord{OrderID: "SCH-1", Status: models.PaymentStatusPending})
	e := newWebhookTestServer(store)

	res := postNotification(e, notificationBody(t, "SCH-1", "settlement", true))
	if res.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.Code)
	}
	if store.status("SCH-1") != models.PaymentStatusPending {
		t.Errorf("tampered notification changed the record to %s", store.status("SCH-1"))
	}
	if len(store.callbacks) != 1 || store.callbacks[0].SignatureOK {
		t.Error("rejected notification missing from the security audit trail")
	}
}

// An out-of-order callback against a terminal state is answered 200 so the
// gateway stops retrying, but the record stays put.
func TestHandleNotificationAnomalyIgnored(t *testing.T) {
	store := newFakePaymentStore()
	store.Create(&models.PaymentRecord{OrderID: "SCH-1", Status: models.PaymentStatusPaid})
	e := newWebhookTestServer(store)

	res := postNotification(e, notificationBody(t, "SCH-1", "cancel", false))
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload["status"] != "ignored" {
		t.Errorf("anomaly response = %v, want status ignored", payload)
	}
	if store.status("SCH-1") != models.PaymentStatusPaid {
		t.Errorf("anomalous callback changed the record to %s", store.status("SCH-1"))
	}
}

func TestHandleNotificationUnknownOrder(t *testing.T) {
	store := newFakePaymentStore()
	e := newWebhookTestServer(store)

	res := postNotification(e, notificationBody(t, "SCH-MISSING", "settlement", false))
	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.Code)
	}
}

func TestHandleNotificationMalformedBody(t *testing.T) {
	store := newFakePaymentStore()
	e := newWebhookTestServer(store)

	res := postNotification(e, "{not json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}
