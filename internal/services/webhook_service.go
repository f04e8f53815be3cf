package services

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"sekolah_app_echo/internal/models"
)

// WebhookNotification is a transient, gateway-initiated status report. It
// is consumed, audited and discarded; never persisted as a domain entity.
type WebhookNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`

	// Raw is the original request body, kept for the audit trail
	Raw json.RawMessage `json:"-"`
}

// StatusTransition is the observable outcome of applying a notification
type StatusTransition struct {
	OrderID string
	From    models.PaymentStatus
	To      models.PaymentStatus
	// NoOp is true for idempotent re-applies: the audit payload was
	// refreshed but no transition event occurred.
	NoOp bool
}

// MapStatus maps the gateway's raw status vocabulary onto the internal
// state machine. The switch is exhaustive over the documented vocabulary;
// anything else maps to UNKNOWN and is rejected by the caller.
func MapStatus(raw string) (models.PaymentStatus, bool) {
	switch raw {
	case "pending":
		return models.PaymentStatusPending, true
	case "settlement", "capture":
		return models.PaymentStatusPaid, true
	case "deny", "failure":
		return models.PaymentStatusFailed, true
	case "cancel":
		return models.PaymentStatusCancelled, true
	case "expire":
		return models.PaymentStatusExpired, true
	case "refund":
		return models.PaymentStatusRefunded, true
	case "partial_refund":
		return models.PaymentStatusPartialRefund, true
	case "authorize":
		return models.PaymentStatusAuthorized, true
	default:
		return models.PaymentStatusUnknown, false
	}
}

// CanTransition reports whether moving from one status to another is a
// valid edge of the state machine. Terminal states are one-way except for
// the explicit PAID -> REFUNDED / PARTIAL_REFUND edges. Same-status
// re-applies are not transitions and are handled before this check.
func CanTransition(from, to models.PaymentStatus) bool {
	switch from {
	case models.PaymentStatusPending:
		switch to {
		case models.PaymentStatusAuthorized, models.PaymentStatusPaid,
			models.PaymentStatusFailed, models.PaymentStatusCancelled,
			models.PaymentStatusExpired:
			return true
		}
	case models.PaymentStatusAuthorized:
		switch to {
		case models.PaymentStatusPaid, models.PaymentStatusCancelled,
			models.PaymentStatusExpired, models.PaymentStatusFailed:
			return true
		}
	case models.PaymentStatusPaid:
		switch to {
		case models.PaymentStatusRefunded, models.PaymentStatusPartialRefund:
			return true
		}
	case models.PaymentStatusPartialRefund:
		return to == models.PaymentStatusRefunded
	}
	return false
}

// keyedMutex serializes work per order identifier so two near-simultaneous
// notifications for the same order cannot both win an invalid transition.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for key and returns the matching unlock func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// WebhookService verifies inbound notifications and applies them to the
// state store with idempotent, per-order-serialized semantics. The polling
// path uses the same Apply so both paths converge on identical state.
type WebhookService struct {
	store     PaymentStore
	serverKey string
	locks     *keyedMutex
}

func NewWebhookService(store PaymentStore, serverKey string) *WebhookService {
	return &WebhookService{
		store:     store,
		serverKey: serverKey,
		locks:     newKeyedMutex(),
	}
}

// VerifySignature recomputes the keyed hash over
// orderId + statusCode + grossAmount + serverKey and compares it against
// the supplied signature in constant time. Any mismatch means the
// notification must be rejected without touching state.
func (s *WebhookService) VerifySignature(n *WebhookNotification) bool {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + s.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// casAttempts bounds the reload-and-retry loop when the optimistic version
// check loses to a concurrent writer.
const casAttempts = 3

// Apply maps the notification onto the state machine and persists the
// transition. It is idempotent: re-applying a status the record already has
// refreshes the audit payload and reports NoOp without a transition event.
// Invalid moves out of a terminal status are rejected as anomalies and
// leave state unchanged.
func (s *WebhookService) Apply(n *WebhookNotification) (*StatusTransition, error) {
	mapped, known := MapStatus(n.TransactionStatus)
	if !known {
		log.Printf("webhook: unknown status %q for order %s, rejected", n.TransactionStatus, n.OrderID)
		s.audit(n, false, "unknown status")
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, n.TransactionStatus)
	}

	unlock := s.locks.Lock(n.OrderID)
	defer unlock()

	for attempt := 0; attempt < casAttempts; attempt++ {
		rec, err := s.store.GetByOrderID(n.OrderID)
		if err != nil {
			return nil, err
		}

		if rec.Status == mapped {
			// duplicate delivery: refresh audit, emit nothing
			if err := s.store.Touch(rec.OrderID, n.Raw); err != nil {
				return nil, err
			}
			s.audit(n, false, "duplicate, no-op")
			return &StatusTransition{OrderID: rec.OrderID, From: rec.Status, To: mapped, NoOp: true}, nil
		}

		if !CanTransition(rec.Status, mapped) {
			log.Printf("webhook: anomalous transition %s -> %s for order %s, rejected", rec.Status, mapped, n.OrderID)
			s.audit(n, false, "anomalous transition")
			return nil, &AnomalousTransitionError{OrderID: rec.OrderID, From: rec.Status, To: mapped}
		}

		update := StatusUpdate{Status: mapped, RawNotification: n.Raw}
		if n.TransactionID != "" {
			update.GatewayTransactionID = &n.TransactionID
		}

		won, err := s.store.UpdateStatusCAS(rec.OrderID, rec.StatusVersion, update)
		if err != nil {
			return nil, err
		}
		if !won {
			// a concurrent apply changed the record; reload and re-evaluate
			continue
		}

		if mapped == models.PaymentStatusPaid && rec.StudentBillID != 0 {
			if err := s.store.MarkBillPaid(rec.StudentBillID, time.Now()); err != nil {
				log.Printf("webhook: failed to mark bill %d paid for order %s: %v", rec.StudentBillID, rec.OrderID, err)
			}
		}

		s.audit(n, true, "")
		log.Printf("webhook: order %s %s -> %s", rec.OrderID, rec.Status, mapped)
		return &StatusTransition{OrderID: rec.OrderID, From: rec.Status, To: mapped}, nil
	}

	return nil, fmt.Errorf("gave up applying notification for order %s after %d contended attempts", n.OrderID, casAttempts)
}

func (s *WebhookService) audit(n *WebhookNotification, applied bool, note string) {
	h := &models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        n.OrderID,
		RawStatus:      n.TransactionStatus,
		SignatureOK:    true,
		Applied:        applied,
		Note:           note,
		Metadata:       n.Raw,
	}
	if err := s.store.AppendCallback(h); err != nil {
		log.Printf("webhook: failed to append callback history for order %s: %v", n.OrderID, err)
	}
}

// AuditRejected records a notification that failed signature verification.
// State is never touched for these; the row exists for the security log.
func (s *WebhookService) AuditRejected(n *WebhookNotification) {
	h := &models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        n.OrderID,
		RawStatus:      n.TransactionStatus,
		SignatureOK:    false,
		Applied:        false,
		Note:           "signature mismatch",
		Metadata:       n.Raw,
	}
	if err := s.store.AppendCallback(h); err != nil {
		log.Printf("webhook: failed to append rejected callback for order %s: %v", n.OrderID, err)
	}
}
