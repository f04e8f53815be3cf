package services

import (
	"net/http"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

// Gateway is the outbound contract with the payment processor. It is an
// explicit dependency injected at construction time, never a package-level
// singleton, so handlers and the worker can share one configured client and
// tests can substitute a double.
//
// Charge must never be retried automatically on ambiguous failures: a retry
// can duplicate a transaction. CheckStatus is read-only and safe to poll.
type Gateway interface {
	Charge(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, error)
	CheckStatus(orderID string) (*coreapi.TransactionStatusResponse, error)
	Cancel(orderID string) error
	Refund(orderID string, amount int64, reason string) (*coreapi.RefundResponse, error)
}

// GatewayConfig is the startup configuration for the Midtrans client
type GatewayConfig struct {
	ServerKey  string
	Production bool
	Timeout    time.Duration
}

// MidtransGateway implements Gateway over the Midtrans Core API
type MidtransGateway struct {
	core coreapi.Client
}

func NewMidtransGateway(cfg GatewayConfig) *MidtransGateway {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}

	if cfg.Timeout > 0 {
		// every gateway call gets a bounded timeout; a timed-out charge
		// is an unknown outcome, never an assumed failure
		midtrans.DefaultGoHttpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var c coreapi.Client
	c.New(cfg.ServerKey, env)

	return &MidtransGateway{core: c}
}

func (g *MidtransGateway) Charge(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, error) {
	resp, mErr := g.core.ChargeTransaction(req)
	if mErr != nil {
		return nil, wrapMidtransErr(mErr)
	}
	return resp, nil
}

func (g *MidtransGateway) CheckStatus(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, mErr := g.core.CheckTransaction(orderID)
	if mErr != nil {
		if mErr.StatusCode == http.StatusNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, wrapMidtransErr(mErr)
	}
	return resp, nil
}

func (g *MidtransGateway) Cancel(orderID string) error {
	_, mErr := g.core.CancelTransaction(orderID)
	if mErr != nil {
		return wrapMidtransErr(mErr)
	}
	return nil
}

func (g *MidtransGateway) Refund(orderID string, amount int64, reason string) (*coreapi.RefundResponse, error) {
	resp, mErr := g.core.RefundTransaction(orderID, &coreapi.RefundReq{
		Amount: amount,
		Reason: reason,
	})
	if mErr != nil {
		return nil, wrapMidtransErr(mErr)
	}
	return resp, nil
}

func wrapMidtransErr(mErr *midtrans.Error) error {
	return &GatewayError{
		StatusCode: mErr.StatusCode,
		Message:    mErr.Message,
		Err:        mErr,
	}
}

// InstructionFromCharge folds a charge response into the payer-facing
// instruction. The expiry comes from the builder, not from the response, so
// the countdown is consistent with what was requested.
func InstructionFromCharge(resp *coreapi.ChargeResponse, method Method, amount int64, expiresAt time.Time) *PaymentInstruction {
	reference := chargeReference(resp, method)
	return &PaymentInstruction{
		OrderID:   resp.OrderID,
		Method:    method,
		Amount:    amount,
		Reference: reference,
		ExpiresAt: expiresAt,
		Steps:     instructionSteps(method, reference),
	}
}

// chargeReference extracts the artifact the payer needs: a VA number, a
// bill key, a counter code, a QR/deeplink URL or a redirect token.
func chargeReference(resp *coreapi.ChargeResponse, method Method) string {
	switch method {
	case MethodBankTransfer:
		if len(resp.VaNumbers) > 0 {
			return resp.VaNumbers[0].VANumber
		}
		return resp.PermataVaNumber
	case MethodEChannel:
		return resp.BillerCode + "/" + resp.BillKey
	case MethodCStore:
		return resp.PaymentCode
	case MethodGopay, MethodShopeepay, MethodQris:
		// prefer the QR image, fall back to the first action URL
		for _, a := range resp.Actions {
			if a.Name == "generate-qr-code" {
				return a.URL
			}
		}
		if len(resp.Actions) > 0 {
			return resp.Actions[0].URL
		}
	case MethodCreditCard:
		return resp.RedirectURL
	}
	return ""
}
