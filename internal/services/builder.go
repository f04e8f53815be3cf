package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

// LineItem is one ordered item on a payment request
type LineItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Qty   int32  `json:"qty"`
}

// Customer is the payer contact attached to the gateway transaction
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PaymentRequest is an order to be charged with the gateway. Amount must
// equal the sum of item subtotals; when OrderID is set the caller owns the
// idempotency key and it is used verbatim.
type PaymentRequest struct {
	OrderID   string
	Amount    int64
	Items     []LineItem
	Customer  Customer
	Method    Method
	Bank      string // bank_transfer only, defaults to bca
	CardToken string // credit_card only
}

// BuiltCharge is the assembled, gateway-ready charge
type BuiltCharge struct {
	OrderID   string
	Quote     PaymentMethodQuote
	ExpiresAt time.Time
	Req       *coreapi.ChargeReq
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// DefaultPhonePattern matches Indonesian mobile numbers with or without the
// country code
var DefaultPhonePattern = regexp.MustCompile(`^(\+62|62|0)8[0-9]{7,11}$`)

// Expiry windows per method. E-wallets and QR expire in minutes; bank
// transfer and convenience-store payments get much longer windows.
var methodExpiry = map[Method]time.Duration{
	MethodGopay:        15 * time.Minute,
	MethodShopeepay:    15 * time.Minute,
	MethodQris:         15 * time.Minute,
	MethodBankTransfer: 24 * time.Hour,
	MethodEChannel:     24 * time.Hour,
	MethodCreditCard:   24 * time.Hour,
	MethodCStore:       48 * time.Hour,
}

// BuilderConfig is the startup configuration for the transaction builder
type BuilderConfig struct {
	OrderPrefix  string
	FinishURL    string // where the payer lands after the gateway flow
	PhonePattern *regexp.Regexp
}

// TransactionBuilder validates payment requests and assembles
// gateway-specific charge requests. It has no side effects beyond
// generating order identifiers.
type TransactionBuilder struct {
	cfg     BuilderConfig
	catalog *FeeCatalog
}

func NewTransactionBuilder(cfg BuilderConfig, catalog *FeeCatalog) *TransactionBuilder {
	if cfg.OrderPrefix == "" {
		cfg.OrderPrefix = "SCH"
	}
	if cfg.PhonePattern == nil {
		cfg.PhonePattern = DefaultPhonePattern
	}
	return &TransactionBuilder{cfg: cfg, catalog: catalog}
}

// NewOrderID generates a fresh order identifier:
// {prefix}-{unix-millis}-{random hex}. Unique with overwhelming probability
// and never reused by the builder.
func (b *TransactionBuilder) NewOrderID() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing means the process is in real trouble;
		// still produce something time-unique rather than panic
		return fmt.Sprintf("%s-%d-%x", b.cfg.OrderPrefix, time.Now().UnixMilli(), time.Now().UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("%s-%d-%s", b.cfg.OrderPrefix, time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// Build validates the request and assembles the charge. The first failed
// check wins; nothing is sent to the gateway here.
func (b *TransactionBuilder) Build(req PaymentRequest) (*BuiltCharge, error) {
	if req.Amount < b.catalog.MinAmount {
		return nil, &ValidationError{
			Code:    ValidationAmountTooLow,
			Field:   "amount",
			Message: fmt.Sprintf("amount %d is below the minimum %d", req.Amount, b.catalog.MinAmount),
		}
	}
	if req.Amount > b.catalog.MaxAmount {
		return nil, &ValidationError{
			Code:    ValidationAmountTooHigh,
			Field:   "amount",
			Message: fmt.Sprintf("amount %d is above the maximum %d", req.Amount, b.catalog.MaxAmount),
		}
	}
	if len(req.Items) == 0 {
		return nil, &ValidationError{
			Code:    ValidationMissingItems,
			Field:   "items",
			Message: "at least one line item is required",
		}
	}
	if !emailPattern.MatchString(req.Customer.Email) {
		return nil, &ValidationError{
			Code:    ValidationInvalidCustomer,
			Field:   "customer.email",
			Message: "missing or invalid email address",
		}
	}
	if !b.cfg.PhonePattern.MatchString(req.Customer.Phone) {
		return nil, &ValidationError{
			Code:    ValidationInvalidCustomer,
			Field:   "customer.phone",
			Message: "missing or invalid phone number",
		}
	}

	var itemTotal int64
	for _, it := range req.Items {
		itemTotal += it.Price * int64(it.Qty)
	}
	if itemTotal != req.Amount {
		return nil, &ValidationError{
			Code:    ValidationAmountMismatch,
			Field:   "amount",
			Message: fmt.Sprintf("amount %d does not equal item subtotal sum %d", req.Amount, itemTotal),
		}
	}

	quote, err := b.catalog.Quote(req.Amount, req.Method)
	if err != nil {
		return nil, err
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = b.NewOrderID()
	}

	now := time.Now()
	expiry := methodExpiry[req.Method]
	expiresAt := now.Add(expiry)

	items := make([]midtrans.ItemDetails, 0, len(req.Items)+1)
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  it.Name,
			Price: it.Price,
			Qty:   it.Qty,
		})
	}
	if quote.AdminFee > 0 {
		items = append(items, midtrans.ItemDetails{
			ID:    "ADMIN-FEE",
			Name:  "Biaya admin",
			Price: quote.AdminFee,
			Qty:   1,
		})
	}

	charge := &coreapi.ChargeReq{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: quote.Total,
		},
		Items: &items,
		CustomerDetails: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		CustomExpiry: &coreapi.CustomExpiry{
			OrderTime:      now.Format("2006-01-02 15:04:05 -0700"),
			ExpiryDuration: int(expiry / time.Minute),
			Unit:           "minute",
		},
	}

	b.applyMethod(charge, req)

	return &BuiltCharge{
		OrderID:   orderID,
		Quote:     *quote,
		ExpiresAt: expiresAt,
		Req:       charge,
	}, nil
}

// applyMethod fills the method-specific section of the charge request,
// injecting the default callback URL where the method supports one.
func (b *TransactionBuilder) applyMethod(charge *coreapi.ChargeReq, req PaymentRequest) {
	switch req.Method {
	case MethodBankTransfer:
		bank := midtrans.BankBca
		if req.Bank != "" {
			bank = midtrans.Bank(req.Bank)
		}
		charge.PaymentType = coreapi.PaymentTypeBankTransfer
		charge.BankTransfer = &coreapi.BankTransferDetails{Bank: bank}
	case MethodEChannel:
		charge.PaymentType = coreapi.PaymentTypeEChannel
		charge.EChannel = &coreapi.EChannelDetail{
			BillInfo1: "Pembayaran sekolah",
			BillInfo2: charge.TransactionDetails.OrderID,
		}
	case MethodGopay:
		charge.PaymentType = coreapi.PaymentTypeGopay
		charge.Gopay = &coreapi.GopayDetails{
			EnableCallback: true,
			CallbackUrl:    b.cfg.FinishURL,
		}
	case MethodShopeepay:
		charge.PaymentType = coreapi.PaymentTypeShopeepay
		charge.ShopeePay = &coreapi.ShopeePayDetails{CallbackUrl: b.cfg.FinishURL}
	case MethodQris:
		charge.PaymentType = coreapi.PaymentTypeQris
	case MethodCStore:
		charge.PaymentType = coreapi.PaymentTypeConvenienceStore
		charge.ConvStore = &coreapi.ConvStoreDetails{Store: "alfamart"}
	case MethodCreditCard:
		charge.PaymentType = coreapi.PaymentTypeCreditCard
		charge.CreditCard = &coreapi.CreditCardDetails{
			TokenID:        req.CardToken,
			Authentication: true,
		}
	}
}
