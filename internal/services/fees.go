package services

// Method identifies a payment channel offered to the payer. The set is
// closed; the gateway mapping in the transaction builder is exhaustive
// over it.
type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodEChannel     Method = "echannel"
	MethodGopay        Method = "gopay"
	MethodShopeepay    Method = "shopeepay"
	MethodQris         Method = "qris"
	MethodCStore       Method = "cstore"
	MethodCreditCard   Method = "credit_card"
)

// AllMethods lists every supported method in display order
var AllMethods = []Method{
	MethodBankTransfer,
	MethodEChannel,
	MethodGopay,
	MethodShopeepay,
	MethodQris,
	MethodCStore,
	MethodCreditCard,
}

// PaymentMethodQuote is the derived cost of paying a given amount through a
// given method. Never persisted.
type PaymentMethodQuote struct {
	Method      Method `json:"method"`
	AdminFee    int64  `json:"admin_fee"`
	Total       int64  `json:"total"`
	Description string `json:"description"`
	Settlement  string `json:"settlement"`
}

// Fixed admin fees in whole rupiah. Credit card is the exception and is
// charged as a percentage, see creditCardFee.
var fixedFees = map[Method]int64{
	MethodBankTransfer: 4000,
	MethodEChannel:     4000,
	MethodGopay:        2000,
	MethodShopeepay:    2000,
	MethodQris:         750,
	MethodCStore:       5000,
}

// creditCardFeePermille is the card fee in tenths of a percent (2.9%)
const creditCardFeePermille = 29

var methodDescriptions = map[Method]string{
	MethodBankTransfer: "Bank transfer via virtual account (BCA, BNI, BRI, Permata)",
	MethodEChannel:     "Mandiri Bill Payment",
	MethodGopay:        "GoPay e-wallet",
	MethodShopeepay:    "ShopeePay e-wallet",
	MethodQris:         "QRIS (scan with any participating app)",
	MethodCStore:       "Over the counter at Alfamart/Indomaret",
	MethodCreditCard:   "Credit or debit card",
}

var methodSettlements = map[Method]string{
	MethodBankTransfer: "realtime",
	MethodEChannel:     "realtime",
	MethodGopay:        "realtime",
	MethodShopeepay:    "realtime",
	MethodQris:         "realtime",
	MethodCStore:       "up to 1 hour",
	MethodCreditCard:   "1-3 business days",
}

// FeeCatalog maps a candidate method and amount to the fee the gateway will
// charge. Pure and deterministic; the bounds are the same configuration the
// transaction builder enforces.
type FeeCatalog struct {
	MinAmount int64
	MaxAmount int64
}

func NewFeeCatalog(minAmount, maxAmount int64) *FeeCatalog {
	return &FeeCatalog{MinAmount: minAmount, MaxAmount: maxAmount}
}

// Fee computes the admin fee for paying amount through method
func (c *FeeCatalog) Fee(amount int64, method Method) int64 {
	if method == MethodCreditCard {
		// percentage fee, rounded half-up to a whole rupiah
		return (amount*creditCardFeePermille + 500) / 1000
	}
	return fixedFees[method]
}

// Quote computes the fee and total for one method. Returns
// ErrMethodIneligible when amount plus fee falls outside the configured
// transaction bounds.
func (c *FeeCatalog) Quote(amount int64, method Method) (*PaymentMethodQuote, error) {
	if _, known := methodDescriptions[method]; !known {
		return nil, ErrMethodIneligible
	}

	fee := c.Fee(amount, method)
	total := amount + fee
	if total < c.MinAmount || total > c.MaxAmount {
		return nil, ErrMethodIneligible
	}

	return &PaymentMethodQuote{
		Method:      method,
		AdminFee:    fee,
		Total:       total,
		Description: methodDescriptions[method],
		Settlement:  methodSettlements[method],
	}, nil
}

// EligibleMethods returns quotes for every method viable at the given
// amount, so the caller can present only valid choices instead of erroring.
func (c *FeeCatalog) EligibleMethods(amount int64) []PaymentMethodQuote {
	quotes := make([]PaymentMethodQuote, 0, len(AllMethods))
	for _, m := range AllMethods {
		q, err := c.Quote(amount, m)
		if err != nil {
			continue
		}
		quotes = append(quotes, *q)
	}
	return quotes
}
