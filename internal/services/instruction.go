package services

import "time"

// PaymentInstruction tells the payer how to complete a transaction that was
// charged through an asynchronous channel (virtual account, QR, counter
// code). Immutable after creation except for the Expired flag, which flips
// with time.
type PaymentInstruction struct {
	OrderID   string    `json:"order_id"`
	Method    Method    `json:"method"`
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference"` // VA number, QR URL, counter code or redirect token
	ExpiresAt time.Time `json:"expires_at"`
	Steps     []string  `json:"steps"`
	Expired   bool      `json:"expired"`
}

// RemainingSeconds returns the countdown to expiry. It is monotonically
// decreasing for increasing now, reaches exactly zero at ExpiresAt and is
// never negative.
func (i *PaymentInstruction) RemainingSeconds(now time.Time) int64 {
	remaining := i.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// ExpiredAt reports whether the instruction has expired as of now
func (i *PaymentInstruction) ExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// instructionSteps returns the human-readable payment steps per method
func instructionSteps(method Method, reference string) []string {
	switch method {
	case MethodBankTransfer:
		return []string{
			"Open your mobile banking or ATM menu",
			"Choose transfer to virtual account",
			"Enter virtual account number " + reference,
			"Confirm the amount and complete the transfer",
		}
	case MethodEChannel:
		return []string{
			"Open Livin' by Mandiri or a Mandiri ATM",
			"Choose Bill Payment (Bayar) > Multipayment",
			"Enter the biller code and bill key " + reference,
			"Confirm the amount and complete the payment",
		}
	case MethodGopay:
		return []string{
			"Open the Gojek app",
			"Follow the payment link or scan the QR code",
			"Confirm the payment in the app",
		}
	case MethodShopeepay:
		return []string{
			"Open the Shopee app",
			"Follow the payment link or scan the QR code",
			"Confirm the payment in the app",
		}
	case MethodQris:
		return []string{
			"Open any QRIS-capable payment app",
			"Scan the QR code",
			"Confirm the amount and complete the payment",
		}
	case MethodCStore:
		return []string{
			"Visit the nearest Alfamart or Indomaret",
			"Tell the cashier you want to pay a Midtrans order",
			"Show payment code " + reference,
			"Pay in cash and keep the receipt",
		}
	case MethodCreditCard:
		return []string{
			"Complete the card authentication in the opened page",
		}
	}
	return nil
}
