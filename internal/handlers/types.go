package handlers

// CreatePaymentPayload starts a gateway transaction for a student bill
type CreatePaymentPayload struct {
	BillID uint   `json:"bill_id"`
	Method string `json:"method"`
	// OrderID lets the caller supply its own idempotency key; when empty
	// the builder generates one
	OrderID   string `json:"order_id,omitempty"`
	Bank      string `json:"bank,omitempty"`       // bank_transfer only
	CardToken string `json:"card_token,omitempty"` // credit_card only
}

// RefundPayload requests a partial or full refund of a paid transaction
type RefundPayload struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// CreateStudentPayload registers a student and the guardian payer contact
type CreateStudentPayload struct {
	Name          string `json:"name"`
	StudentNumber string `json:"student_number"`
	ClassName     string `json:"class_name"`
	GuardianName  string `json:"guardian_name"`
	GuardianEmail string `json:"guardian_email"`
	GuardianPhone string `json:"guardian_phone"`
}

// CreateBillPayload creates a one-off bill for a student
type CreateBillPayload struct {
	StudentID uint   `json:"student_id"`
	Title     string `json:"title"`
	Period    string `json:"period"`
	Amount    int64  `json:"amount"`
	DueDate   string `json:"due_date"` // RFC 3339
}

// CreateSchedulePayload creates a recurring billing schedule
type CreateSchedulePayload struct {
	Name              string `json:"name"`
	ClassName         string `json:"class_name,omitempty"`
	Amount            int64  `json:"amount"`
	StartDate         string `json:"start_date"`                   // RFC 3339
	RecurringInterval string `json:"recurring_interval,omitempty"` // RFC 5545 RRULE
}
