package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"sekolah_app_echo/internal/models"
	"sekolah_app_echo/internal/services"
)

type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
	catalog  *services.FeeCatalog
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, catalog *services.FeeCatalog) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments, catalog: catalog}
}

// ListMethods returns the methods viable at the given amount, with their
// fees and totals, so the frontend only offers valid choices
func (h *PaymentHandler) ListMethods(c echo.Context) error {
	amount, err := strconv.ParseInt(c.QueryParam("amount"), 10, 64)
	if err != nil || amount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid amount")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"amount":  amount,
		"methods": h.catalog.EligibleMethods(amount),
	})
}

// CreatePayment charges the gateway for a student bill and returns the
// payment instruction
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var payload CreatePaymentPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	var bill models.StudentBill
	if err := h.db.Preload("Student").First(&bill, payload.BillID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Bill not found")
	}
	if bill.Status == models.BillStatusPaid {
		return echo.NewHTTPError(http.StatusBadRequest, "Bill is already paid")
	}
	if bill.Status == models.BillStatusCanceled {
		return echo.NewHTTPError(http.StatusBadRequest, "Bill is canceled")
	}

	req := services.PaymentRequest{
		OrderID: payload.OrderID,
		Amount:  bill.Amount,
		Items: []services.LineItem{
			{
				ID:    "bill-" + strconv.FormatUint(uint64(bill.ID), 10),
				Name:  bill.Title + " " + bill.Period,
				Price: bill.Amount,
				Qty:   1,
			},
		},
		Customer: services.Customer{
			Name:  bill.Student.GuardianName,
			Email: bill.Student.GuardianEmail,
			Phone: bill.Student.GuardianPhone,
		},
		Method:    services.Method(payload.Method),
		Bank:      payload.Bank,
		CardToken: payload.CardToken,
	}

	result, err := h.payments.CreatePayment(req, bill.ID)
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"order_id":    result.Record.OrderID,
		"status":      result.Record.Status,
		"quote":       result.Quote,
		"instruction": result.Instruction,
		"remaining_seconds": result.Instruction.RemainingSeconds(time.Now()),
	})
}

// GetPayment returns the record, the instruction and the countdown
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	rec, instr, err := h.payments.GetPayment(c.Param("orderId"))
	if err != nil {
		return mapPaymentError(err)
	}

	resp := map[string]interface{}{
		"order_id":     rec.OrderID,
		"status":       rec.Status,
		"gross_amount": rec.GrossAmount,
		"method":       rec.Method,
	}
	if instr != nil {
		resp["instruction"] = instr
		resp["remaining_seconds"] = instr.RemainingSeconds(time.Now())
	}
	return c.JSON(http.StatusOK, resp)
}

// CheckStatus is the payer's on-demand status check. It queries the
// gateway and applies any change through the same mapping as the webhook
// path before reflecting it back.
func (h *PaymentHandler) CheckStatus(c echo.Context) error {
	rec, err := h.payments.CheckAndApplyStatus(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"order_id": rec.OrderID,
		"status":   rec.Status,
	})
}

// Cancel voids a pending transaction. Admin only.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	if err := h.payments.Cancel(c.Param("orderId")); err != nil {
		return mapPaymentError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

// Refund refunds a paid transaction, partially or in full. Admin only.
func (h *PaymentHandler) Refund(c echo.Context) error {
	var payload RefundPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	refund, err := h.payments.Refund(c.Param("orderId"), payload.Amount, payload.Reason)
	if err != nil {
		return mapPaymentError(err)
	}
	return c.JSON(http.StatusOK, refund)
}

// mapPaymentError translates service errors into HTTP failures. Validation
// failures are the caller's to fix; gateway failures are surfaced with the
// upstream message so the payer can be told to retry or contact support.
func mapPaymentError(err error) error {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	}
	var gwErr *services.GatewayError
	if errors.As(err, &gwErr) {
		return echo.NewHTTPError(http.StatusBadGateway, gwErr.Error())
	}
	switch {
	case errors.Is(err, services.ErrPaymentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Payment not found")
	case errors.Is(err, services.ErrMethodIneligible):
		return echo.NewHTTPError(http.StatusBadRequest, "Payment method not available for this amount")
	case errors.Is(err, services.ErrNotCancelable):
		return echo.NewHTTPError(http.StatusConflict, "Only pending payments can be cancelled")
	case errors.Is(err, services.ErrNotRefundable):
		return echo.NewHTTPError(http.StatusConflict, "Only paid payments can be refunded")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
