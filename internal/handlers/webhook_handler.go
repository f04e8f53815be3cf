package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"sekolah_app_echo/internal/services"
)

type WebhookHandler struct {
	webhooks *services.WebhookService
}

func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleNotification receives the gateway's asynchronous status callbacks.
// Delivery is at-least-once and may be duplicated or out of order, so the
// response contract matters: 200 for everything that was processed, including
// idempotent no-ops and rejected anomalies, so the gateway stops retrying;
// non-200 only for signature failures, unknown orders and persistence errors.
func (h *WebhookHandler) HandleNotification(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read body")
	}

	var notification services.WebhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification body")
	}
	notification.Raw = body

	if !h.webhooks.VerifySignature(&notification) {
		// forged or tampered callback; logged as a security event
		c.Logger().Warnf("webhook signature mismatch for order %s", notification.OrderID)
		h.webhooks.AuditRejected(&notification)
		return echo.NewHTTPError(http.StatusForbidden, "Signature verification failed")
	}

	transition, err := h.webhooks.Apply(&notification)
	if err != nil {
		var anomaly *services.AnomalousTransitionError
		switch {
		case errors.As(err, &anomaly), errors.Is(err, services.ErrUnknownStatus):
			// rejected and logged, state unchanged; answer 200 so the
			// gateway does not retry a notification we will never accept
			return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
		case errors.Is(err, services.ErrPaymentNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Unknown order")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process notification")
		}
	}

	if transition.NoOp {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "note": "duplicate"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
