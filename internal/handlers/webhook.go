package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/velora/storefront/internal/payment"
)

const signatureHeader = "X-Payment-Signature"

// WebhookHandler receives the processor's asynchronous callbacks, verifies
// the shared-secret signature, and feeds the event to the reconciler.
// Unmatched events are acknowledged with 200 so the processor stops
// redelivering them; only retryable failures get a 5xx.
type WebhookHandler struct {
	Reconciler *payment.Reconciler
	Secret     []byte
	Log        *slog.Logger
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	if len(h.Secret) > 0 {
		sig := c.Request().Header.Get(signatureHeader)
		if !payment.VerifySignature(h.Secret, body, sig) {
			h.Log.WarnContext(ctx, "webhook signature verification failed")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
		}
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event"})
	}

	if err := h.Reconciler.Apply(ctx, ev); err != nil {
		if errors.Is(err, payment.ErrRetryable) {
			h.Log.ErrorContext(ctx, "webhook processing failed, requesting redelivery", "kind", ev.Kind, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
		}
		// Other failures are acknowledged after logging: their transitions
		// carry idempotency guards, so a lost delivery is recoverable and a
		// redelivery would just fail the same way.
		h.Log.ErrorContext(ctx, "webhook processing failed", "kind", ev.Kind, "error", err)
		return c.JSON(http.StatusOK, echo.Map{"received": true, "type": ev.Kind})
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true, "type": ev.Kind})
}
