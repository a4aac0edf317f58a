package httpserver

import (
	"io"
	"net/http"
	"time"

	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/pkg/responders"
)

// stripeWebhook implements spec.md's narrow Stripe surface: HMAC-verified
// webhook that keeps users.stripe_customer_id in sync. There is no
// checkout/session-creation route — see internal/config.StripeConfig.
func (h *handlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "reading webhook body", err))
		return
	}
	eventType, err := h.stripe.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveWebhook("unknown", "failed", time.Since(start))
		}
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveWebhook(eventType, "success", time.Since(start))
	}
	responders.JSON(w, http.StatusOK, map[string]any{"received": true, "type": eventType})
}
