package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/luminapp/lumin/internal/billing"
)

// maxWebhookBody caps webhook payload reads. Stripe events are small;
// anything larger is not a legitimate delivery.
const maxWebhookBody = 1 << 16

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read payload")
		return
	}

	err = s.processor.ProcessEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			writeError(w, http.StatusBadRequest, "Invalid signature")
		case errors.Is(err, billing.ErrMissingUserReference):
			writeError(w, http.StatusBadRequest, "Missing user reference")
		case errors.Is(err, billing.ErrStoreUnavailable):
			// 5xx makes Stripe retry the delivery.
			writeError(w, http.StatusInternalServerError, "Temporary storage failure")
		default:
			writeError(w, http.StatusBadRequest, "Unprocessable event")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	email, _ := GetEmailFromContext(r.Context())

	premium, err := s.entitlements.Premium(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to check entitlement")
		writeError(w, http.StatusInternalServerError, "Failed to check entitlement")
		return
	}
	if premium {
		writeError(w, http.StatusConflict, "Already premium")
		return
	}

	url, err := s.checkout.CreateSession(r.Context(), userID, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create checkout session")
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	premium, err := s.entitlements.Premium(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check entitlement")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"premium": premium})
}
