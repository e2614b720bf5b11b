/**
 * @description
 * HTTP handlers for the checkout session endpoints. A session is opened when
 * the demanda detail view opens and discarded when it closes; every other
 * endpoint here drives one transition of the session state machine and maps
 * the service's sentinel errors to HTTP statuses.
 *
 * Error mapping:
 * - ErrSessionNotFound                  -> 404
 * - ErrMissingCheckoutData              -> 422 (validation, no provider call made)
 * - ErrSessionTerminal, ErrCheckoutBusy,
 *   ErrInvalidSessionState              -> 409
 * - ErrProviderUnavailable              -> 502 (retryable)
 * - ErrPersistenceFailed                -> 500 with a distinct message, since
 *                                          the capture succeeded and support
 *                                          must reconcile manually
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ppomarket/demandas-service/internal/app"
	"github.com/ppomarket/demandas-service/internal/store"
)

type openSessionRequest struct {
	DemandaID string `json:"demanda_id"`
}

type applySessionCouponRequest struct {
	Codigo string `json:"codigo"`
}

type captureResponse struct {
	Session     app.CheckoutSession `json:"session"`
	RedirectURL string              `json:"redirect_url"`
}

// OpenSessionHandler creates a checkout session for one demanda.
func (h *DemandasHandlers) OpenSessionHandler(w http.ResponseWriter, r *http.Request) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get subject from context")
		return
	}

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	demandaID, err := uuid.Parse(req.DemandaID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid demanda ID format")
		return
	}

	sess, err := h.service.OpenCheckoutSession(r.Context(), subject, demandaID)
	if err != nil {
		if errors.Is(err, store.ErrDemandaNotFound) {
			h.writeError(w, http.StatusNotFound, "Demanda not found")
			return
		}
		log.Printf("level=error component=api handler=open_session msg=\"session open failed\" demanda_id=%s err=%v", demandaID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not open checkout session")
		return
	}

	h.writeJSON(w, http.StatusCreated, sess)
}

// GetSessionHandler returns the current session snapshot.
func (h *DemandasHandlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}
	sess, err := h.service.GetCheckoutSession(sessionID)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// CloseSessionHandler discards a session. Idempotent; closing an unknown
// session is still a 204.
func (h *DemandasHandlers) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}
	h.service.CloseCheckoutSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// ShowMethodsHandler reveals the payment methods for a session.
func (h *DemandasHandlers) ShowMethodsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}
	sess, err := h.service.ShowPaymentMethods(sessionID)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

type applySessionCouponResponse struct {
	Session    app.CheckoutSession  `json:"session"`
	Validation app.CouponValidation `json:"validation"`
}

// ApplyCouponHandler revalidates a coupon against a session and recomputes
// the session's final price.
func (h *DemandasHandlers) ApplyCouponHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}

	var req applySessionCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, validation, err := h.service.ApplyCoupon(r.Context(), sessionID, req.Codigo)
	if err != nil {
		if errors.Is(err, app.ErrCouponRateLimited) {
			h.writeError(w, http.StatusTooManyRequests, "Too many coupon lookups. Please wait and try again.")
			return
		}
		h.writeCheckoutError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, applySessionCouponResponse{Session: sess, Validation: validation})
}

// CreatePreferenceHandler starts the regional (wallet widget) strategy.
func (h *DemandasHandlers) CreatePreferenceHandler(w http.ResponseWriter, r *http.Request) {
	h.startCheckout(w, r, app.MethodRegional)
}

// CreateOrderHandler starts the international (order/capture) strategy.
func (h *DemandasHandlers) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	h.startCheckout(w, r, app.MethodInternational)
}

func (h *DemandasHandlers) startCheckout(w http.ResponseWriter, r *http.Request, method app.CheckoutMethod) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}
	sess, err := h.service.StartCheckout(r.Context(), sessionID, method)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// CaptureOrderHandler captures an approved international order, persists the
// payment record, and returns the success redirect destination.
func (h *DemandasHandlers) CaptureOrderHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}
	sess, err := h.service.CaptureCheckout(r.Context(), sessionID)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, captureResponse{
		Session:     sess,
		RedirectURL: h.service.SuccessURL(),
	})
}

func (h *DemandasHandlers) sessionIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return uuid.Nil, false
	}
	return sessionID, true
}

// writeCheckoutError maps the service's checkout sentinels to HTTP statuses.
func (h *DemandasHandlers) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "Checkout session not found")
	case errors.Is(err, app.ErrMissingCheckoutData):
		h.writeError(w, http.StatusUnprocessableEntity, "Faltan datos para iniciar el pago")
	case errors.Is(err, app.ErrSessionTerminal):
		h.writeError(w, http.StatusConflict, "Payment already recorded for this session")
	case errors.Is(err, app.ErrCheckoutBusy):
		h.writeError(w, http.StatusConflict, "Another payment operation is already in progress")
	case errors.Is(err, app.ErrInvalidSessionState):
		h.writeError(w, http.StatusConflict, "Operation not allowed in the current checkout state")
	case errors.Is(err, app.ErrUnknownMethod):
		h.writeError(w, http.StatusBadRequest, "Unknown payment method")
	case errors.Is(err, app.ErrProviderUnavailable):
		h.writeError(w, http.StatusBadGateway, "Payment provider is unavailable. Please try again.")
	case errors.Is(err, app.ErrPersistenceFailed):
		// Money has moved; this must read differently from a generic failure.
		h.writeError(w, http.StatusInternalServerError, "El pago fue aprobado pero no pudo registrarse. Contacte a soporte.")
	default:
		log.Printf("level=error component=api handler=checkout msg=\"unhandled checkout error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
