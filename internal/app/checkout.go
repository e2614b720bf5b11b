/**
 * @description
 * Checkout orchestration. A CheckoutSession is the transient state created
 * when the detail modal opens and discarded when it closes; it moves through
 * a small state machine and is modelled as a value object, replaced whole on
 * every transition rather than mutated in place.
 *
 * State machine:
 *   methods_hidden -> methods_visible
 *                  -> regional_pending -> regional_ready        (wallet widget)
 *                  -> international_approved -> recorded        (capture + persist)
 *
 * The two provider integrations are checkout strategies behind one
 * interface, selected when payment methods become visible. Every session
 * allows at most one in-flight provider operation: a second submission while
 * one is outstanding is rejected rather than queued, since a duplicate
 * preference creation or capture would create a duplicate payment attempt.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ppomarket/demandas-service/internal/domain"
	"github.com/ppomarket/demandas-service/pkg/globalpay"
	"github.com/ppomarket/demandas-service/pkg/rabbitmq"
	"github.com/ppomarket/demandas-service/pkg/walletpay"
)

// CheckoutState identifies where a session is in the checkout flow.
type CheckoutState string

const (
	StateMethodsHidden         CheckoutState = "methods_hidden"
	StateMethodsVisible        CheckoutState = "methods_visible"
	StateRegionalPending       CheckoutState = "regional_pending"
	StateRegionalReady         CheckoutState = "regional_ready"
	StateInternationalApproved CheckoutState = "international_approved"
	StateRecorded              CheckoutState = "recorded"
)

// CheckoutMethod selects one of the two provider strategies.
type CheckoutMethod string

const (
	MethodRegional      CheckoutMethod = "regional"
	MethodInternational CheckoutMethod = "international"
)

var (
	ErrMissingCheckoutData  = errors.New("missing data required to start checkout")
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrSessionTerminal      = errors.New("checkout session already recorded")
	ErrInvalidSessionState  = errors.New("operation not allowed in current session state")
	ErrCheckoutBusy         = errors.New("another checkout operation is in flight")
	ErrProviderUnavailable  = errors.New("payment provider call failed")
	ErrPersistenceFailed    = errors.New("payment captured but record persistence failed")
	ErrUnknownMethod        = errors.New("unknown checkout method")
	errCompletesOutOfBand   = errors.New("regional checkout completes in the wallet widget")
)

// CheckoutSession is the transient, UI-scoped checkout state.
type CheckoutSession struct {
	ID            uuid.UUID           `json:"id"`
	Subject       string              `json:"-"`
	DemandaID     uuid.UUID           `json:"demanda_id"`
	Detalle       string              `json:"detalle"`
	State         CheckoutState       `json:"state"`
	Payer         domain.PayerProfile `json:"payer"`
	CouponCode    string              `json:"cupon_codigo,omitempty"`
	Quote         Quote               `json:"quote"`
	PreferenceID  string              `json:"preference_id,omitempty"`
	OrderID       string              `json:"order_id,omitempty"`
	TransactionID string              `json:"transaction_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`

	busy bool
}

// checkoutStrategy is the per-provider half of the orchestrator. Start moves
// a methods_visible session toward payment; Complete finalizes it where the
// provider supports server-side completion.
type checkoutStrategy interface {
	Start(ctx context.Context, sess CheckoutSession) (CheckoutSession, error)
	Complete(ctx context.Context, sess CheckoutSession) (CheckoutSession, error)
}

// OpenCheckoutSession creates a session for one demanda. The payer profile
// fetch is best-effort: a failure leaves the payer fields empty and is not
// fatal to browsing — the regional guard catches it at payment time.
func (s *Service) OpenCheckoutSession(ctx context.Context, subject string, demandaID uuid.UUID) (CheckoutSession, error) {
	demanda, err := s.repo.FindDemandaByID(ctx, demandaID)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("failed to load demanda for checkout: %w", err)
	}

	sess := CheckoutSession{
		ID:        uuid.New(),
		Subject:   subject,
		DemandaID: demanda.ID,
		Detalle:   demanda.Detalle,
		State:     StateMethodsHidden,
		Quote:     ComputeFinalPrice(s.listingFeeUSD, 0, s.usdArsFxRate),
		CreatedAt: s.now(),
	}

	profile, err := s.repo.FindProfileBySubject(ctx, subject)
	if err != nil {
		log.Printf("level=warn component=checkout msg=\"payer profile fetch failed; continuing without payer data\" subject=%s err=%v", subject, err)
	} else {
		sess.Payer = *profile
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// GetCheckoutSession returns a snapshot of a session.
func (s *Service) GetCheckoutSession(sessionID uuid.UUID) (CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return CheckoutSession{}, ErrSessionNotFound
	}
	return sess, nil
}

// CloseCheckoutSession discards a session; called when the modal closes.
// Session state is never persisted, so closing loses nothing durable.
func (s *Service) CloseCheckoutSession(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// ShowPaymentMethods reveals the payment options for a session.
func (s *Service) ShowPaymentMethods(sessionID uuid.UUID) (CheckoutSession, error) {
	sess, err := s.beginSessionOp(sessionID, StateMethodsHidden, StateMethodsVisible)
	if err != nil {
		return CheckoutSession{}, err
	}
	sess.State = StateMethodsVisible
	s.endSessionOp(sess)
	return sess, nil
}

// ApplyCoupon revalidates a coupon code for a session and recomputes the
// final price in place. Legal in any non-terminal state. A price change
// invalidates any held provider artifact: a regional preference or an
// approved international order was created at the old amount, and charging
// or capturing it would settle a different amount than the one recorded.
// The session drops back to methods_visible and the user restarts the
// provider flow at the new price.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID uuid.UUID, code string) (CheckoutSession, CouponValidation, error) {
	sess, err := s.beginSessionOp(sessionID)
	if err != nil {
		return CheckoutSession{}, CouponValidation{}, err
	}

	validation, err := s.ValidateCoupon(ctx, sess.Subject, code)
	if err != nil {
		s.endSessionOp(sess)
		return CheckoutSession{}, CouponValidation{}, err
	}

	if validation.OK {
		sess.CouponCode = code
	} else {
		sess.CouponCode = ""
	}
	newQuote := ComputeFinalPrice(s.listingFeeUSD, validation.DiscountPercent, s.usdArsFxRate)
	priceChanged := newQuote.USD != sess.Quote.USD
	sess.Quote = newQuote

	if priceChanged && (sess.PreferenceID != "" || sess.OrderID != "" ||
		sess.State == StateRegionalPending || sess.State == StateRegionalReady ||
		sess.State == StateInternationalApproved) {
		log.Printf("level=info component=checkout msg=\"price changed; invalidating held provider artifact\" session_id=%s preference_id=%s order_id=%s", sess.ID, sess.PreferenceID, sess.OrderID)
		sess.PreferenceID = ""
		sess.OrderID = ""
		sess.State = StateMethodsVisible
	}

	s.endSessionOp(sess)
	return sess, validation, nil
}

// StartCheckout begins the selected provider flow for a methods_visible
// session.
func (s *Service) StartCheckout(ctx context.Context, sessionID uuid.UUID, method CheckoutMethod) (CheckoutSession, error) {
	strategy, ok := s.strategies[method]
	if !ok {
		return CheckoutSession{}, ErrUnknownMethod
	}

	sess, err := s.beginSessionOp(sessionID, StateMethodsVisible)
	if err != nil {
		return CheckoutSession{}, err
	}

	if method == MethodRegional {
		// Surface the pending phase while the preference call is in flight.
		pending := sess
		pending.State = StateRegionalPending
		pending.busy = true
		s.mu.Lock()
		s.sessions[sess.ID] = pending
		s.mu.Unlock()
	}

	updated, err := strategy.Start(ctx, sess)
	if err != nil {
		// The session stays retryable in methods_visible.
		s.endSessionOp(sess)
		return CheckoutSession{}, err
	}
	s.endSessionOp(updated)
	return updated, nil
}

// CaptureCheckout finalizes an approved international order: capture, then
// payment persistence, then the recorded terminal state. Only the
// international strategy completes server-side; the regional flow ends in
// the wallet widget, so its Complete is never dispatched here.
func (s *Service) CaptureCheckout(ctx context.Context, sessionID uuid.UUID) (CheckoutSession, error) {
	strategy := s.strategies[MethodInternational]

	sess, err := s.beginSessionOp(sessionID, StateInternationalApproved)
	if err != nil {
		return CheckoutSession{}, err
	}

	updated, err := strategy.Complete(ctx, sess)
	if err != nil {
		// Capture or persistence failed; the session stays retryable in
		// international_approved.
		s.endSessionOp(sess)
		return CheckoutSession{}, err
	}
	s.endSessionOp(updated)
	return updated, nil
}

// beginSessionOp snapshots a session for a transition and marks it busy.
// When allowed states are given the session must be in one of them.
func (s *Service) beginSessionOp(sessionID uuid.UUID, allowed ...CheckoutState) (CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return CheckoutSession{}, ErrSessionNotFound
	}
	if sess.State == StateRecorded {
		return CheckoutSession{}, ErrSessionTerminal
	}
	if sess.busy {
		return CheckoutSession{}, ErrCheckoutBusy
	}
	if len(allowed) > 0 {
		permitted := false
		for _, state := range allowed {
			if sess.State == state {
				permitted = true
				break
			}
		}
		if !permitted {
			return CheckoutSession{}, fmt.Errorf("%w: state=%s", ErrInvalidSessionState, sess.State)
		}
	}

	sess.busy = true
	s.sessions[sessionID] = sess
	return sess, nil
}

// endSessionOp replaces the stored session with the transitioned value.
func (s *Service) endSessionOp(sess CheckoutSession) {
	s.mu.Lock()
	sess.busy = false
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

// regionalStrategy drives the wallet-style provider: the server creates a
// payment preference and the on-page widget completes payment out-of-band.
type regionalStrategy struct {
	service *Service
}

func (st *regionalStrategy) Start(ctx context.Context, sess CheckoutSession) (CheckoutSession, error) {
	if sess.DemandaID == uuid.Nil || sess.Detalle == "" || sess.Payer.Nombre == "" || sess.Payer.Email == "" {
		return CheckoutSession{}, ErrMissingCheckoutData
	}

	resp, err := st.service.walletClient.CreatePreference(ctx, walletpay.PreferenceRequest{
		ID:        sess.DemandaID.String(),
		Title:     sess.Detalle,
		Quantity:  1,
		UnitPrice: sess.Quote.DisplayUSD(),
		Payer: walletpay.Payer{
			Name:  sess.Payer.Nombre,
			Email: sess.Payer.Email,
		},
	})
	if err != nil {
		log.Printf("level=warn component=checkout strategy=regional msg=\"preference creation failed\" session_id=%s err=%v", sess.ID, err)
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	sess.PreferenceID = resp.ID
	sess.State = StateRegionalReady
	return sess, nil
}

func (st *regionalStrategy) Complete(ctx context.Context, sess CheckoutSession) (CheckoutSession, error) {
	return CheckoutSession{}, errCompletesOutOfBand
}

// internationalStrategy drives the order/capture provider. Capture success
// is the sole trigger for payment persistence.
type internationalStrategy struct {
	service *Service
}

func (st *internationalStrategy) Start(ctx context.Context, sess CheckoutSession) (CheckoutSession, error) {
	if sess.Detalle == "" {
		return CheckoutSession{}, ErrMissingCheckoutData
	}

	resp, err := st.service.globalClient.CreateOrder(ctx, globalpay.OrderRequest{
		Amount:      sess.Quote.DisplayUSD(),
		Currency:    "USD",
		Description: sess.Detalle,
	})
	if err != nil {
		log.Printf("level=warn component=checkout strategy=international msg=\"order creation failed\" session_id=%s err=%v", sess.ID, err)
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	sess.OrderID = resp.ID
	sess.State = StateInternationalApproved
	return sess, nil
}

func (st *internationalStrategy) Complete(ctx context.Context, sess CheckoutSession) (CheckoutSession, error) {
	capture, err := st.service.globalClient.CaptureOrder(ctx, sess.OrderID)
	if err != nil {
		// No record may exist for a failed capture; the session stays
		// retryable in international_approved.
		log.Printf("level=warn component=checkout strategy=international msg=\"capture failed\" session_id=%s order_id=%s err=%v", sess.ID, sess.OrderID, err)
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	record := &domain.PaymentRecord{
		ID:             uuid.New(),
		DemandaID:      sess.DemandaID,
		DetalleDemanda: sess.Detalle,
		NombrePagador:  sess.Payer.Nombre,
		CorreoPagador:  sess.Payer.Email,
		NumeroPago:     capture.TransactionID(),
		Monto:          sess.Quote.DisplayUSD(),
		FechaPago:      st.service.now().UTC(),
		EstadoPago:     "aprobado",
		Moneda:         "USD",
	}
	if sess.CouponCode != "" {
		code := sess.CouponCode
		record.CuponCodigo = &code
	}

	if err := st.service.repo.CreatePaymentRecord(ctx, record, sess.CouponCode); err != nil {
		// Money has already moved. Surface this distinctly instead of
		// navigating to the success destination.
		log.Printf("level=error component=checkout strategy=international msg=\"payment captured but persistence failed\" session_id=%s transaction_id=%s err=%v", sess.ID, record.NumeroPago, err)
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	if st.service.eventProducer != nil {
		event := rabbitmq.PaymentRecordedEvent{
			PaymentID: record.ID,
			DemandaID: record.DemandaID,
			Monto:     record.Monto,
			Moneda:    record.Moneda,
			Timestamp: record.FechaPago,
		}
		if err := st.service.eventProducer.PublishPaymentRecordedEvent(ctx, event); err != nil {
			log.Printf("level=warn component=checkout msg=\"payment.recorded publish failed\" payment_id=%s err=%v", record.ID, err)
		}
	}

	sess.TransactionID = record.NumeroPago
	sess.State = StateRecorded
	return sess, nil
}
