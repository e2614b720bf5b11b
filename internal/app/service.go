/**
 * @description
 * This file contains the core application service for the demandas-service.
 * The `Service` struct wires the listing filters, coupon validator, price
 * calculator and checkout orchestrator to their collaborators: the database
 * repository, the two payment provider clients, and the event producer.
 *
 * Key features:
 * - Holds the fixed pricing configuration (listing fee, USD→ARS rate).
 * - Owns the in-memory checkout session registry; sessions are transient and
 *   never persisted.
 * - Publishes payment.recorded events after payment persistence.
 *
 * @dependencies
 * - context, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For session and payment ids.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/walletpay, pkg/globalpay, pkg/rabbitmq: For external communication.
 */

package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppomarket/demandas-service/internal/store"
	"github.com/ppomarket/demandas-service/pkg/globalpay"
	"github.com/ppomarket/demandas-service/pkg/rabbitmq"
	"github.com/ppomarket/demandas-service/pkg/walletpay"
)

// WalletClient is the slice of the regional provider client the service
// uses: preference creation for the on-page wallet widget.
type WalletClient interface {
	CreatePreference(ctx context.Context, req walletpay.PreferenceRequest) (*walletpay.PreferenceResponse, error)
}

// GlobalClient is the slice of the international provider client the
// service uses: order creation and capture.
type GlobalClient interface {
	CreateOrder(ctx context.Context, req globalpay.OrderRequest) (*globalpay.OrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*globalpay.CaptureResponse, error)
}

// CouponRateLimiter limits coupon lookups per subject within a time window.
type CouponRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic of the marketplace checkout.
type Service struct {
	repo          store.Repository
	walletClient  WalletClient
	globalClient  GlobalClient
	eventProducer rabbitmq.Publisher

	listingFeeUSD float64
	usdArsFxRate  float64
	successURL    string

	couponRateLimiter          CouponRateLimiter
	couponLookupLimitPerMinute int

	now func() time.Time

	mu         sync.Mutex
	sessions   map[uuid.UUID]CheckoutSession
	strategies map[CheckoutMethod]checkoutStrategy
}

// NewService creates a new service instance.
func NewService(
	repo store.Repository,
	wallet WalletClient,
	global GlobalClient,
	producer rabbitmq.Publisher,
	listingFeeUSD float64,
	usdArsFxRate float64,
	successURL string,
) *Service {
	s := &Service{
		repo:          repo,
		walletClient:  wallet,
		globalClient:  global,
		eventProducer: producer,
		listingFeeUSD: listingFeeUSD,
		usdArsFxRate:  usdArsFxRate,
		successURL:    successURL,
		now:           time.Now,
		sessions:      make(map[uuid.UUID]CheckoutSession),
	}
	s.strategies = map[CheckoutMethod]checkoutStrategy{
		MethodRegional:      &regionalStrategy{service: s},
		MethodInternational: &internationalStrategy{service: s},
	}
	return s
}

// SetCouponRateLimiter installs the distributed coupon lookup limiter.
func (s *Service) SetCouponRateLimiter(limiter CouponRateLimiter, limitPerMinute int) {
	s.couponRateLimiter = limiter
	s.couponLookupLimitPerMinute = limitPerMinute
}

// SuccessURL is the destination the client navigates to after a recorded
// payment.
func (s *Service) SuccessURL() string {
	return s.successURL
}
