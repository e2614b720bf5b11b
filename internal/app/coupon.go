/**
 * @description
 * Coupon validation logic. Validation is fail-closed: an empty code, a
 * missing record, or any lookup failure all resolve to "no discount" rather
 * than an error, so a broken coupon path can never block browsing or
 * checkout. Validity is a pure function of the coupon record and the
 * evaluation instant — validating never mutates usage counters; redemption
 * happens in the store at payment persistence time.
 *
 * @dependencies
 * - internal/domain, internal/store: coupon model and lookup.
 * - The optional Redis rate limiter keeps coupon codes from being brute
 *   forced through the validation endpoint.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ppomarket/demandas-service/internal/domain"
	"github.com/ppomarket/demandas-service/internal/store"
)

// ErrCouponRateLimited is returned when a subject has exceeded the coupon
// lookup rate limit for the current window.
var ErrCouponRateLimited = errors.New("coupon lookup rate limit exceeded")

// CouponValidation is the outcome of validating a coupon code.
type CouponValidation struct {
	OK              bool    `json:"success"`
	DiscountPercent float64 `json:"discount_percent"`
}

// CouponLookupResult pairs the validation outcome with the raw record, for
// the validation endpoint's wire response. Coupon is nil when the code did
// not resolve.
type CouponLookupResult struct {
	Validation CouponValidation
	Coupon     *domain.Coupon
}

// evaluateCoupon decides redeemability for one coupon record at one instant.
func evaluateCoupon(c domain.Coupon, now time.Time) CouponValidation {
	if !c.Redeemable(now) {
		return CouponValidation{}
	}
	return CouponValidation{OK: true, DiscountPercent: c.Descuento}
}

// ValidateCoupon checks a coupon code against the store. The subject is the
// authenticated user, used only for rate limiting. An empty code short
// circuits without touching the store or the limiter.
func (s *Service) ValidateCoupon(ctx context.Context, subject, code string) (CouponValidation, error) {
	result, err := s.LookupCoupon(ctx, subject, code)
	if err != nil {
		return CouponValidation{}, err
	}
	return result.Validation, nil
}

// LookupCoupon resolves a coupon code to its record and validation outcome.
func (s *Service) LookupCoupon(ctx context.Context, subject, code string) (*CouponLookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &CouponLookupResult{}, nil
	}

	if err := s.consumeCouponRateLimit(ctx, subject); err != nil {
		return nil, err
	}

	coupon, err := s.repo.FindCouponByCode(ctx, code)
	if err != nil {
		// Missing coupon and lookup errors both fail closed.
		if !errors.Is(err, store.ErrCouponNotFound) {
			log.Printf("level=warn component=coupon msg=\"coupon lookup failed; treating as no coupon\" code=%q err=%v", code, err)
		}
		return &CouponLookupResult{}, nil
	}

	return &CouponLookupResult{
		Validation: evaluateCoupon(*coupon, s.now()),
		Coupon:     coupon,
	}, nil
}

func (s *Service) consumeCouponRateLimit(ctx context.Context, subject string) error {
	if s.couponRateLimiter == nil || s.couponLookupLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.couponRateLimiter.ConsumeRateLimit(ctx, "coupon_lookup", subject, s.couponLookupLimitPerMinute, time.Minute)
	if err != nil {
		// The limiter degrades open: Redis being down must not block checkout.
		log.Printf("level=warn component=coupon msg=\"rate limiter unavailable; allowing lookup\" subject=%s err=%v", subject, err)
		return nil
	}
	if count > s.couponLookupLimitPerMinute {
		log.Printf("level=warn component=coupon msg=\"coupon lookup rate limited\" subject=%s count=%d retry_after_s=%d", subject, count, retryAfter)
		return ErrCouponRateLimited
	}
	return nil
}
