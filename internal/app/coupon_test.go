package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppomarket/demandas-service/internal/domain"
	"github.com/ppomarket/demandas-service/internal/store"
)

type couponRepoStub struct {
	store.Repository

	coupon    *domain.Coupon
	lookupErr error

	lookupCalls int
	lookupCode  string
}

func (s *couponRepoStub) FindCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	s.lookupCalls++
	s.lookupCode = code
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.coupon == nil {
		return nil, store.ErrCouponNotFound
	}
	return s.coupon, nil
}

func newCouponTestService(repo store.Repository, now time.Time) *Service {
	s := NewService(repo, nil, nil, nil, 10, 1200, "/success")
	s.now = func() time.Time { return now }
	return s
}

func TestValidateCoupon(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		coupon       *domain.Coupon
		wantOK       bool
		wantDiscount float64
	}{
		{
			name: "valid coupon returns its discount",
			coupon: &domain.Coupon{
				Codigo: "DESC10", Descuento: 10, Activo: true,
				UsosRealizados: 3, UsosMaximos: 100,
				FechaExpiracion: now.Add(24 * time.Hour),
			},
			wantOK: true, wantDiscount: 10,
		},
		{
			name: "expired coupon is rejected",
			coupon: &domain.Coupon{
				Codigo: "EXPIRED", Descuento: 10, Activo: true,
				UsosRealizados: 0, UsosMaximos: 100,
				FechaExpiracion: now.Add(-time.Hour),
			},
			wantOK: false, wantDiscount: 0,
		},
		{
			name: "exhausted coupon is rejected",
			coupon: &domain.Coupon{
				Codigo: "FULL", Descuento: 10, Activo: true,
				UsosRealizados: 100, UsosMaximos: 100,
				FechaExpiracion: now.Add(24 * time.Hour),
			},
			wantOK: false, wantDiscount: 0,
		},
		{
			name: "inactive coupon is rejected",
			coupon: &domain.Coupon{
				Codigo: "OFF", Descuento: 10, Activo: false,
				UsosRealizados: 0, UsosMaximos: 100,
				FechaExpiracion: now.Add(24 * time.Hour),
			},
			wantOK: false, wantDiscount: 0,
		},
		{
			name:   "unknown coupon fails closed",
			coupon: nil,
			wantOK: false, wantDiscount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &couponRepoStub{coupon: tt.coupon}
			svc := newCouponTestService(repo, now)

			got, err := svc.ValidateCoupon(context.Background(), "user-1", "SOMECODE")
			if err != nil {
				t.Fatalf("ValidateCoupon returned error: %v", err)
			}
			if got.OK != tt.wantOK {
				t.Fatalf("expected ok=%t, got %t", tt.wantOK, got.OK)
			}
			if got.DiscountPercent != tt.wantDiscount {
				t.Fatalf("expected discount %v, got %v", tt.wantDiscount, got.DiscountPercent)
			}
		})
	}
}

func TestValidateCouponEmptyCodeSkipsLookup(t *testing.T) {
	repo := &couponRepoStub{}
	svc := newCouponTestService(repo, time.Now())

	for _, code := range []string{"", "   "} {
		got, err := svc.ValidateCoupon(context.Background(), "user-1", code)
		if err != nil {
			t.Fatalf("ValidateCoupon(%q) returned error: %v", code, err)
		}
		if got.OK {
			t.Fatalf("expected empty code to validate as false")
		}
	}
	if repo.lookupCalls != 0 {
		t.Fatalf("expected no repository calls for empty codes, got %d", repo.lookupCalls)
	}
}

func TestValidateCouponLookupErrorFailsClosed(t *testing.T) {
	repo := &couponRepoStub{lookupErr: errors.New("connection refused")}
	svc := newCouponTestService(repo, time.Now())

	got, err := svc.ValidateCoupon(context.Background(), "user-1", "DESC10")
	if err != nil {
		t.Fatalf("expected lookup failure to degrade, got error: %v", err)
	}
	if got.OK || got.DiscountPercent != 0 {
		t.Fatalf("expected fail-closed validation, got ok=%t discount=%v", got.OK, got.DiscountPercent)
	}
}

func TestValidateCouponIsDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &couponRepoStub{coupon: &domain.Coupon{
		Codigo: "DESC10", Descuento: 10, Activo: true,
		UsosRealizados: 1, UsosMaximos: 100,
		FechaExpiracion: now.Add(time.Hour),
	}}
	svc := newCouponTestService(repo, now)

	first, err := svc.ValidateCoupon(context.Background(), "user-1", "DESC10")
	if err != nil {
		t.Fatalf("ValidateCoupon returned error: %v", err)
	}
	second, err := svc.ValidateCoupon(context.Background(), "user-1", "DESC10")
	if err != nil {
		t.Fatalf("ValidateCoupon returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical outcomes for identical inputs, got %+v then %+v", first, second)
	}
	// Validation never consumes usage.
	if repo.coupon.UsosRealizados != 1 {
		t.Fatalf("expected validation to leave usage untouched, got %d", repo.coupon.UsosRealizados)
	}
}

type fixedRateLimiter struct {
	count int
	err   error
	calls int
}

func (f *fixedRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	f.calls++
	return f.count, 30, f.err
}

func TestValidateCouponRateLimited(t *testing.T) {
	repo := &couponRepoStub{}
	svc := newCouponTestService(repo, time.Now())
	svc.SetCouponRateLimiter(&fixedRateLimiter{count: 31}, 30)

	_, err := svc.ValidateCoupon(context.Background(), "user-1", "DESC10")
	if !errors.Is(err, ErrCouponRateLimited) {
		t.Fatalf("expected ErrCouponRateLimited, got %v", err)
	}
	if repo.lookupCalls != 0 {
		t.Fatalf("expected no repository call once rate limited, got %d", repo.lookupCalls)
	}
}

func TestValidateCouponLimiterFailureDegradesOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &couponRepoStub{coupon: &domain.Coupon{
		Codigo: "DESC10", Descuento: 10, Activo: true,
		UsosRealizados: 0, UsosMaximos: 10,
		FechaExpiracion: now.Add(time.Hour),
	}}
	svc := newCouponTestService(repo, now)
	svc.SetCouponRateLimiter(&fixedRateLimiter{err: errors.New("redis down")}, 30)

	got, err := svc.ValidateCoupon(context.Background(), "user-1", "DESC10")
	if err != nil {
		t.Fatalf("expected limiter failure to degrade open, got %v", err)
	}
	if !got.OK {
		t.Fatalf("expected lookup to proceed when limiter is unavailable")
	}
}
