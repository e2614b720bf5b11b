/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the demandas-service needs. Keeping an interface between the
 * application logic and PostgreSQL makes the coupon and checkout logic
 * testable against in-memory fakes.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For identifier handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/ppomarket/demandas-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Listing reads
	ListDemandas(ctx context.Context) ([]domain.Demanda, error)
	FindDemandaByID(ctx context.Context, demandaID uuid.UUID) (*domain.Demanda, error)
	FindDemandasByCategoria(ctx context.Context, categoriaID uuid.UUID) ([]domain.Demanda, error)
	FindDemandasByRubro(ctx context.Context, rubroID uuid.UUID) ([]domain.Demanda, error)
	ListCategorias(ctx context.Context) ([]domain.Category, error)
	FindRubrosByCategoria(ctx context.Context, categoriaID uuid.UUID) ([]domain.Industry, error)

	// Coupon and profile reads
	FindCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
	FindProfileBySubject(ctx context.Context, subject string) (*domain.PayerProfile, error)

	// Payment persistence. When couponCode is non-empty the coupon's usage
	// counter is incremented in the same transaction as the payment insert,
	// guarded by its usage cap.
	CreatePaymentRecord(ctx context.Context, record *domain.PaymentRecord, couponCode string) error
}
