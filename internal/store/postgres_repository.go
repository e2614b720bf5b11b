/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed to read demandas and their
 * category/industry/country relations, look up coupons and payer profiles,
 * and persist payment records.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ppomarket/demandas-service/internal/domain"
)

var (
	ErrDemandaNotFound = errors.New("demanda not found")
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// demandaQuery joins the optional category, rubro and country relations so
// each row carries everything the listing cards render. Ordering is by
// fecha_inicio descending and is the order the reset filter must reproduce.
const demandaQuery = `
	SELECT d.id, d.detalle, d.fecha_inicio, d.fecha_vencimiento, d.precio,
	       c.id, c.categoria,
	       r.id, r.nombre, r.categoria_id,
	       p.nombre, p.bandera_url
	FROM demandas d
	LEFT JOIN categorias c ON c.id = d.categoria_id
	LEFT JOIN rubros r ON r.id = d.rubro_id
	LEFT JOIN paises p ON p.id = d.pais_id
`

const demandaOrder = ` ORDER BY d.fecha_inicio DESC, d.id`

func scanDemandaRow(row pgx.Row) (*domain.Demanda, error) {
	var (
		d           domain.Demanda
		catID       *uuid.UUID
		catLabel    *string
		rubroID     *uuid.UUID
		rubroNombre *string
		rubroCatID  *uuid.UUID
		paisNombre  *string
		paisBandera *string
	)
	err := row.Scan(
		&d.ID, &d.Detalle, &d.FechaInicio, &d.FechaVencimiento, &d.Precio,
		&catID, &catLabel,
		&rubroID, &rubroNombre, &rubroCatID,
		&paisNombre, &paisBandera,
	)
	if err != nil {
		return nil, err
	}
	if catID != nil && catLabel != nil {
		d.Categoria = &domain.Category{ID: *catID, Categoria: *catLabel}
	}
	if rubroID != nil && rubroNombre != nil {
		rubro := &domain.Industry{ID: *rubroID, Nombre: *rubroNombre}
		if rubroCatID != nil {
			rubro.CategoriaID = *rubroCatID
		}
		d.Rubro = rubro
	}
	if paisNombre != nil {
		pais := &domain.Country{Nombre: *paisNombre}
		if paisBandera != nil {
			pais.BanderaURL = *paisBandera
		}
		d.Pais = pais
	}
	return &d, nil
}

func (r *PostgresRepository) queryDemandas(ctx context.Context, query string, args ...interface{}) ([]domain.Demanda, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var demandas []domain.Demanda
	for rows.Next() {
		d, err := scanDemandaRow(rows)
		if err != nil {
			return nil, err
		}
		demandas = append(demandas, *d)
	}
	return demandas, rows.Err()
}

// ListDemandas returns every published demanda in listing order.
func (r *PostgresRepository) ListDemandas(ctx context.Context) ([]domain.Demanda, error) {
	return r.queryDemandas(ctx, demandaQuery+demandaOrder)
}

// FindDemandaByID retrieves a single demanda with its relations.
func (r *PostgresRepository) FindDemandaByID(ctx context.Context, demandaID uuid.UUID) (*domain.Demanda, error) {
	row := r.db.QueryRow(ctx, demandaQuery+` WHERE d.id = $1`, demandaID)
	d, err := scanDemandaRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDemandaNotFound
		}
		return nil, err
	}
	return d, nil
}

// FindDemandasByCategoria returns the demandas belonging to one category.
func (r *PostgresRepository) FindDemandasByCategoria(ctx context.Context, categoriaID uuid.UUID) ([]domain.Demanda, error) {
	return r.queryDemandas(ctx, demandaQuery+` WHERE d.categoria_id = $1`+demandaOrder, categoriaID)
}

// FindDemandasByRubro returns the demandas belonging to one rubro. This is a
// store fetch rather than an in-memory filter: selecting a rubro in the UI
// narrows independently of any category selection.
func (r *PostgresRepository) FindDemandasByRubro(ctx context.Context, rubroID uuid.UUID) ([]domain.Demanda, error) {
	return r.queryDemandas(ctx, demandaQuery+` WHERE d.rubro_id = $1`+demandaOrder, rubroID)
}

// ListCategorias returns the reference category list.
func (r *PostgresRepository) ListCategorias(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, categoria FROM categorias ORDER BY categoria`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categorias []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Categoria); err != nil {
			return nil, err
		}
		categorias = append(categorias, c)
	}
	return categorias, rows.Err()
}

// FindRubrosByCategoria returns the rubros under one category, loaded into
// the rubro selector whenever a category is picked.
func (r *PostgresRepository) FindRubrosByCategoria(ctx context.Context, categoriaID uuid.UUID) ([]domain.Industry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, nombre, categoria_id FROM rubros WHERE categoria_id = $1 ORDER BY nombre`, categoriaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rubros []domain.Industry
	for rows.Next() {
		var ind domain.Industry
		if err := rows.Scan(&ind.ID, &ind.Nombre, &ind.CategoriaID); err != nil {
			return nil, err
		}
		rubros = append(rubros, ind)
	}
	return rubros, rows.Err()
}

// FindCouponByCode retrieves a coupon by its code, case-insensitively and
// ignoring surrounding whitespace.
func (r *PostgresRepository) FindCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	query := `
		SELECT id, btrim(codigo), descuento, activo, usos_realizados, usos_maximos, fecha_expiracion
		FROM cupones
		WHERE lower(btrim(codigo)) = lower(btrim($1))
	`
	err := r.db.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Codigo, &c.Descuento, &c.Activo, &c.UsosRealizados, &c.UsosMaximos, &c.FechaExpiracion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindProfileBySubject retrieves the payer profile for an authenticated
// subject id.
func (r *PostgresRepository) FindProfileBySubject(ctx context.Context, subject string) (*domain.PayerProfile, error) {
	var p domain.PayerProfile
	query := `SELECT COALESCE(nombre, ''), COALESCE(email, '') FROM profiles WHERE auth_subject = $1`
	err := r.db.QueryRow(ctx, query, subject).Scan(&p.Nombre, &p.Email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePaymentRecord inserts the payment row and, when a coupon was applied,
// increments its usage counter in the same transaction. The increment is
// guarded by the usage cap so a coupon can never be redeemed past
// usos_maximos, even by concurrent captures.
func (r *PostgresRepository) CreatePaymentRecord(ctx context.Context, record *domain.PaymentRecord, couponCode string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin payment transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.FechaPago.IsZero() {
		record.FechaPago = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pagos (
			id, demanda_id, detalle_demanda, nombre_pagador, correo_pagador,
			numero_pago, monto, fecha_pago, estado_pago, moneda, cupon_codigo
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		record.ID, record.DemandaID, record.DetalleDemanda, record.NombrePagador, record.CorreoPagador,
		record.NumeroPago, record.Monto, record.FechaPago, record.EstadoPago, record.Moneda, record.CuponCodigo,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment record: %w", err)
	}

	if strings.TrimSpace(couponCode) != "" {
		tag, err := tx.Exec(ctx, `
			UPDATE cupones
			SET usos_realizados = usos_realizados + 1
			WHERE lower(btrim(codigo)) = lower(btrim($1))
			  AND activo
			  AND usos_realizados < usos_maximos
		`, couponCode)
		if err != nil {
			return fmt.Errorf("failed to redeem coupon: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrCouponExhausted
		}
	}

	return tx.Commit(ctx)
}
