/**
 * @description
 * This file defines the payment-side domain models: discount coupons, the
 * payer profile resolved for a checkout session, and the payment record
 * persisted after a successful international capture.
 *
 * @notes
 * - Coupon validity is a pure predicate over the record and an evaluation
 *   instant; nothing here mutates usage counters. Redemption (incrementing
 *   usos_realizados) happens atomically with the payment insert in the store.
 * - Monetary amounts stay float64 end to end: the listing fee is a fixed
 *   small price and the wire format of both providers is decimal strings.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a discount code with usage and expiry limits.
type Coupon struct {
	ID              uuid.UUID `json:"id"`
	Codigo          string    `json:"codigo"`
	Descuento       float64   `json:"discount"` // percentage, 0-100
	Activo          bool      `json:"activo"`
	UsosRealizados  int       `json:"usos_realizados"`
	UsosMaximos     int       `json:"usos_maximos"`
	FechaExpiracion time.Time `json:"fecha_expiracion"`
}

// Redeemable reports whether the coupon can still be applied at the given
// instant: active, under its usage cap, and not yet expired.
func (c Coupon) Redeemable(now time.Time) bool {
	return c.Activo && c.UsosRealizados < c.UsosMaximos && now.Before(c.FechaExpiracion)
}

// PayerProfile is the name/email pair fetched once per checkout session for
// the authenticated user. Read-only to this service.
type PayerProfile struct {
	Nombre string `json:"nombre"`
	Email  string `json:"email"`
}

// PaymentRecord is the row written to the pagos table after a successful
// capture. Exactly one record per capture; estado_pago is always "aprobado"
// in the observed flow.
type PaymentRecord struct {
	ID             uuid.UUID `json:"id"`
	DemandaID      uuid.UUID `json:"demanda_id"`
	DetalleDemanda string    `json:"detalle_demanda"`
	NombrePagador  string    `json:"nombre_pagador"`
	CorreoPagador  string    `json:"correo_pagador"`
	NumeroPago     string    `json:"numero_pago"`
	Monto          float64   `json:"monto"`
	FechaPago      time.Time `json:"fecha_pago"`
	EstadoPago     string    `json:"estado_pago"`
	Moneda         string    `json:"moneda"`
	CuponCodigo    *string   `json:"cupon_codigo,omitempty"`
}
