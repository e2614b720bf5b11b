/**
 * @description
 * This file defines the marketplace listing models for the demandas-service.
 * A Demanda is a service request published by a client; it is the sellable
 * unit of the marketplace. Demandas are created and edited elsewhere — this
 * service only reads, filters, and displays them.
 *
 * @notes
 * - JSON tags follow the Spanish wire format consumed by the web front-end
 *   (detalle, fecha_vencimiento, categorias, rubros, pais).
 * - Category/Industry/Country relations are pointers: a demanda may lack any
 *   of them, and the presentation layer substitutes fallback labels.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Country carries the display data for a demanda's country of origin.
type Country struct {
	Nombre     string `json:"nombre"`
	BanderaURL string `json:"bandera_url"`
}

// Category is a top-level classification for demandas. Reference data,
// read-only to this service.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Categoria string    `json:"categoria"`
}

// Industry ("rubro") is a sub-classification within a Category.
type Industry struct {
	ID          uuid.UUID `json:"id"`
	Nombre      string    `json:"nombre"`
	CategoriaID uuid.UUID `json:"categoria_id"`
}

// Demanda represents a published service request.
type Demanda struct {
	ID               uuid.UUID `json:"id"`
	Detalle          string    `json:"detalle"`
	FechaInicio      time.Time `json:"fecha_inicio"`
	FechaVencimiento time.Time `json:"fecha_vencimiento"`
	Precio           float64   `json:"precio"`
	Pais             *Country  `json:"pais,omitempty"`
	Categoria        *Category `json:"categorias,omitempty"`
	Rubro            *Industry `json:"rubros,omitempty"`
}

// DemandaView is the listing DTO returned to the front-end: the raw record
// plus the derived display fields the cards render.
type DemandaView struct {
	Demanda
	CategoriaLabel  string `json:"categoria_label"`
	RubroLabel      string `json:"rubro_label"`
	VencimientoNota string `json:"vencimiento_nota"`
}
