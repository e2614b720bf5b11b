/**
 * @description
 * Listing retrieval and filtering. Rubro and categoria selections are store
 * fetches (a rubro narrows independently of the category's own set
 * operation); the free-text query is an in-memory, case-insensitive
 * substring match applied on top, preserving store order. A zero-value
 * filter is the reset operation and reproduces the unfiltered listing.
 */

package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppomarket/demandas-service/internal/domain"
)

// Fallback labels rendered when a demanda lacks the optional relation.
const (
	FallbackCategoriaLabel = "Sin categoría"
	FallbackRubroLabel     = "Sin rubro"
)

// DemandaFilter holds the three optional listing filters. The zero value
// selects everything.
type DemandaFilter struct {
	CategoriaID uuid.UUID
	RubroID     uuid.UUID
	Query       string
}

// FilterByQuery returns the subset of demandas whose detalle contains the
// query, case-insensitively, in their original order. An empty query returns
// the input unchanged.
func FilterByQuery(demandas []domain.Demanda, query string) []domain.Demanda {
	query = strings.TrimSpace(query)
	if query == "" {
		return demandas
	}
	needle := strings.ToLower(query)
	filtered := make([]domain.Demanda, 0, len(demandas))
	for _, d := range demandas {
		if strings.Contains(strings.ToLower(d.Detalle), needle) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// ListDemandas applies the filter and returns the display-ready listing.
func (s *Service) ListDemandas(ctx context.Context, filter DemandaFilter) ([]domain.DemandaView, error) {
	var (
		demandas []domain.Demanda
		err      error
	)
	switch {
	case filter.RubroID != uuid.Nil:
		demandas, err = s.repo.FindDemandasByRubro(ctx, filter.RubroID)
	case filter.CategoriaID != uuid.Nil:
		demandas, err = s.repo.FindDemandasByCategoria(ctx, filter.CategoriaID)
	default:
		demandas, err = s.repo.ListDemandas(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list demandas: %w", err)
	}

	demandas = FilterByQuery(demandas, filter.Query)

	views := make([]domain.DemandaView, 0, len(demandas))
	now := s.now()
	for _, d := range demandas {
		views = append(views, buildDemandaView(d, now))
	}
	return views, nil
}

// ListCategorias returns the category reference list for the filter selector.
func (s *Service) ListCategorias(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategorias(ctx)
}

// ListRubrosByCategoria returns the rubros loaded when a category is
// selected; selecting a category resets any rubro selection on the client.
func (s *Service) ListRubrosByCategoria(ctx context.Context, categoriaID uuid.UUID) ([]domain.Industry, error) {
	return s.repo.FindRubrosByCategoria(ctx, categoriaID)
}

func buildDemandaView(d domain.Demanda, now time.Time) domain.DemandaView {
	view := domain.DemandaView{
		Demanda:         d,
		CategoriaLabel:  FallbackCategoriaLabel,
		RubroLabel:      FallbackRubroLabel,
		VencimientoNota: vencimientoNota(d.FechaVencimiento, now),
	}
	if d.Categoria != nil && d.Categoria.Categoria != "" {
		view.CategoriaLabel = d.Categoria.Categoria
	}
	if d.Rubro != nil && d.Rubro.Nombre != "" {
		view.RubroLabel = d.Rubro.Nombre
	}
	return view
}

// vencimientoNota renders the days-remaining annotation shown next to the
// expiry date on each listing card.
func vencimientoNota(vencimiento, now time.Time) string {
	days := int(math.Ceil(vencimiento.Sub(now).Hours() / 24))
	if days > 0 {
		return fmt.Sprintf("Faltan %d días", days)
	}
	return fmt.Sprintf("¡Venció hace %d días!", -days)
}
