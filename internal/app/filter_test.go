package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ppomarket/demandas-service/internal/domain"
	"github.com/ppomarket/demandas-service/internal/store"
)

type listingRepoStub struct {
	store.Repository

	demandas []domain.Demanda

	listCalls      int
	byCategoriaID  uuid.UUID
	byRubroID      uuid.UUID
	categoriaCalls int
	rubroCalls     int
}

func (s *listingRepoStub) ListDemandas(ctx context.Context) ([]domain.Demanda, error) {
	s.listCalls++
	return s.demandas, nil
}

func (s *listingRepoStub) FindDemandasByCategoria(ctx context.Context, categoriaID uuid.UUID) ([]domain.Demanda, error) {
	s.categoriaCalls++
	s.byCategoriaID = categoriaID
	return s.demandas, nil
}

func (s *listingRepoStub) FindDemandasByRubro(ctx context.Context, rubroID uuid.UUID) ([]domain.Demanda, error) {
	s.rubroCalls++
	s.byRubroID = rubroID
	return s.demandas, nil
}

func sampleDemandas(now time.Time) []domain.Demanda {
	return []domain.Demanda{
		{
			ID:               uuid.New(),
			Detalle:          "Reparación de aire acondicionado",
			FechaVencimiento: now.Add(72 * time.Hour),
			Categoria:        &domain.Category{ID: uuid.New(), Categoria: "Hogar"},
			Rubro:            &domain.Industry{ID: uuid.New(), Nombre: "Climatización"},
		},
		{
			ID:               uuid.New(),
			Detalle:          "Diseño de logo para emprendimiento",
			FechaVencimiento: now.Add(24 * time.Hour),
		},
		{
			ID:               uuid.New(),
			Detalle:          "Pintura de interiores",
			FechaVencimiento: now.Add(-48 * time.Hour),
			Categoria:        &domain.Category{ID: uuid.New(), Categoria: "Hogar"},
		},
	}
}

func TestFilterByQuery(t *testing.T) {
	now := time.Now()
	demandas := sampleDemandas(now)

	tests := []struct {
		name        string
		query       string
		wantDetails []string
	}{
		{
			name:        "empty query returns everything in order",
			query:       "",
			wantDetails: []string{"Reparación de aire acondicionado", "Diseño de logo para emprendimiento", "Pintura de interiores"},
		},
		{
			name:        "whitespace query is treated as empty",
			query:       "   ",
			wantDetails: []string{"Reparación de aire acondicionado", "Diseño de logo para emprendimiento", "Pintura de interiores"},
		},
		{
			name:        "substring match is case insensitive",
			query:       "LOGO",
			wantDetails: []string{"Diseño de logo para emprendimiento"},
		},
		{
			name:        "multiple matches preserve store order",
			query:       "de",
			wantDetails: []string{"Reparación de aire acondicionado", "Diseño de logo para emprendimiento", "Pintura de interiores"},
		},
		{
			name:        "no match yields empty result",
			query:       "plomería",
			wantDetails: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByQuery(demandas, tt.query)
			if len(got) != len(tt.wantDetails) {
				t.Fatalf("expected %d results, got %d", len(tt.wantDetails), len(got))
			}
			for i, want := range tt.wantDetails {
				if got[i].Detalle != want {
					t.Fatalf("result %d: expected %q, got %q", i, want, got[i].Detalle)
				}
			}
		})
	}
}

func TestListDemandasFilterRouting(t *testing.T) {
	now := time.Now()
	categoriaID := uuid.New()
	rubroID := uuid.New()

	tests := []struct {
		name               string
		filter             DemandaFilter
		wantListCalls      int
		wantCategoriaCalls int
		wantRubroCalls     int
	}{
		{
			name:          "zero filter lists everything",
			filter:        DemandaFilter{},
			wantListCalls: 1,
		},
		{
			name:               "categoria filter fetches by categoria",
			filter:             DemandaFilter{CategoriaID: categoriaID},
			wantCategoriaCalls: 1,
		},
		{
			name:           "rubro filter wins over categoria",
			filter:         DemandaFilter{CategoriaID: categoriaID, RubroID: rubroID},
			wantRubroCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &listingRepoStub{demandas: sampleDemandas(now)}
			svc := NewService(repo, nil, nil, nil, 10, 1200, "/success")
			svc.now = func() time.Time { return now }

			if _, err := svc.ListDemandas(context.Background(), tt.filter); err != nil {
				t.Fatalf("ListDemandas returned error: %v", err)
			}
			if repo.listCalls != tt.wantListCalls {
				t.Fatalf("expected %d list calls, got %d", tt.wantListCalls, repo.listCalls)
			}
			if repo.categoriaCalls != tt.wantCategoriaCalls {
				t.Fatalf("expected %d categoria calls, got %d", tt.wantCategoriaCalls, repo.categoriaCalls)
			}
			if repo.rubroCalls != tt.wantRubroCalls {
				t.Fatalf("expected %d rubro calls, got %d", tt.wantRubroCalls, repo.rubroCalls)
			}
		})
	}
}

func TestListDemandasResetReproducesFullListing(t *testing.T) {
	now := time.Now()
	repo := &listingRepoStub{demandas: sampleDemandas(now)}
	svc := NewService(repo, nil, nil, nil, 10, 1200, "/success")
	svc.now = func() time.Time { return now }

	filtered, err := svc.ListDemandas(context.Background(), DemandaFilter{Query: "logo"})
	if err != nil {
		t.Fatalf("ListDemandas returned error: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", len(filtered))
	}

	// Resetting to the zero-value filter reproduces the full listing in order.
	reset, err := svc.ListDemandas(context.Background(), DemandaFilter{})
	if err != nil {
		t.Fatalf("ListDemandas returned error: %v", err)
	}
	if len(reset) != len(repo.demandas) {
		t.Fatalf("expected %d results after reset, got %d", len(repo.demandas), len(reset))
	}
	for i := range reset {
		if reset[i].ID != repo.demandas[i].ID {
			t.Fatalf("result %d out of order after reset", i)
		}
	}
}

func TestListDemandasViewLabels(t *testing.T) {
	now := time.Now()
	repo := &listingRepoStub{demandas: sampleDemandas(now)}
	svc := NewService(repo, nil, nil, nil, 10, 1200, "/success")
	svc.now = func() time.Time { return now }

	views, err := svc.ListDemandas(context.Background(), DemandaFilter{})
	if err != nil {
		t.Fatalf("ListDemandas returned error: %v", err)
	}

	if views[0].CategoriaLabel != "Hogar" || views[0].RubroLabel != "Climatización" {
		t.Fatalf("expected relation labels, got %q / %q", views[0].CategoriaLabel, views[0].RubroLabel)
	}
	if views[1].CategoriaLabel != FallbackCategoriaLabel || views[1].RubroLabel != FallbackRubroLabel {
		t.Fatalf("expected fallback labels, got %q / %q", views[1].CategoriaLabel, views[1].RubroLabel)
	}
	if views[2].RubroLabel != FallbackRubroLabel {
		t.Fatalf("expected rubro fallback for missing rubro, got %q", views[2].RubroLabel)
	}
}

func TestVencimientoNota(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		vencimiento time.Time
		want        string
	}{
		{
			name:        "future expiry counts remaining days",
			vencimiento: now.Add(72 * time.Hour),
			want:        "Faltan 3 días",
		},
		{
			name:        "partial day rounds up",
			vencimiento: now.Add(25 * time.Hour),
			want:        "Faltan 2 días",
		},
		{
			name:        "past expiry counts elapsed days",
			vencimiento: now.Add(-48 * time.Hour),
			want:        "¡Venció hace 2 días!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vencimientoNota(tt.vencimiento, now)
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
