/**
 * @description
 * This file contains the HTTP handlers for the demandas-service's listing and
 * coupon endpoints. Handlers are responsible for parsing incoming requests,
 * calling the appropriate methods on the application service, and writing the
 * HTTP response. They act as the bridge between the web layer and the
 * business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/store: For service logic and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ppomarket/demandas-service/internal/app"
)

// DemandasHandlers holds the application service that handlers will use.
type DemandasHandlers struct {
	service *app.Service
}

// NewDemandasHandlers creates handlers bound to the given service.
func NewDemandasHandlers(service *app.Service) *DemandasHandlers {
	return &DemandasHandlers{service: service}
}

// ListDemandasHandler serves the filtered listing. All three filters are
// optional query params: categoria and rubro are uuids, q is free text.
func (h *DemandasHandlers) ListDemandasHandler(w http.ResponseWriter, r *http.Request) {
	var filter app.DemandaFilter

	if raw := r.URL.Query().Get("categoria"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid categoria ID format")
			return
		}
		filter.CategoriaID = id
	}
	if raw := r.URL.Query().Get("rubro"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid rubro ID format")
			return
		}
		filter.RubroID = id
	}
	filter.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	demandas, err := h.service.ListDemandas(r.Context(), filter)
	if err != nil {
		log.Printf("level=error component=api handler=list_demandas msg=\"listing fetch failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not fetch demandas")
		return
	}

	h.writeJSON(w, http.StatusOK, demandas)
}

// ListCategoriasHandler returns every category for the filter dropdown.
func (h *DemandasHandlers) ListCategoriasHandler(w http.ResponseWriter, r *http.Request) {
	categorias, err := h.service.ListCategorias(r.Context())
	if err != nil {
		log.Printf("level=error component=api handler=list_categorias msg=\"category fetch failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not fetch categorias")
		return
	}
	h.writeJSON(w, http.StatusOK, categorias)
}

// ListRubrosHandler returns the industries of one category; the dependent
// fetch performed when a category is selected.
func (h *DemandasHandlers) ListRubrosHandler(w http.ResponseWriter, r *http.Request) {
	categoriaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid categoria ID format")
		return
	}

	rubros, err := h.service.ListRubrosByCategoria(r.Context(), categoriaID)
	if err != nil {
		log.Printf("level=error component=api handler=list_rubros msg=\"rubro fetch failed\" categoria_id=%s err=%v", categoriaID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not fetch rubros")
		return
	}
	h.writeJSON(w, http.StatusOK, rubros)
}

type validateCouponRequest struct {
	Codigo string `json:"codigo"`
}

type validateCouponData struct {
	Discount        float64   `json:"discount"`
	Activo          bool      `json:"activo"`
	UsosRealizados  int       `json:"usos_realizados"`
	UsosMaximos     int       `json:"usos_maximos"`
	FechaExpiracion time.Time `json:"fecha_expiracion"`
}

type validateCouponResponse struct {
	Success bool                `json:"success"`
	Data    *validateCouponData `json:"data,omitempty"`
}

// ValidateCouponHandler checks a coupon code. An unknown, inactive, expired
// or exhausted code is a normal 200 with success=false, never an error.
func (h *DemandasHandlers) ValidateCouponHandler(w http.ResponseWriter, r *http.Request) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get subject from context")
		return
	}

	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.LookupCoupon(r.Context(), subject, req.Codigo)
	if err != nil {
		if errors.Is(err, app.ErrCouponRateLimited) {
			h.writeError(w, http.StatusTooManyRequests, "Too many coupon lookups. Please wait and try again.")
			return
		}
		log.Printf("level=error component=api handler=validate_coupon msg=\"coupon lookup failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not validate coupon")
		return
	}

	resp := validateCouponResponse{Success: result.Validation.OK}
	if result.Coupon != nil {
		resp.Data = &validateCouponData{
			Discount:        result.Coupon.Descuento,
			Activo:          result.Coupon.Activo,
			UsosRealizados:  result.Coupon.UsosRealizados,
			UsosMaximos:     result.Coupon.UsosMaximos,
			FechaExpiracion: result.Coupon.FechaExpiracion,
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// writeJSON is a helper for writing JSON responses.
func (h *DemandasHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *DemandasHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
