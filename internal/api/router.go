/**
 * @description
 * This file sets up the HTTP router for the demandas-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies any necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DemandasRoutes creates and returns a new router for the demandas service.
func DemandasRoutes(h *DemandasHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		// Listing and filters
		r.Get("/demandas", h.ListDemandasHandler)
		r.Get("/categorias", h.ListCategoriasHandler)
		r.Get("/categorias/{id}/rubros", h.ListRubrosHandler)

		// Coupon validation
		r.Post("/cupones/validar", h.ValidateCouponHandler)

		// Checkout session lifecycle
		r.Post("/checkout/sesiones", h.OpenSessionHandler)
		r.Get("/checkout/sesiones/{id}", h.GetSessionHandler)
		r.Delete("/checkout/sesiones/{id}", h.CloseSessionHandler)
		r.Post("/checkout/sesiones/{id}/metodos", h.ShowMethodsHandler)
		r.Post("/checkout/sesiones/{id}/cupon", h.ApplyCouponHandler)
		r.Post("/checkout/sesiones/{id}/preferencia", h.CreatePreferenceHandler)
		r.Post("/checkout/sesiones/{id}/orden", h.CreateOrderHandler)
		r.Post("/checkout/sesiones/{id}/captura", h.CaptureOrderHandler)
	})

	return r
}
