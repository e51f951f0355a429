package api

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts every application endpoint. Middleware and the health
// endpoint are wired up by the caller.
func Routes(h *Handlers, auth *AuthHandlers) chi.Router {
	r := chi.NewRouter()

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Put("/{instanceID}", h.UpdateProduct)
		r.Delete("/{instanceID}", h.DeleteProduct)
	})

	r.Post("/scrape", h.Scrape)

	r.Route("/price-history", func(r chi.Router) {
		r.Get("/", h.GetPriceHistory)
		r.Get("/daily", h.GetDailyPriceHistory)
		r.Post("/", h.RecordPrice)
		r.Delete("/", h.PruneHistory)
	})

	r.Route("/check-jobs", func(r chi.Router) {
		r.Post("/", h.CreateJob)
		r.Get("/", h.ListJobs)
		r.Get("/{jobID}", h.GetJob)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", auth.Login)
		r.Post("/register", auth.Register)
		r.Get("/users", auth.ListUsers)
		r.Delete("/users/{id}", auth.DeleteUser)
		r.Put("/users/{id}/role", auth.UpdateRole)
		r.Put("/users/{id}/edit", auth.EditAccount)
	})

	return r
}
