package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"book-marketplace-service/internal/store"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	bookStore     store.BookStorer
	ratingStore   store.RatingStorer
	categoryStore store.CategoryStorer
	validate      *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(bs store.BookStorer, rs store.RatingStorer, cs store.CategoryStorer) *HTTPHandler {
	return &HTTPHandler{
		bookStore:     bs,
		ratingStore:   rs,
		categoryStore: cs,
		validate:      validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("ERROR: Failed to encode JSON response: %v", err)
			http.Error(w, `{"error": "Internal server error during JSON encoding"}`, http.StatusInternalServerError)
		}
	}
}

func decodeJSONBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// RegisterRoutes sets up the HTTP routes for the service.
// Authentication and role checks belong to the enclosing gateway; every
// handler here assumes the call is already authorized.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/books", func(r chi.Router) {
		r.Post("/", h.CreateBook) // POST /api/v1/books
		r.Get("/", h.ListBooks)   // GET  /api/v1/books
		r.Route("/{bookId}", func(r chi.Router) {
			r.Get("/", h.GetBookByID)            // GET    /api/v1/books/{bookId}
			r.Put("/", h.UpdateBook)             // PUT    /api/v1/books/{bookId}
			r.Delete("/", h.DeleteBook)          // DELETE /api/v1/books/{bookId}
			r.Post("/ratings", h.CreateRating)   // POST   /api/v1/books/{bookId}/ratings
			r.Get("/ratings", h.ListBookRatings) // GET    /api/v1/books/{bookId}/ratings
		})
	})

	r.Route("/api/v1/ratings/{ratingId}", func(r chi.Router) {
		r.Get("/", h.GetRatingByID)   // GET    /api/v1/ratings/{ratingId}
		r.Put("/", h.UpdateRating)    // PUT    /api/v1/ratings/{ratingId}
		r.Delete("/", h.DeleteRating) // DELETE /api/v1/ratings/{ratingId}
	})

	r.Get("/api/v1/sellers/{sellerId}/books", h.ListSellerBooks)

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Post("/", h.CreateCategory) // POST /api/v1/categories
		r.Get("/", h.ListCategories)  // GET  /api/v1/categories
		r.Route("/{categoryId}", func(r chi.Router) {
			r.Get("/", h.GetCategoryByID)   // GET    /api/v1/categories/{categoryId}
			r.Put("/", h.UpdateCategory)    // PUT    /api/v1/categories/{categoryId}
			r.Delete("/", h.DeleteCategory) // DELETE /api/v1/categories/{categoryId}
		})
	})
}
