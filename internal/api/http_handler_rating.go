package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"book-marketplace-service/internal/domain"
	"book-marketplace-service/internal/store"
)

// RatingCreateInput defines the expected input for rating a book.
// UserID rides in the payload because authentication lives in the enclosing
// gateway; this service receives already-authorized calls.
type RatingCreateInput struct {
	UserID int64   `json:"user_id" validate:"required,gt=0"`
	Score  int     `json:"score" validate:"required,min=1,max=5"`
	Text   *string `json:"text" validate:"omitempty,max=2000"`
}

// CreateRating stores a new rating for a book. The store applies the rating
// row and the book's refreshed average in one transaction, so a failed
// aggregate update means no rating lands at all.
func (h *HTTPHandler) CreateRating(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid book ID format")
		return
	}

	var input RatingCreateInput
	if err := decodeJSONBody(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	rating := &domain.Rating{
		BookID: bookID,
		UserID: input.UserID,
		Score:  input.Score,
		Text:   input.Text,
	}

	created, err := h.ratingStore.CreateRating(r.Context(), rating)
	if err != nil {
		log.Printf("ERROR: CreateRating store operation for book %d failed: %v", bookID, err)
		switch {
		case errors.Is(err, store.ErrBookNotFound):
			respondWithError(w, http.StatusNotFound, store.ErrBookNotFound.Error())
		case errors.Is(err, store.ErrDuplicateRating):
			respondWithError(w, http.StatusConflict, store.ErrDuplicateRating.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to create rating")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListBookRatings(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid book ID format")
		return
	}

	q := r.URL.Query()
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil || perPage <= 0 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	params := store.ListRatingsParams{
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("order"),
	}

	ratings, totalCount, err := h.ratingStore.ListRatingsForBook(r.Context(), bookID, params)
	if err != nil {
		log.Printf("ERROR: ListBookRatings store operation for book %d failed: %v", bookID, err)
		if errors.Is(err, store.ErrBookNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrBookNotFound.Error())
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to retrieve ratings")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, struct {
		Ratings     []domain.Rating `json:"ratings"`
		Total       int             `json:"total"`
		Pages       int             `json:"pages"`
		CurrentPage int             `json:"current_page"`
		BookID      int64           `json:"book_id"`
	}{
		Ratings:     ratings,
		Total:       totalCount,
		Pages:       totalPages(totalCount, perPage),
		CurrentPage: page,
		BookID:      bookID,
	})
}

func (h *HTTPHandler) GetRatingByID(w http.ResponseWriter, r *http.Request) {
	ratingID, err := strconv.ParseInt(chi.URLParam(r, "ratingId"), 10, 64)
	if err != nil || ratingID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid rating ID format")
		return
	}

	rating, err := h.ratingStore.GetRatingByID(r.Context(), ratingID)
	if err != nil {
		log.Printf("ERROR: GetRatingByID store operation for ID %d failed: %v", ratingID, err)
		if errors.Is(err, store.ErrRatingNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrRatingNotFound.Error())
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to retrieve rating")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, rating)
}

// RatingUpdateInput defines the expected input for updating a rating.
type RatingUpdateInput struct {
	Score int     `json:"score" validate:"required,min=1,max=5"`
	Text  *string `json:"text" validate:"omitempty,max=2000"`
}

func (h *HTTPHandler) UpdateRating(w http.ResponseWriter, r *http.Request) {
	ratingID, err := strconv.ParseInt(chi.URLParam(r, "ratingId"), 10, 64)
	if err != nil || ratingID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid rating ID format")
		return
	}

	var input RatingUpdateInput
	if err := decodeJSONBody(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	updated, err := h.ratingStore.UpdateRating(r.Context(), ratingID, input.Score, input.Text)
	if err != nil {
		log.Printf("ERROR: UpdateRating store operation for ID %d failed: %v", ratingID, err)
		switch {
		case errors.Is(err, store.ErrRatingNotFound):
			respondWithError(w, http.StatusNotFound, store.ErrRatingNotFound.Error())
		case errors.Is(err, store.ErrBookNotFound):
			respondWithError(w, http.StatusNotFound, store.ErrBookNotFound.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to update rating")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	ratingID, err := strconv.ParseInt(chi.URLParam(r, "ratingId"), 10, 64)
	if err != nil || ratingID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid rating ID format")
		return
	}

	if err := h.ratingStore.DeleteRating(r.Context(), ratingID); err != nil {
		log.Printf("ERROR: DeleteRating store operation for ID %d failed: %v", ratingID, err)
		switch {
		case errors.Is(err, store.ErrRatingNotFound):
			respondWithError(w, http.StatusNotFound, store.ErrRatingNotFound.Error())
		case errors.Is(err, store.ErrBookNotFound):
			respondWithError(w, http.StatusNotFound, store.ErrBookNotFound.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to delete rating")
		}
		return
	}

	respondWithJSON(w, http.StatusNoContent, nil)
}
