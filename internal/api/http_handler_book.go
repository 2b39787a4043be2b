package api

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"book-marketplace-service/internal/domain"
	"book-marketplace-service/internal/store"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// BookCreateInput defines the expected input for creating a book listing.
type BookCreateInput struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description *string         `json:"description" validate:"omitempty"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	SellerID    int64           `json:"seller_id" validate:"required,gt=0"`
	AuthorID    *int64          `json:"author_id" validate:"omitempty,gt=0"`
	PublisherID *int64          `json:"publisher_id" validate:"omitempty,gt=0"`
	CategoryIDs []int64         `json:"category_ids" validate:"omitempty,dive,gt=0"`
}

func (h *HTTPHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var input BookCreateInput
	if err := decodeJSONBody(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	if input.Price.LessThanOrEqual(decimal.Zero) {
		respondWithError(w, http.StatusBadRequest, "price must be greater than zero")
		return
	}

	book := &domain.Book{
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		SellerID:    input.SellerID,
		AuthorID:    input.AuthorID,
		PublisherID: input.PublisherID,
	}

	created, err := h.bookStore.CreateBook(r.Context(), book, input.CategoryIDs)
	if err != nil {
		log.Printf("ERROR: CreateBook store operation failed: %v", err)
		switch {
		case errors.Is(err, store.ErrSellerNotFound),
			errors.Is(err, store.ErrAuthorNotFound),
			errors.Is(err, store.ErrPublisherNotFound),
			errors.Is(err, store.ErrCategoryNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to create book")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// parseListBooksParams maps the listing query surface onto store parameters.
// Numeric values that fail to parse are dropped rather than rejected: an
// unusable filter only widens the result set, and the listing endpoint stays
// available. Sort enums fall back to their defaults inside the store.
func parseListBooksParams(q url.Values) (store.ListBooksParams, int, int) {
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

	params := store.ListBooksParams{
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("order"),
	}

	// "categories" may repeat and each value may be comma-separated.
	for _, raw := range q["categories"] {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				params.CategoryNames = append(params.CategoryNames, name)
			}
		}
	}

	if v := q.Get("publisher_name"); v != "" {
		params.PublisherName = &v
	}
	if v := q.Get("author_name"); v != "" {
		params.AuthorName = &v
	}
	if v := q.Get("seller_name"); v != "" {
		params.SellerName = &v
	}
	if v := q.Get("city_name"); v != "" {
		params.CityName = &v
	}
	if v := q.Get("search"); v != "" {
		params.SearchQuery = &v
	}

	if v := q.Get("min_rating"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			params.MinRating = &d
		}
	}
	if v := q.Get("min_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			params.MinPrice = &d
		}
	}
	if v := q.Get("max_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			params.MaxPrice = &d
		}
	}

	return params, page, perPage
}

// bookPage is the listing response envelope.
type bookPage struct {
	Books       []domain.BookSummary `json:"books"`
	Total       int                  `json:"total"`
	Pages       int                  `json:"pages"`
	CurrentPage int                  `json:"current_page"`
	PerPage     int                  `json:"per_page"`
}

func (h *HTTPHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	params, page, perPage := parseListBooksParams(r.URL.Query())

	books, totalCount, err := h.bookStore.ListBooks(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: ListBooks store operation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve books")
		return
	}

	respondWithJSON(w, http.StatusOK, bookPage{
		Books:       books,
		Total:       totalCount,
		Pages:       totalPages(totalCount, perPage),
		CurrentPage: page,
		PerPage:     perPage,
	})
}

func (h *HTTPHandler) ListSellerBooks(w http.ResponseWriter, r *http.Request) {
	sellerID, err := strconv.ParseInt(chi.URLParam(r, "sellerId"), 10, 64)
	if err != nil || sellerID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid seller ID format")
		return
	}

	params, page, perPage := parseListBooksParams(r.URL.Query())
	params.SellerID = &sellerID

	books, totalCount, err := h.bookStore.ListBooks(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: ListSellerBooks store operation for seller %d failed: %v", sellerID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve seller's books")
		return
	}

	respondWithJSON(w, http.StatusOK, bookPage{
		Books:       books,
		Total:       totalCount,
		Pages:       totalPages(totalCount, perPage),
		CurrentPage: page,
		PerPage:     perPage,
	})
}

func (h *HTTPHandler) GetBookByID(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid book ID format")
		return
	}

	book, err := h.bookStore.GetBookByID(r.Context(), bookID)
	if err != nil {
		log.Printf("ERROR: GetBookByID store operation for ID %d failed: %v", bookID, err)
		if errors.Is(err, store.ErrBookNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrBookNotFound.Error())
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to retrieve book")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, book)
}

// BookUpdateInput defines the expected input for updating a book listing.
// CategoryIDs replaces the whole category set when present; omitting the
// field leaves the set untouched.
type BookUpdateInput struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description *string         `json:"description" validate:"omitempty"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	AuthorID    *int64          `json:"author_id" validate:"omitempty,gt=0"`
	PublisherID *int64          `json:"publisher_id" validate:"omitempty,gt=0"`
	CategoryIDs []int64         `json:"category_ids" validate:"omitempty,dive,gt=0"`
}

func (h *HTTPHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid book ID format")
		return
	}

	var input BookUpdateInput
	if err := decodeJSONBody(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	if input.Price.LessThanOrEqual(decimal.Zero) {
		respondWithError(w, http.StatusBadRequest, "price must be greater than zero")
		return
	}

	book := &domain.Book{
		ID:          bookID,
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		AuthorID:    input.AuthorID,
		PublisherID: input.PublisherID,
	}

	updated, err := h.bookStore.UpdateBook(r.Context(), book, input.CategoryIDs)
	if err != nil {
		log.Printf("ERROR: UpdateBook store operation for ID %d failed: %v", bookID, err)
		switch {
		case errors.Is(err, store.ErrBookNotFound),
			errors.Is(err, store.ErrAuthorNotFound),
			errors.Is(err, store.ErrPublisherNotFound),
			errors.Is(err, store.ErrCategoryNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to update book")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(chi.URLParam(r, "bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid book ID format")
		return
	}

	if err := h.bookStore.DeleteBook(r.Context(), bookID); err != nil {
		log.Printf("ERROR: DeleteBook store operation for ID %d failed: %v", bookID, err)
		if errors.Is(err, store.ErrBookNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrBookNotFound.Error())
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to delete book")
		}
		return
	}

	respondWithJSON(w, http.StatusNoContent, nil)
}

func totalPages(totalCount, perPage int) int {
	if totalCount <= 0 {
		return 0
	}
	return (totalCount + perPage - 1) / perPage
}
