package store

import (
	"context"

	"github.com/shopspring/decimal"

	"book-marketplace-service/internal/domain"
)

// ListBooksParams holds the sparse filter set for catalog listing queries.
// Every field is optional; absent fields contribute nothing to the composed
// query. Filters are combined with logical AND across dimensions.
type ListBooksParams struct {
	Limit  int
	Offset int

	// CategoryNames uses ALL-of semantics: a book matches only when every
	// name in the slice is among its associated categories.
	CategoryNames []string

	// Case-insensitive substring matches.
	PublisherName *string
	AuthorName    *string
	SellerName    *string
	CityName      *string // Matched against the seller's city (seller -> location -> city)
	SearchQuery   *string // Title or description

	MinRating *decimal.Decimal // average_rating >= MinRating (unrated books never match)
	MinPrice  *decimal.Decimal // Inclusive
	MaxPrice  *decimal.Decimal // Inclusive

	SellerID *int64 // Restrict to one seller's listings

	SortBy    string // "price", "title", "rating", "created_at"; invalid values fall back to created_at
	SortOrder string // "asc" or "desc"; invalid values fall back to desc
}

// BookStorer defines the database operations for book listings.
type BookStorer interface {
	// CreateBook inserts the book and its category associations in one
	// transaction. Every id in categoryIDs must exist.
	CreateBook(ctx context.Context, book *domain.Book, categoryIDs []int64) (*domain.Book, error)
	// GetBookByID returns the full book including its categories.
	GetBookByID(ctx context.Context, id int64) (*domain.Book, error)
	// ListBooks returns one page of summaries plus the total count of the
	// filtered set (not the unfiltered catalog).
	ListBooks(ctx context.Context, params ListBooksParams) ([]domain.BookSummary, int, error)
	// UpdateBook rewrites the mutable columns. A nil categoryIDs leaves the
	// category set untouched; an empty non-nil slice clears it.
	UpdateBook(ctx context.Context, book *domain.Book, categoryIDs []int64) (*domain.Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// ListRatingsParams holds pagination and sorting for per-book rating listings.
type ListRatingsParams struct {
	Limit     int
	Offset    int
	SortBy    string // "score" or "created_at" (default)
	SortOrder string // "asc" or "desc" (default)
}

// RatingStorer defines the database operations for ratings.
//
// Every mutation runs in a single transaction that also recomputes the owning
// book's average rating; a reader can never observe a committed rating change
// without the matching aggregate, or vice versa.
type RatingStorer interface {
	CreateRating(ctx context.Context, rating *domain.Rating) (*domain.Rating, error)
	GetRatingByID(ctx context.Context, id int64) (*domain.Rating, error)
	ListRatingsForBook(ctx context.Context, bookID int64, params ListRatingsParams) ([]domain.Rating, int, error)
	UpdateRating(ctx context.Context, id int64, score int, text *string) (*domain.Rating, error)
	DeleteRating(ctx context.Context, id int64) error
	// RecomputeBookRating re-derives average_rating from the current rating
	// set in its own transaction. Mutations do this implicitly; this entry
	// point exists for resynchronization and is idempotent.
	RecomputeBookRating(ctx context.Context, bookID int64) error
}

// ListCategoriesParams holds parameters for listing categories.
type ListCategoriesParams struct {
	Limit  int
	Offset int
}

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error)
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	// DeleteCategory refuses with ErrCategoryInUse while any book still
	// references the category.
	DeleteCategory(ctx context.Context, id int64) error
}
