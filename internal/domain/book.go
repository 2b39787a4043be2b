package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category represents a catalog category. Books are associated with any number
// of categories through the book_categories join table.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"` // Pointer for nullable fields, omitempty to exclude if nil
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Author is a referenced entity; this service reads it but never mutates it.
type Author struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// Publisher is a referenced entity; this service reads it but never mutates it.
type Publisher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Seller is the owning user of a book listing. CityName is resolved through
// the seller's location when loaded for a detail view.
type Seller struct {
	ID       int64   `json:"id"`
	FullName string  `json:"full_name"`
	CityName *string `json:"city_name,omitempty"`
}

// Book represents a listed item in the marketplace catalog.
//
// Price and AverageRating use decimal.Decimal rather than float64: both map to
// NUMERIC columns and the average is contractually exact to 2 decimal places.
// AverageRating is nil while the book has no ratings; it is never written by
// anything except the rating recompute step.
type Book struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	Description   *string          `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	AverageRating *decimal.Decimal `json:"average_rating"` // null until the first rating lands
	SellerID      int64            `json:"seller_id"`
	AuthorID      *int64           `json:"author_id,omitempty"`
	PublisherID   *int64           `json:"publisher_id,omitempty"`
	Categories    []Category       `json:"categories,omitempty"` // Populated on detail reads only
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// BookSummary is the projection returned by catalog listing queries.
// It carries only what list views render; related names are resolved by the
// listing query itself (single round trip, no per-row loads).
type BookSummary struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	Price         decimal.Decimal  `json:"price"`
	AverageRating *decimal.Decimal `json:"average_rating"`
	AuthorName    *string          `json:"author_name,omitempty"`
	PublisherName *string          `json:"publisher_name,omitempty"`
	SellerID      int64            `json:"seller_id"`
	SellerName    string           `json:"seller_name"`
	CreatedAt     time.Time        `json:"created_at"`
}
