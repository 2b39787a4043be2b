package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"book-marketplace-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrBookNotFound       = errors.New("store: book not found")
	ErrSellerNotFound     = errors.New("store: seller not found")
	ErrAuthorNotFound     = errors.New("store: author not found")
	ErrPublisherNotFound  = errors.New("store: publisher not found")
	ErrCategoryNotFound   = errors.New("store: category not found")
	ErrCategoryNameExists = errors.New("store: category name already exists")
	ErrCategoryInUse      = errors.New("store: category is still referenced by books")
	ErrRatingNotFound     = errors.New("store: rating not found")
	ErrDuplicateRating    = errors.New("store: user has already rated this book")
)

// PostgresStore implements the BookStorer, RatingStorer and CategoryStorer
// interfaces using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// queryer is the subset of *sql.DB / *sql.Tx the shared helpers need, so they
// can run either inside or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// isPqErrCode reports whether err is a pq error with the given SQLSTATE code.
func isPqErrCode(err error, code pq.ErrorCode) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == code {
		return pqErr, true
	}
	return nil, false
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// --- BookStorer Implementation ---

const bookColumns = `id, title, description, price, average_rating, seller_id, author_id, publisher_id, created_at, updated_at`

func scanBook(row *sql.Row) (*domain.Book, error) {
	var b domain.Book
	var avg decimal.NullDecimal
	err := row.Scan(
		&b.ID, &b.Title, &b.Description, &b.Price, &avg,
		&b.SellerID, &b.AuthorID, &b.PublisherID,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.AverageRating = nullDecimalPtr(avg)
	return &b, nil
}

func (s *PostgresStore) CreateBook(ctx context.Context, book *domain.Book, categoryIDs []int64) (*domain.Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: CreateBook failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO books (title, description, price, seller_id, author_id, publisher_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + bookColumns + `;`

	created, err := scanBook(tx.QueryRowContext(ctx, query,
		book.Title, book.Description, book.Price, book.SellerID, book.AuthorID, book.PublisherID,
	))
	if err != nil {
		if pqErr, ok := isPqErrCode(err, "23503"); ok { // Foreign key violation
			switch {
			case strings.Contains(pqErr.Constraint, "seller"):
				return nil, ErrSellerNotFound
			case strings.Contains(pqErr.Constraint, "author"):
				return nil, ErrAuthorNotFound
			case strings.Contains(pqErr.Constraint, "publisher"):
				return nil, ErrPublisherNotFound
			}
		}
		return nil, fmt.Errorf("store: CreateBook failed to scan row: %w", err)
	}

	if err := replaceBookCategories(ctx, tx, created.ID, categoryIDs); err != nil {
		return nil, err
	}
	if created.Categories, err = loadBookCategories(ctx, tx, created.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: CreateBook failed to commit: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetBookByID(ctx context.Context, id int64) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1;`

	book, err := scanBook(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("store: GetBookByID failed to scan row: %w", err)
	}

	if book.Categories, err = loadBookCategories(ctx, s.db, id); err != nil {
		return nil, err
	}
	return book, nil
}

// ListBooks composes the catalog listing query from the sparse parameter set.
// Each present filter contributes exactly one predicate; the count query and
// the page query share the same FROM/WHERE text so the returned total always
// describes the filtered set.
func (s *PostgresStore) ListBooks(ctx context.Context, params ListBooksParams) ([]domain.BookSummary, int, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && *params.SearchQuery != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(b.title ILIKE $%d OR b.description ILIKE $%d)", argID, argID+1))
		term := "%" + *params.SearchQuery + "%"
		queryArgs = append(queryArgs, term, term)
		argID += 2
	}
	// Contains-all category semantics: one independent existence sub-check per
	// name, ANDed. A single IN over the join table would match any-of.
	for _, name := range params.CategoryNames {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM book_categories bc JOIN categories c ON c.id = bc.category_id WHERE bc.book_id = b.id AND LOWER(c.name) = LOWER($%d))", argID))
		queryArgs = append(queryArgs, name)
		argID++
	}
	if params.PublisherName != nil && *params.PublisherName != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("p.name ILIKE $%d", argID))
		queryArgs = append(queryArgs, "%"+*params.PublisherName+"%")
		argID++
	}
	if params.AuthorName != nil && *params.AuthorName != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("a.full_name ILIKE $%d", argID))
		queryArgs = append(queryArgs, "%"+*params.AuthorName+"%")
		argID++
	}
	if params.SellerName != nil && *params.SellerName != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("sl.full_name ILIKE $%d", argID))
		queryArgs = append(queryArgs, "%"+*params.SellerName+"%")
		argID++
	}
	joinCity := params.CityName != nil && *params.CityName != ""
	if joinCity {
		whereClauses = append(whereClauses, fmt.Sprintf("ci.name ILIKE $%d", argID))
		queryArgs = append(queryArgs, "%"+*params.CityName+"%")
		argID++
	}
	if params.MinRating != nil {
		// Unrated books (NULL aggregate) never satisfy a minimum-rating filter.
		whereClauses = append(whereClauses, fmt.Sprintf("(b.average_rating IS NOT NULL AND b.average_rating >= $%d)", argID))
		queryArgs = append(queryArgs, *params.MinRating)
		argID++
	}
	if params.MinPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("b.price >= $%d", argID))
		queryArgs = append(queryArgs, *params.MinPrice)
		argID++
	}
	if params.MaxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("b.price <= $%d", argID))
		queryArgs = append(queryArgs, *params.MaxPrice)
		argID++
	}
	if params.SellerID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("b.seller_id = $%d", argID))
		queryArgs = append(queryArgs, *params.SellerID)
		argID++
	}

	// The seller join is always needed for the summary projection; author and
	// publisher names come along on to-one LEFT JOINs (no row duplication).
	// The location/city chain joins only when the city filter asks for it.
	fromClause := `
		FROM books b
		JOIN sellers sl ON sl.id = b.seller_id
		LEFT JOIN authors a ON a.id = b.author_id
		LEFT JOIN publishers p ON p.id = b.publisher_id`
	if joinCity {
		fromClause += `
		LEFT JOIN locations l ON l.id = sl.location_id
		LEFT JOIN cities ci ON ci.id = l.city_id`
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*)" + fromClause + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListBooks failed to count books: %w", err)
	}

	if totalCount == 0 {
		return []domain.BookSummary{}, 0, nil
	}

	sortColumn := "b.created_at" // Default sort
	allowedSortColumns := map[string]string{
		"price":      "b.price",
		"title":      "b.title",
		"rating":     "b.average_rating",
		"created_at": "b.created_at",
	}
	if col, ok := allowedSortColumns[strings.ToLower(params.SortBy)]; ok {
		sortColumn = col
	}

	sortOrder := "DESC" // Default order
	if strings.ToUpper(params.SortOrder) == "ASC" {
		sortOrder = "ASC"
	}

	dataQueryPreamble := `
		SELECT b.id, b.title, b.price, b.average_rating, a.full_name, p.name, b.seller_id, sl.full_name, b.created_at`
	// b.id as the secondary key keeps ties in the primary sort stable across
	// repeated requests, so pages partition the result set without overlap.
	dataQuery := fmt.Sprintf("%s%s%s ORDER BY %s %s, b.id ASC LIMIT $%d OFFSET $%d",
		dataQueryPreamble, fromClause, whereCondition, sortColumn, sortOrder, argID, argID+1)

	finalQueryArgs := append(queryArgs, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListBooks failed to query books: %w", err)
	}
	defer rows.Close()

	books := make([]domain.BookSummary, 0, params.Limit)
	for rows.Next() {
		var b domain.BookSummary
		var avg decimal.NullDecimal
		var authorName, publisherName sql.NullString
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Price, &avg, &authorName, &publisherName,
			&b.SellerID, &b.SellerName, &b.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("store: ListBooks failed to scan book row: %w", err)
		}
		b.AverageRating = nullDecimalPtr(avg)
		b.AuthorName = nullStringPtr(authorName)
		b.PublisherName = nullStringPtr(publisherName)
		books = append(books, b)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListBooks iteration error: %w", err)
	}

	return books, totalCount, nil
}

func (s *PostgresStore) UpdateBook(ctx context.Context, book *domain.Book, categoryIDs []int64) (*domain.Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: UpdateBook failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// seller_id and average_rating are deliberately not updatable here:
	// ownership never moves, and the aggregate is owned by the rating flow.
	query := `
		UPDATE books
		SET title = $1, description = $2, price = $3, author_id = $4, publisher_id = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
		RETURNING ` + bookColumns + `;`

	updated, err := scanBook(tx.QueryRowContext(ctx, query,
		book.Title, book.Description, book.Price, book.AuthorID, book.PublisherID, book.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		if pqErr, ok := isPqErrCode(err, "23503"); ok {
			switch {
			case strings.Contains(pqErr.Constraint, "author"):
				return nil, ErrAuthorNotFound
			case strings.Contains(pqErr.Constraint, "publisher"):
				return nil, ErrPublisherNotFound
			}
		}
		return nil, fmt.Errorf("store: UpdateBook failed to scan row: %w", err)
	}

	if categoryIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM book_categories WHERE book_id = $1;`, updated.ID); err != nil {
			return nil, fmt.Errorf("store: UpdateBook failed to clear categories: %w", err)
		}
		if err := replaceBookCategories(ctx, tx, updated.ID, categoryIDs); err != nil {
			return nil, err
		}
	}
	if updated.Categories, err = loadBookCategories(ctx, tx, updated.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: UpdateBook failed to commit: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteBook(ctx context.Context, id int64) error {
	// Ratings and book_categories rows go with the book via ON DELETE CASCADE.
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteBook failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteBook failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// replaceBookCategories inserts the association rows for categoryIDs (assumed
// free of duplicates). Unknown ids surface as ErrCategoryNotFound.
func replaceBookCategories(ctx context.Context, q queryer, bookID int64, categoryIDs []int64) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO book_categories (book_id, category_id)
		SELECT $1, c.id FROM categories c WHERE c.id = ANY($2);`,
		bookID, pq.Array(categoryIDs))
	if err != nil {
		return fmt.Errorf("store: failed to attach categories: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to get attached category count: %w", err)
	}
	if rowsAffected != int64(len(categoryIDs)) {
		return ErrCategoryNotFound
	}
	return nil
}

func loadBookCategories(ctx context.Context, q queryer, bookID int64) ([]domain.Category, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, c.updated_at
		FROM categories c
		JOIN book_categories bc ON bc.category_id = c.id
		WHERE bc.book_id = $1
		ORDER BY c.name ASC;`, bookID)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query book categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: failed to scan book category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: book categories iteration error: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		log.Println("INFO: Closing database connection pool...")
		if err := s.db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database connection pool: %v", err)
			return err
		}
		log.Println("INFO: Database connection pool closed successfully.")
	}
	return nil
}
