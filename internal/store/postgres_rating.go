package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"book-marketplace-service/internal/domain"
)

const ratingColumns = `id, book_id, user_id, score, text, created_at, updated_at`

func scanRating(row *sql.Row) (*domain.Rating, error) {
	var rt domain.Rating
	err := row.Scan(&rt.ID, &rt.BookID, &rt.UserID, &rt.Score, &rt.Text, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// lockBookRow takes the book's row lock inside tx and doubles as the
// existence guard. Taking it before the rating row mutation serializes
// concurrent rating writes per book, so the later recompute always sees a
// snapshot that includes its own trigger and loses no concurrent update.
func lockBookRow(ctx context.Context, tx *sql.Tx, bookID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM books WHERE id = $1 FOR UPDATE;`, bookID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookNotFound
		}
		return fmt.Errorf("store: failed to lock book row: %w", err)
	}
	return nil
}

// recomputeAverageRating re-derives books.average_rating from the current
// rating set, inside the caller's transaction. The stored value is always the
// full mean rounded half-up to 2 decimal places, or NULL when no ratings
// remain; it is never patched incrementally.
func (s *PostgresStore) recomputeAverageRating(ctx context.Context, tx *sql.Tx, bookID int64) error {
	var count, sum int64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(score), 0) FROM ratings WHERE book_id = $1;`, bookID,
	).Scan(&count, &sum)
	if err != nil {
		return fmt.Errorf("store: failed to aggregate rating scores: %w", err)
	}

	var avg decimal.NullDecimal
	if count > 0 {
		// DivRound rounds half away from zero; scores are positive, so this
		// is round-half-up to 2 fractional digits.
		avg = decimal.NullDecimal{
			Decimal: decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(count), 2),
			Valid:   true,
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE books SET average_rating = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2;`, avg, bookID)
	if err != nil {
		return fmt.Errorf("store: failed to write average rating: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to get average rating rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// --- RatingStorer Implementation ---

// CreateRating inserts the rating and refreshes the book's aggregate in one
// transaction. A failure at either step rolls the whole mutation back.
func (s *PostgresStore) CreateRating(ctx context.Context, rating *domain.Rating) (*domain.Rating, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: CreateRating failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := lockBookRow(ctx, tx, rating.BookID); err != nil {
		return nil, err
	}

	created, err := scanRating(tx.QueryRowContext(ctx, `
		INSERT INTO ratings (book_id, user_id, score, text)
		VALUES ($1, $2, $3, $4)
		RETURNING `+ratingColumns+`;`,
		rating.BookID, rating.UserID, rating.Score, rating.Text,
	))
	if err != nil {
		if _, ok := isPqErrCode(err, "23505"); ok { // Unique violation on (book_id, user_id)
			return nil, ErrDuplicateRating
		}
		return nil, fmt.Errorf("store: CreateRating failed to scan row: %w", err)
	}

	if err := s.recomputeAverageRating(ctx, tx, rating.BookID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: CreateRating failed to commit: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetRatingByID(ctx context.Context, id int64) (*domain.Rating, error) {
	rating, err := scanRating(s.db.QueryRowContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("store: GetRatingByID failed to scan row: %w", err)
	}
	return rating, nil
}

func (s *PostgresStore) ListRatingsForBook(ctx context.Context, bookID int64, params ListRatingsParams) ([]domain.Rating, int, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM books WHERE id = $1);`, bookID).Scan(&exists); err != nil {
		return nil, 0, fmt.Errorf("store: ListRatingsForBook failed to check book: %w", err)
	}
	if !exists {
		return nil, 0, ErrBookNotFound
	}

	var totalCount int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ratings WHERE book_id = $1;`, bookID).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListRatingsForBook failed to count ratings: %w", err)
	}
	if totalCount == 0 {
		return []domain.Rating{}, 0, nil
	}

	sortColumn := "created_at"
	if strings.ToLower(params.SortBy) == "score" {
		sortColumn = "score"
	}
	sortOrder := "DESC"
	if strings.ToUpper(params.SortOrder) == "ASC" {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT `+ratingColumns+`
		FROM ratings
		WHERE book_id = $1
		ORDER BY %s %s, id ASC
		LIMIT $2 OFFSET $3;`, sortColumn, sortOrder)

	rows, err := s.db.QueryContext(ctx, query, bookID, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListRatingsForBook failed to query ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0, params.Limit)
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.ID, &rt.BookID, &rt.UserID, &rt.Score, &rt.Text, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("store: ListRatingsForBook failed to scan rating row: %w", err)
		}
		ratings = append(ratings, rt)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListRatingsForBook iteration error: %w", err)
	}

	return ratings, totalCount, nil
}

// UpdateRating rewrites score/text and refreshes the aggregate atomically.
func (s *PostgresStore) UpdateRating(ctx context.Context, id int64, score int, text *string) (*domain.Rating, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: UpdateRating failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var bookID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT book_id FROM ratings WHERE id = $1;`, id).Scan(&bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("store: UpdateRating failed to resolve book: %w", err)
	}
	if err := lockBookRow(ctx, tx, bookID); err != nil {
		return nil, err
	}

	updated, err := scanRating(tx.QueryRowContext(ctx, `
		UPDATE ratings
		SET score = $1, text = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING `+ratingColumns+`;`,
		score, text, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("store: UpdateRating failed to scan row: %w", err)
	}

	if err := s.recomputeAverageRating(ctx, tx, bookID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: UpdateRating failed to commit: %w", err)
	}
	return updated, nil
}

// DeleteRating removes the rating and refreshes the aggregate atomically.
// Deleting the last rating of a book resets average_rating to NULL.
func (s *PostgresStore) DeleteRating(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: DeleteRating failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var bookID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT book_id FROM ratings WHERE id = $1;`, id).Scan(&bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRatingNotFound
		}
		return fmt.Errorf("store: DeleteRating failed to resolve book: %w", err)
	}
	if err := lockBookRow(ctx, tx, bookID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteRating failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteRating failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRatingNotFound
	}

	if err := s.recomputeAverageRating(ctx, tx, bookID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: DeleteRating failed to commit: %w", err)
	}
	return nil
}

// RecomputeBookRating re-derives the aggregate outside any rating mutation.
// Calling it with no intervening rating change is a no-op in effect: the
// stored value comes out identical.
func (s *PostgresStore) RecomputeBookRating(ctx context.Context, bookID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: RecomputeBookRating failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockBookRow(ctx, tx, bookID); err != nil {
		return err
	}
	if err := s.recomputeAverageRating(ctx, tx, bookID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: RecomputeBookRating failed to commit: %w", err)
	}
	return nil
}
