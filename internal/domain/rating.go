package domain

import "time"

// Rating is one user's score for one book. The store enforces exactly one
// rating per (book_id, user_id) pair; Score is 1..5 inclusive.
type Rating struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"`
	Text      *string   `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
