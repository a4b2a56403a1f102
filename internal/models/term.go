package models

import "time"

// Term models an enrollment term in the institution calendar. Term dates are
// optional; a missing side leaves assignment dates unbounded on that side
// unless the course restricts dates itself.
type Term struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	SISTermID *string    `db:"sis_term_id" json:"sis_term_id,omitempty"`
	StartAt   *time.Time `db:"start_at" json:"start_at,omitempty"`
	EndAt     *time.Time `db:"end_at" json:"end_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
