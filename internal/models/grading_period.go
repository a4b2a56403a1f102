package models

import "time"

// GradingPeriod models one period of a term's grading calendar. A due date
// belongs to the period whose (start, end] window contains it. Once CloseAt
// has passed the period no longer accepts new due dates.
type GradingPeriod struct {
	ID        string    `db:"id" json:"id"`
	TermID    string    `db:"term_id" json:"term_id"`
	Title     string    `db:"title" json:"title"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	CloseAt   time.Time `db:"close_at" json:"close_at"`
	Weight    *float64  `db:"weight" json:"weight,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClosedAt reports whether the period is closed relative to the given time.
func (p GradingPeriod) ClosedAt(now time.Time) bool {
	return !now.Before(p.CloseAt)
}
