package models

import "time"

// Course models a course offering tied to an enrollment term.
//
// When RestrictDatesToCourse is set and the course carries its own dates,
// those dates bound assignment date fields; otherwise the term dates apply.
type Course struct {
	ID                    string     `db:"id" json:"id"`
	TermID                string     `db:"term_id" json:"term_id"`
	Name                  string     `db:"name" json:"name"`
	CourseCode            string     `db:"course_code" json:"course_code"`
	StartAt               *time.Time `db:"start_at" json:"start_at,omitempty"`
	EndAt                 *time.Time `db:"end_at" json:"end_at,omitempty"`
	RestrictDatesToCourse bool       `db:"restrict_dates_to_course" json:"restrict_dates_to_course"`
	PostToSIS             bool       `db:"post_to_sis" json:"post_to_sis"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	TermID    string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
