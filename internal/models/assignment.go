package models

import "time"

// Assignment models a graded activity with its base ("everyone") date window.
// All three dates are optional; overrides may replace any of them for a
// section or an ad-hoc student list.
type Assignment struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Title     string     `db:"title" json:"title"`
	DueAt     *time.Time `db:"due_at" json:"due_at,omitempty"`
	UnlockAt  *time.Time `db:"unlock_at" json:"unlock_at,omitempty"`
	LockAt    *time.Time `db:"lock_at" json:"lock_at,omitempty"`
	Published bool       `db:"published" json:"published"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// AssignmentWithOverrideCount decorates an assignment with the number of
// overrides attached to it, used by course-level listings.
type AssignmentWithOverrideCount struct {
	Assignment
	OverrideCount int `db:"override_count" json:"override_count"`
}

// AssignmentFilter captures filtering criteria for listing assignments.
type AssignmentFilter struct {
	CourseID  string
	Search    string
	Published *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EffectiveDates is the resolved date window that applies to one audience
// after overrides are taken into account.
type EffectiveDates struct {
	AssignmentID string     `json:"assignment_id"`
	OverrideID   *string    `json:"override_id,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	UnlockAt     *time.Time `json:"unlock_at,omitempty"`
	LockAt       *time.Time `json:"lock_at,omitempty"`
	Base         bool       `json:"base"`
}
