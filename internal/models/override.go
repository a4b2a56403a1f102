package models

import (
	"time"

	"github.com/lib/pq"
)

// OverrideSetType identifies the audience an override targets.
type OverrideSetType string

const (
	OverrideSetSection OverrideSetType = "SECTION"
	OverrideSetAdhoc   OverrideSetType = "ADHOC"
	OverrideSetGroup   OverrideSetType = "GROUP"
)

// AssignmentOverride replaces some or all of an assignment's dates for a
// course section, a group, or an explicit student list. A nil date on an
// override means "no bound", not "inherit from the assignment".
type AssignmentOverride struct {
	ID              string          `db:"id" json:"id"`
	AssignmentID    string          `db:"assignment_id" json:"assignment_id"`
	SetType         OverrideSetType `db:"set_type" json:"set_type"`
	CourseSectionID *string         `db:"course_section_id" json:"course_section_id,omitempty"`
	GroupID         *string         `db:"group_id" json:"group_id,omitempty"`
	StudentIDs      pq.StringArray  `db:"student_ids" json:"student_ids,omitempty"`
	Title           string          `db:"title" json:"title"`
	DueAt           *time.Time      `db:"due_at" json:"due_at,omitempty"`
	UnlockAt        *time.Time      `db:"unlock_at" json:"unlock_at,omitempty"`
	LockAt          *time.Time      `db:"lock_at" json:"lock_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
