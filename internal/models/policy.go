package models

import "time"

// CoursePolicy is the caller-independent slice of a course's date policy: the
// permitted date range, the term's grading periods and whether SIS posting
// requires a due date. Role-dependent pieces (admin exemptions) are layered
// on per request and never cached.
type CoursePolicy struct {
	CourseID          string          `json:"course_id"`
	TermID            string          `json:"term_id"`
	RangeStart        *time.Time      `json:"range_start,omitempty"`
	RangeEnd          *time.Time      `json:"range_end,omitempty"`
	HasGradingPeriods bool            `json:"has_grading_periods"`
	GradingPeriods    []GradingPeriod `json:"grading_periods,omitempty"`
	PostToSISRequired bool            `json:"post_to_sis_required"`
	BuiltAt           time.Time       `json:"built_at"`
}
