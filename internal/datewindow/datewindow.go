// Package datewindow validates assignment date windows against course
// policy: due/unlock/lock ordering, institutional date ranges, grading
// periods and SIS due-date requirements. The package is pure; it performs no
// I/O and never reads the clock.
package datewindow

import "time"

// Field identifies a date field on the edited assignment card.
type Field string

const (
	FieldDueAt    Field = "due_at"
	FieldUnlockAt Field = "unlock_at"
	FieldLockAt   Field = "lock_at"
)

// SetType describes the audience grouping a card edits. It is carried
// through untouched; rules do not depend on it.
type SetType string

const (
	SetTypeSection SetType = "SECTION"
	SetTypeAdhoc   SetType = "ADHOC"
	SetTypeGroup   SetType = "GROUP"
)

// Layout is the accepted wire format for date fields.
const Layout = time.RFC3339

// Input carries one card's candidate dates. Date fields hold the raw text
// the client sent: nil or blank means absent, unparseable text is reported
// as a format violation. The remaining fields are opaque identifiers.
type Input struct {
	DueAt           *string
	UnlockAt        *string
	LockAt          *string
	SetType         SetType
	CourseSectionID *string
	StudentIDs      []string
}

// DateRange is the institutional window assignments may fall within. Both
// bounds are inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// GradingPeriod is one window of the term's grading calendar. Closed is
// precomputed by the policy source against its notion of "now" so that
// validation itself stays clock-free.
type GradingPeriod struct {
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	Closed bool
}

// Contains reports whether t falls inside the period. Containment is
// half-open (start, end]: a date exactly on the boundary between two
// adjacent periods belongs to the earlier one.
func (p GradingPeriod) Contains(t time.Time) bool {
	return t.After(p.Start) && !t.After(p.End)
}

// PolicyContext is the fixed policy a validator is constructed with.
// GradingPeriods must be sorted by start and non-overlapping; adjacent
// periods may share a boundary instant.
type PolicyContext struct {
	ValidDateRange    *DateRange
	HasGradingPeriods bool
	GradingPeriods    []GradingPeriod
	UserIsAdmin       bool
	PostToSISRequired bool
}

// ErrorSet maps violated fields to the single message shown for each.
// An absent key means the field is valid.
type ErrorSet map[Field]string

// Valid reports whether the set holds no violations.
func (s ErrorSet) Valid() bool {
	return len(s) == 0
}

// Messages surfaced per rule. Ordering and SIS texts mirror what clients
// already display; range and grading-period texts are this service's.
const (
	MsgDueAfterLock      = "Due date cannot be after the availability end date."
	MsgDueBeforeUnlock   = "Due date cannot be before the availability start date."
	MsgUnlockAfterLock   = "Availability start date cannot be after end date."
	MsgBeforeRangeStart  = "Date cannot be before the course start date."
	MsgAfterRangeEnd     = "Date cannot be after the course end date."
	MsgNoOpenPeriod      = "Due date must fall within an open grading period."
	MsgClosedPeriod      = "Due date cannot fall within a closed grading period."
	MsgDueRequiredForSIS = "Due date is required when this assignment posts grades to the student information system."
	MsgInvalidFormat     = "Invalid date format."
)
