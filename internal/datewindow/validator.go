package datewindow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPolicy marks a structurally broken PolicyContext. This is an
// integration bug, not user input; callers must not open an editing session
// over it.
var ErrInvalidPolicy = errors.New("datewindow: invalid policy context")

// Validator applies the date-window rules under one immutable
// PolicyContext. A single instance is safe for concurrent use.
type Validator struct {
	policy PolicyContext
}

// NewValidator checks the policy once and captures it. It fails fast on an
// inverted date range, a grading-period list that contradicts the
// HasGradingPeriods flag, and malformed, unsorted or overlapping periods.
func NewValidator(policy PolicyContext) (*Validator, error) {
	if err := checkPolicy(policy); err != nil {
		return nil, err
	}
	if len(policy.GradingPeriods) > 0 {
		periods := make([]GradingPeriod, len(policy.GradingPeriods))
		copy(periods, policy.GradingPeriods)
		policy.GradingPeriods = periods
	}
	return &Validator{policy: policy}, nil
}

func checkPolicy(p PolicyContext) error {
	if p.ValidDateRange != nil && !p.ValidDateRange.Start.Before(p.ValidDateRange.End) {
		return fmt.Errorf("%w: date range start %s must precede end %s",
			ErrInvalidPolicy, p.ValidDateRange.Start.Format(Layout), p.ValidDateRange.End.Format(Layout))
	}
	if !p.HasGradingPeriods && len(p.GradingPeriods) > 0 {
		return fmt.Errorf("%w: grading periods supplied while the grading-period flag is off", ErrInvalidPolicy)
	}
	if p.HasGradingPeriods && len(p.GradingPeriods) == 0 {
		return fmt.Errorf("%w: grading-period flag set with no periods", ErrInvalidPolicy)
	}
	for i, period := range p.GradingPeriods {
		if !period.Start.Before(period.End) {
			return fmt.Errorf("%w: grading period %q has no usable window", ErrInvalidPolicy, period.ID)
		}
		if i > 0 {
			prev := p.GradingPeriods[i-1]
			if period.Start.Before(prev.End) {
				return fmt.Errorf("%w: grading periods %q and %q overlap or are out of order",
					ErrInvalidPolicy, prev.ID, period.ID)
			}
		}
	}
	return nil
}

// Validate recomputes the full error set for one card. All applicable rules
// run; when several rules would flag the same field, the first by priority
// wins: format, then ordering, then range, then grading period, then the
// SIS requirement.
func (v *Validator) Validate(input Input) ErrorSet {
	out := make(ErrorSet)

	due := parseField(out, FieldDueAt, input.DueAt)
	unlock := parseField(out, FieldUnlockAt, input.UnlockAt)
	lock := parseField(out, FieldLockAt, input.LockAt)

	if due != nil && lock != nil && due.After(*lock) {
		setIfAbsent(out, FieldDueAt, MsgDueAfterLock)
	}
	if due != nil && unlock != nil && due.Before(*unlock) {
		setIfAbsent(out, FieldDueAt, MsgDueBeforeUnlock)
	}
	if unlock != nil && lock != nil && unlock.After(*lock) {
		setIfAbsent(out, FieldUnlockAt, MsgUnlockAfterLock)
	}

	if v.policy.ValidDateRange != nil && !v.policy.UserIsAdmin {
		v.checkRange(out, FieldDueAt, due)
		v.checkRange(out, FieldUnlockAt, unlock)
		v.checkRange(out, FieldLockAt, lock)
	}

	if v.policy.HasGradingPeriods && !v.policy.UserIsAdmin && due != nil {
		switch period := v.containingPeriod(*due); {
		case period == nil:
			setIfAbsent(out, FieldDueAt, MsgNoOpenPeriod)
		case period.Closed:
			setIfAbsent(out, FieldDueAt, MsgClosedPeriod)
		}
	}

	if v.policy.PostToSISRequired && isAbsent(input.DueAt) {
		setIfAbsent(out, FieldDueAt, MsgDueRequiredForSIS)
	}

	return out
}

// Policy returns a copy of the captured policy context.
func (v *Validator) Policy() PolicyContext {
	policy := v.policy
	if len(policy.GradingPeriods) > 0 {
		periods := make([]GradingPeriod, len(policy.GradingPeriods))
		copy(periods, policy.GradingPeriods)
		policy.GradingPeriods = periods
	}
	return policy
}

func (v *Validator) checkRange(out ErrorSet, field Field, t *time.Time) {
	if t == nil {
		return
	}
	r := v.policy.ValidDateRange
	if t.Before(r.Start) {
		setIfAbsent(out, field, MsgBeforeRangeStart)
	} else if t.After(r.End) {
		setIfAbsent(out, field, MsgAfterRangeEnd)
	}
}

func (v *Validator) containingPeriod(t time.Time) *GradingPeriod {
	for i := range v.policy.GradingPeriods {
		if v.policy.GradingPeriods[i].Contains(t) {
			return &v.policy.GradingPeriods[i]
		}
	}
	return nil
}

// parseField resolves a raw date value. Absent values stay nil; unparseable
// text records a format violation and is treated as absent by every other
// rule.
func parseField(out ErrorSet, field Field, raw *string) *time.Time {
	if isAbsent(raw) {
		return nil
	}
	t, err := time.Parse(Layout, strings.TrimSpace(*raw))
	if err != nil {
		out[field] = MsgInvalidFormat
		return nil
	}
	return &t
}

func isAbsent(raw *string) bool {
	return raw == nil || strings.TrimSpace(*raw) == ""
}

func setIfAbsent(out ErrorSet, field Field, message string) {
	if _, ok := out[field]; !ok {
		out[field] = message
	}
}
