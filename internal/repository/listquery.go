package repository

import (
	"fmt"
	"strings"
)

// listQuery accumulates WHERE conditions with positional placeholders and
// renders the paged SELECT plus its COUNT companion.
type listQuery struct {
	table      string
	conditions []string
	args       []interface{}
}

func newListQuery(table string) *listQuery {
	return &listQuery{table: table}
}

// where appends one condition and binds value to it. Every ? in cond is
// replaced with the positional placeholder for value.
func (q *listQuery) where(cond string, value interface{}) {
	q.args = append(q.args, value)
	placeholder := fmt.Sprintf("$%d", len(q.args))
	q.conditions = append(q.conditions, strings.ReplaceAll(cond, "?", placeholder))
}

func (q *listQuery) clause() string {
	base := "FROM " + q.table + " WHERE 1=1"
	if len(q.conditions) > 0 {
		base += " AND " + strings.Join(q.conditions, " AND ")
	}
	return base
}

func (q *listQuery) selectSQL(columns, orderBy string, limit, offset int) string {
	return fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", columns, q.clause(), orderBy, limit, offset)
}

func (q *listQuery) countSQL() string {
	return "SELECT COUNT(*) " + q.clause()
}

// orderBy keeps the sort column on the allowlist and normalizes the
// direction. Anything unrecognized degrades to the fallback column ascending.
func orderBy(column, direction, fallback string, allowed map[string]bool) string {
	if !allowed[column] {
		column = fallback
	}
	direction = strings.ToUpper(direction)
	if direction != "ASC" && direction != "DESC" {
		direction = "ASC"
	}
	return column + " " + direction
}

// pageWindow clamps pagination to sane bounds and returns the SQL window.
func pageWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}
