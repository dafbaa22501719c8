package option

import (
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type sortBy struct {
	column string
	desc   bool
}

// SortSpec is a validated sort column and direction.
type SortSpec struct {
	Column string
	Desc   bool
}

// WithQuerySortBy validates a user supplied sort column against allowed and
// defaults to created_at descending.
func WithQuerySortBy(column, order string, allowed map[string]bool) SortSpec {
	column = strings.ToLower(strings.TrimSpace(column))
	if column == "" || !allowed[column] {
		column = "created_at"
	}
	desc := true
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		desc = false
	}
	return SortSpec{Column: column, Desc: desc}
}

func WithSortBy(spec SortSpec) QueryOption {
	return sortBy{column: spec.Column, desc: spec.Desc}
}

func (s sortBy) Apply(stmt *gorm.DB) *gorm.DB {
	if s.column == "" {
		return stmt
	}
	direction := "asc"
	if s.desc {
		direction = "desc"
	}
	return stmt.Order(s.column + " " + direction).Order("id " + direction)
}

type limit struct {
	n int
}

func WithLimit(n int) QueryOption {
	return limit{n: n}
}

func (l limit) Apply(stmt *gorm.DB) *gorm.DB {
	if l.n <= 0 {
		return stmt
	}
	return stmt.Limit(l.n)
}

// Apply runs every option against stmt in order.
func Apply(stmt *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		stmt = opt.Apply(stmt)
	}
	return stmt
}
