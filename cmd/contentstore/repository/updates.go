package repository

import (
	"fmt"
	"strings"
)

// UpdateBuilder assembles partial UPDATE statements with positional
// parameters. Column names come from code, never from callers, so only
// values are parameterized.
type UpdateBuilder struct {
	table  string
	sets   []string
	wheres []string
	args   []interface{}
}

// NewUpdate starts an UPDATE against the given table
func NewUpdate(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set adds a column assignment
func (b *UpdateBuilder) Set(column string, value interface{}) *UpdateBuilder {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
	return b
}

// Where adds an equality condition; multiple conditions are ANDed
func (b *UpdateBuilder) Where(column string, value interface{}) *UpdateBuilder {
	b.args = append(b.args, value)
	b.wheres = append(b.wheres, fmt.Sprintf("%s = $%d", column, len(b.args)))
	return b
}

// SQL renders the statement and its arguments
func (b *UpdateBuilder) SQL() (string, []interface{}, error) {
	if len(b.sets) == 0 {
		return "", nil, fmt.Errorf("update on %s has no SET clauses", b.table)
	}
	if len(b.wheres) == 0 {
		return "", nil, fmt.Errorf("update on %s has no WHERE clauses", b.table)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.table)
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(b.sets, ", "))
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(b.wheres, " AND "))

	return sb.String(), b.args, nil
}
