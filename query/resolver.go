// Package query resolves structured search clauses against rows.
package query

import (
	"context"
	"regexp"
	"strconv"

	"github.com/metrico/tablepipe/model"
)

// Resolver validates and evaluates clauses of a structured query language.
type Resolver interface {
	// ValidateClause reports whether text is a well formed clause that only
	// references the given columns.
	ValidateClause(text string, columns []*model.ColumnDef) bool
	// Search returns the rows matching clause in their original order.
	Search(ctx context.Context, clause string, rows []model.Row, columns []*model.ColumnDef) ([]model.Row, error)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident renders a reference to the column with the given id.
func Ident(id string) string {
	if identRe.MatchString(id) && !reserved[id] {
		return id
	}
	return valueFunc + "(" + strconv.Quote(id) + ")"
}

var reserved = map[string]bool{
	"true": true, "false": true, "nil": true, "in": true, "not": true,
	"and": true, "or": true, "matches": true, "contains": true,
	"startsWith": true, "endsWith": true, "let": true, "if": true, "else": true,
	valueFunc: true, NumberFunc: true,
}
