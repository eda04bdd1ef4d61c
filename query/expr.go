package query

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/metrico/tablepipe/compare"
	"github.com/metrico/tablepipe/model"
)

const valueFunc = "getValue"

// NumberFunc converts a value to float64, or nil when it is not numeric.
const NumberFunc = "toNumber"

const ctxCheckEvery = 1024

const maxCachedPrograms = 1024

// ExprParserHelper rewrites identifiers naming a column into getValue
// calls and records which columns a clause references. Identifiers holds
// every known column reference, Unknown the getValue calls whose argument
// is not a known column id or not a string literal.
type ExprParserHelper struct {
	Columns     map[string]bool
	Known       map[string]bool
	Identifiers []string
	Unknown     []string
}

func (e *ExprParserHelper) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !e.Columns[n.Value] {
			return
		}
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: valueFunc},
			Arguments: []ast.Node{&ast.StringNode{Value: n.Value}},
		})
		e.Identifiers = append(e.Identifiers, n.Value)
	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok || callee.Value != valueFunc {
			return
		}
		if len(n.Arguments) == 1 {
			if arg, ok := n.Arguments[0].(*ast.StringNode); ok {
				if e.Known[arg.Value] {
					e.Identifiers = append(e.Identifiers, arg.Value)
				} else {
					e.Unknown = append(e.Unknown, arg.Value)
				}
				return
			}
		}
		e.Unknown = append(e.Unknown, "")
	}
}

type compiled struct {
	program *vm.Program
	err     error
	refs    int
	unknown int
	// predicate is set when the clause is statically typed as bool.
	predicate bool
}

// ExprResolver evaluates clauses written in the expr language. Column ids
// are usable as identifiers, getValue("id") reaches any other column.
type ExprResolver struct {
	mtx      sync.Mutex
	programs map[string]*compiled
}

func NewExprResolver() *ExprResolver {
	return &ExprResolver{programs: make(map[string]*compiled)}
}

func compileEnv() map[string]any {
	return map[string]any{
		valueFunc:  func(string) any { return nil },
		NumberFunc: toNumber,
	}
}

func (r *ExprResolver) compile(clause string, columns []*model.ColumnDef) *compiled {
	ids := make([]string, len(columns))
	for i, c := range columns {
		ids[i] = c.ID
	}
	key := clause + "\x00" + strings.Join(ids, "\x00")

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if c, ok := r.programs[key]; ok {
		return c
	}

	helper := &ExprParserHelper{
		Columns: make(map[string]bool, len(ids)),
		Known:   make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		helper.Known[id] = true
		if !reserved[id] {
			helper.Columns[id] = true
		}
	}
	res := &compiled{}
	res.program, res.err = expr.Compile(clause, expr.Env(compileEnv()), expr.Patch(helper), expr.AsBool())
	res.refs = len(helper.Identifiers)
	res.unknown = len(helper.Unknown)
	if res.err == nil {
		t := res.program.Node().Type()
		res.predicate = t != nil && t.Kind() == reflect.Bool
	}
	if len(r.programs) >= maxCachedPrograms {
		clear(r.programs)
	}
	r.programs[key] = res
	return res
}

func (r *ExprResolver) ValidateClause(text string, columns []*model.ColumnDef) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	c := r.compile(text, columns)
	return c.err == nil && c.predicate && c.refs > 0 && c.unknown == 0
}

func (r *ExprResolver) Search(ctx context.Context, clause string, rows []model.Row,
	columns []*model.ColumnDef) ([]model.Row, error) {
	c := r.compile(clause, columns)
	if c.err != nil {
		return nil, c.err
	}

	byID := make(map[string]*model.ColumnDef, len(columns))
	for _, col := range columns {
		byID[col.ID] = col
	}
	var cur model.Row
	env := map[string]any{
		valueFunc: func(id string) any {
			col, ok := byID[id]
			if !ok {
				return nil
			}
			return col.GetSearchValue(cur)
		},
		NumberFunc: toNumber,
	}

	var machine vm.VM
	res := make([]model.Row, 0)
	for i, row := range rows {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cur = row
		out, err := machine.Run(c.program, env)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		match, ok := out.(bool)
		if !ok {
			return nil, fmt.Errorf("clause %q returned %T, expected bool", clause, out)
		}
		if match {
			res = append(res, row)
		}
	}
	return res, nil
}

func toNumber(v any) any {
	f, ok := compare.ToFloat(v)
	if !ok {
		return nil
	}
	return f
}
