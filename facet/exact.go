package facet

import (
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/btree"

	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/query"
)

// Bucket is one distinct value of a column and the number of rows holding it.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ExactCondition selects rows whose value is one of In.
type ExactCondition struct {
	In []string `json:"in"`
}

// Exact facets categorical columns by their distinct string values.
type Exact struct{}

func (e *Exact) FacetRows(column *model.ColumnDef, rows []model.Row) any {
	var counts btree.Map[string, int]
	for _, row := range rows {
		v, ok := column.GetSearchValue(row).(string)
		if !ok {
			continue
		}
		n, _ := counts.Get(v)
		counts.Set(v, n+1)
	}
	if counts.Len() == 0 {
		return nil
	}
	res := make([]Bucket, 0, counts.Len())
	counts.Scan(func(value string, count int) bool {
		res = append(res, Bucket{Value: value, Count: count})
		return true
	})
	slices.SortStableFunc(res, func(a, b Bucket) int {
		return b.Count - a.Count
	})
	return res
}

func (e *Exact) NormaliseConditions(raw any, available any) any {
	values := exactValues(raw)
	if len(values) == 0 {
		return nil
	}
	var known map[string]bool
	if buckets, ok := available.([]Bucket); ok && len(buckets) > 0 {
		known = make(map[string]bool, len(buckets))
		for _, b := range buckets {
			known[b.Value] = true
		}
	}
	seen := make(map[string]bool, len(values))
	res := ExactCondition{}
	for _, v := range values {
		if seen[v] || (known != nil && !known[v]) {
			continue
		}
		seen[v] = true
		res.In = append(res.In, v)
	}
	if len(res.In) == 0 {
		return nil
	}
	return res
}

func (e *Exact) ToClause(column *model.ColumnDef, condition any) string {
	var values []string
	switch c := condition.(type) {
	case ExactCondition:
		values = c.In
	case *ExactCondition:
		if c != nil {
			values = c.In
		}
	}
	if len(values) == 0 {
		return ""
	}
	ident := query.Ident(column.ID)
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = ident + " == " + strconv.Quote(v)
	}
	return strings.Join(parts, " or ")
}

func exactValues(raw any) []string {
	switch r := raw.(type) {
	case ExactCondition:
		return r.In
	case *ExactCondition:
		if r != nil {
			return r.In
		}
	case string:
		if r != "" {
			return []string{r}
		}
	case []string:
		return r
	case []any:
		res := make([]string, 0, len(r))
		for _, v := range r {
			if s, ok := v.(string); ok {
				res = append(res, s)
			}
		}
		return res
	case map[string]any:
		return exactValues(r["in"])
	}
	return nil
}
