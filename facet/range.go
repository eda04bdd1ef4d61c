package facet

import (
	"math"
	"strconv"
	"strings"

	"github.com/metrico/tablepipe/compare"
	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/query"
)

type RangeSummary struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// RangeCondition selects rows whose value lies within [Min, Max]. A nil
// bound is open.
type RangeCondition struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Range facets numeric columns by their value range.
type Range struct{}

func (r *Range) FacetRows(column *model.ColumnDef, rows []model.Row) any {
	res := RangeSummary{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, row := range rows {
		f, ok := compare.ToFloat(column.GetSearchValue(row))
		if !ok || math.IsNaN(f) {
			continue
		}
		res.Min = math.Min(res.Min, f)
		res.Max = math.Max(res.Max, f)
		res.Count++
	}
	if res.Count == 0 || res.Min == res.Max {
		return nil
	}
	return res
}

// NormaliseConditions drops bounds that do not narrow the available range.
func (r *Range) NormaliseConditions(raw any, available any) any {
	cond, ok := rangeCondition(raw)
	if !ok {
		return nil
	}
	if summary, ok := available.(RangeSummary); ok {
		if cond.Min != nil && *cond.Min <= summary.Min {
			cond.Min = nil
		}
		if cond.Max != nil && *cond.Max >= summary.Max {
			cond.Max = nil
		}
	}
	if cond.Min == nil && cond.Max == nil {
		return nil
	}
	if cond.Min != nil && cond.Max != nil && *cond.Min > *cond.Max {
		return nil
	}
	return cond
}

func (r *Range) ToClause(column *model.ColumnDef, condition any) string {
	var cond RangeCondition
	switch c := condition.(type) {
	case RangeCondition:
		cond = c
	case *RangeCondition:
		if c == nil {
			return ""
		}
		cond = *c
	default:
		return ""
	}
	if cond.Min == nil && cond.Max == nil {
		return ""
	}
	value := query.NumberFunc + "(" + query.Ident(column.ID) + ")"
	parts := []string{value + " != nil"}
	if cond.Min != nil {
		parts = append(parts, value+" >= "+formatFloat(*cond.Min))
	}
	if cond.Max != nil {
		parts = append(parts, value+" <= "+formatFloat(*cond.Max))
	}
	return strings.Join(parts, " and ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func rangeCondition(raw any) (RangeCondition, bool) {
	switch c := raw.(type) {
	case RangeCondition:
		return c, validBounds(c)
	case *RangeCondition:
		if c == nil {
			return RangeCondition{}, false
		}
		return *c, validBounds(*c)
	case map[string]any:
		res := RangeCondition{Min: bound(c["min"]), Max: bound(c["max"])}
		return res, true
	case []any:
		if len(c) != 2 {
			return RangeCondition{}, false
		}
		return RangeCondition{Min: bound(c[0]), Max: bound(c[1])}, true
	}
	return RangeCondition{}, false
}

func bound(v any) *float64 {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		v = f
	}
	f, ok := compare.ToFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func validBounds(c RangeCondition) bool {
	for _, b := range []*float64{c.Min, c.Max} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return false
		}
	}
	return true
}
