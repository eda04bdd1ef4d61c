package pipeline

import (
	"fmt"

	"github.com/metrico/tablepipe/model"
)

// ApplyFilters normalises the pending condition of every column in the
// current facet summary and makes the result the active facet conditions.
// Columns whose condition normalises to nil are left unfiltered.
func (e *Engine) ApplyFilters(pending map[string]any) {
	e.Update(func(def *model.TableDefinition) {
		conditions := make(map[string]any)
		for _, entry := range e.facets {
			raw, ok := pending[entry.Column.ID]
			if !ok || raw == nil {
				continue
			}
			cond, err := normalise(entry, raw)
			if err != nil {
				e.log.Warn("facet condition rejected", "column", entry.Column.ID, "error", err)
				continue
			}
			if cond != nil {
				conditions[entry.Column.ID] = cond
			}
		}
		def.FacetConditions = conditions
	})
}

// ClearFilters drops every active facet condition.
func (e *Engine) ClearFilters() {
	e.Update(func(def *model.TableDefinition) {
		def.FacetConditions = make(map[string]any)
	})
}

func normalise(entry model.FacetEntry, raw any) (cond any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cond, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return entry.Column.FacetType.NormaliseConditions(raw, entry.Facets), nil
}
