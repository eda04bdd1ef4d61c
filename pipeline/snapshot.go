package pipeline

import (
	"maps"
	"slices"

	"github.com/metrico/tablepipe/model"
)

// Snapshot is the published state of an engine. It is never modified after
// publication.
type Snapshot struct {
	// Version increases with every publication.
	Version uint64

	IsSorting   bool
	IsSearching bool

	SortedRows        []model.Row
	SearchedRows      []model.Row
	FacetFilteredRows []model.Row
	ProcessedRows     []model.Row
	FacetedFields     []model.FacetEntry
	TotalPages        int
	TotalRows         int

	Columns         []*model.ColumnDef
	SearchText      string
	SortColumnID    string
	SortOrder       model.SortOrder
	FacetConditions map[string]any
	RowCount        int
	PageNum         int

	EnableFaceting     bool
	MinFieldsForFilter int
}

// Paginate returns page pageNum of rows, rowCount rows per page, and the
// number of pages. Pages outside the range are empty. A rowCount below one
// yields no rows and no pages.
func Paginate(rows []model.Row, rowCount, pageNum int) ([]model.Row, int) {
	if rowCount < 1 {
		return []model.Row{}, 0
	}
	total := (len(rows) + rowCount - 1) / rowCount
	start := (pageNum - 1) * rowCount
	if pageNum < 1 || start >= len(rows) {
		return []model.Row{}, total
	}
	end := min(start+rowCount, len(rows))
	return rows[start:end:end], total
}

// commit publishes a snapshot when the turn changed anything.
func (e *Engine) commit() {
	if !e.dirty {
		return
	}
	e.dirty = false
	e.version++
	processed, pages := Paginate(e.filtered, e.def.RowCount, e.def.PageNum)
	e.snap.Store(&Snapshot{
		Version:            e.version,
		IsSorting:          e.sortBusy,
		IsSearching:        e.searchBusy || e.filterBusy,
		SortedRows:         e.sorted,
		SearchedRows:       e.searched,
		FacetFilteredRows:  e.filtered,
		ProcessedRows:      processed,
		FacetedFields:      e.facets,
		TotalPages:         pages,
		TotalRows:          len(e.rows),
		Columns:            slices.Clone(e.def.Columns),
		SearchText:         e.def.SearchText,
		SortColumnID:       e.def.SortColumnID,
		SortOrder:          e.def.SortOrder,
		FacetConditions:    maps.Clone(e.def.FacetConditions),
		RowCount:           e.def.RowCount,
		PageNum:            e.def.PageNum,
		EnableFaceting:     e.def.EnableFaceting,
		MinFieldsForFilter: e.def.MinFieldsForFilter,
	})
}
