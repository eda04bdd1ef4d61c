package model

import (
	"maps"
	"reflect"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const DefaultRowCount = 10

// FacetType governs how one column's values are summarised and filtered.
// Conditions and summaries are opaque to everything but the facet type.
type FacetType interface {
	// NormaliseConditions turns raw user input into a canonical condition,
	// or nil when the input describes no filter.
	NormaliseConditions(raw any, available any) any
	// FacetRows summarises the column over rows, or returns nil when
	// faceting is not meaningful.
	FacetRows(column *ColumnDef, rows []Row) any
	// ToClause compiles a condition into a query clause fragment, or ""
	// when the condition filters nothing.
	ToClause(column *ColumnDef, condition any) string
}

// FacetEntry is one column of the facet summary.
type FacetEntry struct {
	Column *ColumnDef
	Facets any
}

// TableDefinition holds the mutable inputs a pipeline reads.
type TableDefinition struct {
	SearchText      string
	SortColumnID    string
	SortOrder       SortOrder
	FacetConditions map[string]any
	RowCount        int
	PageNum         int
	Columns         []*ColumnDef

	EnableFaceting     bool
	MinFieldsForFilter int
}

func NewTableDefinition(columns ...*ColumnDef) *TableDefinition {
	return &TableDefinition{
		SortOrder:       SortAsc,
		FacetConditions: make(map[string]any),
		RowCount:        DefaultRowCount,
		PageNum:         1,
		Columns:         columns,
		EnableFaceting:  true,
	}
}

// Column returns the column with the given id or nil.
func (t *TableDefinition) Column(id string) *ColumnDef {
	if id == "" {
		return nil
	}
	for _, c := range t.Columns {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Field identifies one input of a TableDefinition or the row collection.
type Field uint16

const (
	FieldRows Field = 1 << iota
	FieldSearchText
	FieldSortColumn
	FieldSortOrder
	FieldFacetConditions
	FieldRowCount
	FieldPageNum
	FieldColumns
)

func (f Field) Has(o Field) bool {
	return f&o != 0
}

// DefinitionState is a comparable copy of a TableDefinition's inputs.
type DefinitionState struct {
	searchText      string
	sortColumnID    string
	sortOrder       SortOrder
	facetConditions map[string]any
	rowCount        int
	pageNum         int
	columns         []*ColumnDef
}

func (t *TableDefinition) State() DefinitionState {
	return DefinitionState{
		searchText:      t.SearchText,
		sortColumnID:    t.SortColumnID,
		sortOrder:       t.SortOrder,
		facetConditions: maps.Clone(t.FacetConditions),
		rowCount:        t.RowCount,
		pageNum:         t.PageNum,
		columns:         append([]*ColumnDef(nil), t.Columns...),
	}
}

// Diff reports which fields differ between two states.
func (s DefinitionState) Diff(o DefinitionState) Field {
	var res Field
	if s.searchText != o.searchText {
		res |= FieldSearchText
	}
	if s.sortColumnID != o.sortColumnID {
		res |= FieldSortColumn
	}
	if s.sortOrder != o.sortOrder {
		res |= FieldSortOrder
	}
	if !reflect.DeepEqual(normConditions(s.facetConditions), normConditions(o.facetConditions)) {
		res |= FieldFacetConditions
	}
	if s.rowCount != o.rowCount {
		res |= FieldRowCount
	}
	if s.pageNum != o.pageNum {
		res |= FieldPageNum
	}
	if len(s.columns) != len(o.columns) {
		res |= FieldColumns
	} else {
		for i := range s.columns {
			if s.columns[i] != o.columns[i] {
				res |= FieldColumns
				break
			}
		}
	}
	return res
}

func normConditions(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
