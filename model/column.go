package model

import (
	"strconv"

	"github.com/metrico/tablepipe/utils/promise"
)

// ColumnDef describes one column of a table. It is treated as immutable
// once handed to a TableDefinition.
type ColumnDef struct {
	ID          string
	HeaderTitle string
	ContentPath string
	// ObservePath asks display layers to watch ContentPath for changes.
	ObservePath  bool
	EnableSearch bool
	FacetType    FacetType

	// Optional behaviour overrides. Search and sort values default to the
	// cell content, cell content defaults to row.Get(ContentPath).
	SortValue    func(row Row) any
	SearchValue  func(row Row) any
	CellContent  func(row Row) any
	AsyncContent func(row Row) promise.Promise[any]
}

func NewColumnDef(id, title, contentPath string) *ColumnDef {
	if contentPath == "" {
		contentPath = id
	}
	return &ColumnDef{
		ID:           id,
		HeaderTitle:  title,
		ContentPath:  contentPath,
		EnableSearch: true,
	}
}

func (c *ColumnDef) GetCellContent(row Row) any {
	if c.CellContent != nil {
		return c.CellContent(row)
	}
	return row.Get(c.ContentPath)
}

func (c *ColumnDef) GetSearchValue(row Row) any {
	if c.SearchValue != nil {
		return c.SearchValue(row)
	}
	return c.GetCellContent(row)
}

func (c *ColumnDef) GetSortValue(row Row) any {
	if c.SortValue != nil {
		return c.SortValue(row)
	}
	return c.GetCellContent(row)
}

// Content returns the cell content of row as a tagged value: pending when
// the column computes it asynchronously, immediate otherwise.
func (c *ColumnDef) Content(row Row) Content {
	if c.AsyncContent != nil {
		return Content{pending: c.AsyncContent(row)}
	}
	return Content{value: c.GetCellContent(row)}
}

// Content is either an immediate value or a pending one.
type Content struct {
	value   any
	pending promise.Promise[any]
}

func Immediate(v any) Content {
	return Content{value: v}
}

func Pending(p promise.Promise[any]) Content {
	return Content{pending: p}
}

func (c Content) IsPending() bool {
	return c.pending != nil
}

// Resolve waits for pending content and returns the display form of the
// value. Numbers are rendered as text.
func (c Content) Resolve() (any, error) {
	v := c.value
	if c.pending != nil {
		var err error
		v, err = c.pending.Get()
		if err != nil {
			return nil, err
		}
	}
	return displayText(v), nil
}

func displayText(v any) any {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return v
}
