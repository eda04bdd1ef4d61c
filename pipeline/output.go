package pipeline

import (
	"fmt"

	"github.com/metrico/tablepipe/model"
)

// Output renders the current page as cell content, resolving pending cells.
func (s *Snapshot) Output() (*model.OutputJSON, error) {
	res := &model.OutputJSON{
		Meta:       make([]model.Metadata, len(s.Columns)),
		Data:       make([][]any, len(s.ProcessedRows)),
		Rows:       len(s.ProcessedRows),
		PageNum:    s.PageNum,
		TotalPages: s.TotalPages,
		Statistics: model.Statistics{
			IsSorting:   s.IsSorting,
			IsSearching: s.IsSearching,
			TotalRows:   s.TotalRows,
			Matched:     len(s.FacetFilteredRows),
		},
	}
	for i, c := range s.Columns {
		res.Meta[i] = model.Metadata{ID: c.ID, Title: c.HeaderTitle}
	}
	for i, row := range s.ProcessedRows {
		cells := make([]any, len(s.Columns))
		for j, c := range s.Columns {
			v, err := c.Content(row).Resolve()
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.ID, err)
			}
			cells[j] = v
		}
		res.Data[i] = cells
	}
	return res, nil
}

// Facets renders the facet summary.
func (s *Snapshot) Facets() []model.Facet {
	res := make([]model.Facet, len(s.FacetedFields))
	for i, f := range s.FacetedFields {
		res[i] = model.Facet{Column: f.Column.ID, Title: f.Column.HeaderTitle, Facets: f.Facets}
	}
	return res
}
