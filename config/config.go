package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/metrico/tablepipe/facet"
	"github.com/metrico/tablepipe/model"
)

var ErrInvalidTable = errors.New("invalid table definition")

// LoadTables reads the table definitions from a YAML file
func LoadTables(filename string) (*model.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseTables(data)
}

func ParseTables(data []byte) (*model.Config, error) {
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(cfg.Tables))
	for _, t := range cfg.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: table without name", ErrInvalidTable)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("%w: duplicate table %q", ErrInvalidTable, t.Name)
		}
		seen[t.Name] = true
	}
	return &cfg, nil
}

// Definition builds the table definition described by t. defaultRows is
// used when t does not set a page size.
func Definition(t model.TableConfig, defaultRows int) (*model.TableDefinition, error) {
	columns := make([]*model.ColumnDef, 0, len(t.Columns))
	ids := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: %s: column without id", ErrInvalidTable, t.Name)
		}
		if ids[c.ID] {
			return nil, fmt.Errorf("%w: %s: duplicate column %q", ErrInvalidTable, t.Name, c.ID)
		}
		ids[c.ID] = true
		col := model.NewColumnDef(c.ID, c.Title, c.ContentPath)
		if col.HeaderTitle == "" {
			col.HeaderTitle = c.ID
		}
		col.ObservePath = c.ObservePath
		if c.EnableSearch != nil {
			col.EnableSearch = *c.EnableSearch
		}
		if c.FacetType != "" {
			ft, err := facet.Get(c.FacetType)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: column %q: %v", ErrInvalidTable, t.Name, c.ID, err)
			}
			col.FacetType = ft
		}
		columns = append(columns, col)
	}

	def := model.NewTableDefinition(columns...)
	def.SearchText = t.Search
	def.SortColumnID = t.SortBy
	switch model.SortOrder(t.SortOrder) {
	case "", model.SortAsc:
	case model.SortDesc:
		def.SortOrder = model.SortDesc
	default:
		return nil, fmt.Errorf("%w: %s: sort order %q", ErrInvalidTable, t.Name, t.SortOrder)
	}
	switch {
	case t.RowCount > 0:
		def.RowCount = t.RowCount
	case defaultRows > 0:
		def.RowCount = defaultRows
	}
	def.EnableFaceting = !t.DisableFaceting
	def.MinFieldsForFilter = t.MinFieldsForFilter
	return def, nil
}
