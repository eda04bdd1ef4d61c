// Package stdin renders one page of a table read from standard input.
package stdin

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/metrico/tablepipe/config"
	"github.com/metrico/tablepipe/loader"
	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/pipeline"
	"github.com/metrico/tablepipe/service"
	"github.com/metrico/tablepipe/utils"
)

// inferSample is the number of rows scanned for column names when no table
// definition is given.
const inferSample = 1000

// Run reads rows from r, applies the view flags and writes the page to w
// in the output format of flags. The first table of tables, when set, supplies the columns.
func Run(ctx context.Context, flags *model.CommandLineFlags, tables *model.Config,
	s service.Settings, r io.Reader, w io.Writer) error {
	t := model.TableConfig{Name: "stdin", Format: str(flags.Format)}
	if tables != nil && len(tables.Tables) > 0 {
		t = tables.Tables[0]
		if f := str(flags.Format); f != "" {
			t.Format = f
		}
	}
	t.Source = "-"
	if t.Format == "" {
		t.Format = "ndjson"
	}
	s.Loader.Stdin = r

	rows, err := loader.Load(ctx, t, s.Loader)
	if err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		t.Columns = inferColumns(rows)
	}
	def, err := config.Definition(t, s.RowCount)
	if err != nil {
		return err
	}
	if err := applyFlags(def, flags); err != nil {
		return err
	}
	opts, err := s.EngineOptions(t.Name)
	if err != nil {
		return err
	}
	e := pipeline.New(def, opts...)
	defer e.Close()
	e.SetRows(rows)
	e.Flush()

	out, err := e.Snapshot().Output()
	if err != nil {
		return err
	}
	res, err := utils.ConversationOfPage(out, str(flags.Output))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, res)
	return err
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func applyFlags(def *model.TableDefinition, flags *model.CommandLineFlags) error {
	if v := str(flags.Search); v != "" {
		def.SearchText = v
	}
	if v := str(flags.Sort); v != "" {
		def.SortColumnID = v
	}
	switch model.SortOrder(str(flags.Order)) {
	case "":
	case model.SortAsc:
		def.SortOrder = model.SortAsc
	case model.SortDesc:
		def.SortOrder = model.SortDesc
	default:
		return fmt.Errorf("order must be asc or desc, got %q", str(flags.Order))
	}
	if flags.Rows != nil && *flags.Rows > 0 {
		def.RowCount = *flags.Rows
	}
	if flags.Page != nil && *flags.Page > 0 {
		def.PageNum = *flags.Page
	}
	return nil
}

// inferColumns returns one column per top level key of the sampled rows,
// in name order.
func inferColumns(rows []model.Row) []model.ColumnConfig {
	keys := make(map[string]bool)
	for _, row := range rows[:min(len(rows), inferSample)] {
		if m, ok := row.(model.MapRow); ok {
			for _, k := range m.Keys() {
				keys[k] = true
			}
		}
	}
	res := make([]model.ColumnConfig, 0, len(keys))
	for _, k := range slices.Sorted(maps.Keys(keys)) {
		res = append(res, model.ColumnConfig{ID: k})
	}
	return res
}
