package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metrico/tablepipe/compare"
	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/query"
)

func (e *Engine) runSort() {
	e.sortGen++
	gen := e.sortGen
	rows := e.rows
	col := e.def.Column(e.def.SortColumnID)
	if len(rows) == 0 || col == nil {
		e.sortBusy = false
		e.setSorted(rows)
		return
	}
	order := e.def.SortOrder
	e.sortBusy = true
	e.dirty = true
	e.exec.Submit(func() func() {
		start := time.Now()
		sorted, err := sortRows(rows, col, order)
		observe(stageSort, start)
		if err != nil {
			e.log.Warn("sort pass failed, rows left unsorted", "column", col.ID, "error", err)
		}
		return func() {
			if gen != e.sortGen {
				e.stale(stageSort, gen)
				return
			}
			e.sortBusy = false
			e.setSorted(sorted)
		}
	})
}

type sortItem struct {
	key any
	row model.Row
}

// sortRows stable sorts rows by the column's sort value, extracted once per
// row. A panicking accessor leaves the order unchanged.
func sortRows(rows []model.Row, col *model.ColumnDef, order model.SortOrder) (res []model.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = rows
			err = fmt.Errorf("sort value of column %q: %v", col.ID, r)
		}
	}()
	items := make([]sortItem, len(rows))
	for i, row := range rows {
		items[i] = sortItem{key: col.GetSortValue(row), row: row}
	}
	desc := order == model.SortDesc
	slices.SortStableFunc(items, func(a, b sortItem) int {
		c := compare.Compare(a.key, b.key)
		if desc {
			return -c
		}
		return c
	})
	res = make([]model.Row, len(items))
	for i, it := range items {
		res[i] = it.row
	}
	return res, nil
}

func (e *Engine) runSearch() {
	e.searchGen++
	gen := e.searchGen
	rows := e.sorted
	text := e.def.SearchText
	if text == "" {
		e.searchBusy = false
		e.setSearched(rows)
		return
	}
	columns := slices.Clone(e.def.Columns)
	resolver := e.resolver
	ctx := e.ctx
	e.searchBusy = true
	e.dirty = true
	e.exec.Submit(func() func() {
		start := time.Now()
		res := e.search(ctx, resolver, text, rows, columns)
		observe(stageSearch, start)
		return func() {
			if gen != e.searchGen {
				e.stale(stageSearch, gen)
				return
			}
			e.searchBusy = false
			e.setSearched(res)
		}
	})
}

// search resolves text as a structured clause when the resolver accepts
// it and falls back to a case insensitive match otherwise.
func (e *Engine) search(ctx context.Context, resolver query.Resolver, text string,
	rows []model.Row, columns []*model.ColumnDef) []model.Row {
	if resolver != nil && validate(resolver, text, columns) {
		res, err := resolve(ctx, resolver, text, rows, columns)
		if err != nil {
			resolverErrors.WithLabelValues(stageSearch).Inc()
			e.log.Warn("search clause failed", "clause", text, "error", err)
			return []model.Row{}
		}
		return res
	}
	return fallbackSearch(text, rows, columns)
}

func validate(resolver query.Resolver, text string, columns []*model.ColumnDef) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return resolver.ValidateClause(text, columns)
}

func resolve(ctx context.Context, resolver query.Resolver, clause string,
	rows []model.Row, columns []*model.ColumnDef) (res []model.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("resolver panicked: %v", r)
		}
	}()
	res, err = resolver.Search(ctx, clause, rows, columns)
	if err == nil && res == nil {
		res = []model.Row{}
	}
	return res, err
}

// matcher returns a case insensitive matcher for text. Text that does not
// compile as a regular expression is matched literally.
func matcher(text string) func(string) bool {
	if re, err := regexp.Compile("(?i)" + text); err == nil {
		return re.MatchString
	}
	lower := strings.ToLower(text)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), lower)
	}
}

// fallbackSearch keeps rows where any searchable column holds a string
// matching text. Other values never match.
func fallbackSearch(text string, rows []model.Row, columns []*model.ColumnDef) []model.Row {
	match := matcher(text)
	searchable := make([]*model.ColumnDef, 0, len(columns))
	for _, c := range columns {
		if c.EnableSearch {
			searchable = append(searchable, c)
		}
	}
	res := []model.Row{}
	for _, row := range rows {
		for _, c := range searchable {
			if s, ok := searchValue(c, row).(string); ok && match(s) {
				res = append(res, row)
				break
			}
		}
	}
	return res
}

func searchValue(c *model.ColumnDef, row model.Row) (v any) {
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	return c.GetSearchValue(row)
}

func (e *Engine) runFilter() {
	e.filterGen++
	gen := e.filterGen
	rows := e.searched
	columns := slices.Clone(e.def.Columns)
	clause := e.compoundClause(columns, e.def.FacetConditions)
	if clause == "" {
		e.filterBusy = false
		e.setFiltered(rows)
		return
	}
	resolver := e.resolver
	ctx := e.ctx
	e.filterBusy = true
	e.dirty = true
	e.exec.Submit(func() func() {
		start := time.Now()
		res := []model.Row{}
		if resolver != nil {
			var err error
			if res, err = resolve(ctx, resolver, clause, rows, columns); err != nil {
				resolverErrors.WithLabelValues(stageFilter).Inc()
				e.log.Warn("facet clause failed", "clause", clause, "error", err)
				res = []model.Row{}
			}
		}
		observe(stageFilter, start)
		return func() {
			if gen != e.filterGen {
				e.stale(stageFilter, gen)
				return
			}
			e.filterBusy = false
			e.setFiltered(res)
		}
	})
}

// compoundClause joins the clause fragments of every faceted column with
// an active condition, in column order.
func (e *Engine) compoundClause(columns []*model.ColumnDef, conditions map[string]any) string {
	var parts []string
	for _, c := range columns {
		if c.FacetType == nil {
			continue
		}
		cond, ok := conditions[c.ID]
		if !ok || cond == nil {
			continue
		}
		frag, err := toClause(c, cond)
		if err != nil {
			e.log.Warn("facet condition ignored", "column", c.ID, "error", err)
			continue
		}
		if strings.TrimSpace(frag) == "" {
			continue
		}
		parts = append(parts, "("+frag+")")
	}
	return strings.Join(parts, " and ")
}

func toClause(c *model.ColumnDef, cond any) (frag string, err error) {
	defer func() {
		if r := recover(); r != nil {
			frag, err = "", fmt.Errorf("%v", r)
		}
	}()
	return c.FacetType.ToClause(c, cond), nil
}

func (e *Engine) runFacets() {
	e.facetGen++
	gen := e.facetGen
	var faceted []*model.ColumnDef
	if e.def.EnableFaceting {
		for _, c := range e.def.Columns {
			if c.FacetType != nil {
				faceted = append(faceted, c)
			}
		}
	}
	if len(faceted) == 0 {
		e.setFacets(nil)
		return
	}
	rows := e.searched
	workers := e.facetWorkers
	e.exec.Submit(func() func() {
		start := time.Now()
		entries := e.summarise(faceted, rows, workers)
		observe(stageFacets, start)
		return func() {
			if gen != e.facetGen {
				e.stale(stageFacets, gen)
				return
			}
			e.setFacets(entries)
		}
	})
}

// summarise runs FacetRows for every column concurrently and keeps the
// non nil summaries in column order.
func (e *Engine) summarise(columns []*model.ColumnDef, rows []model.Row, workers int) []model.FacetEntry {
	results := make([]any, len(columns))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, c := range columns {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.log.Warn("facet summary failed", "column", c.ID, "error", r)
					results[i] = nil
				}
			}()
			results[i] = c.FacetType.FacetRows(c, rows)
			return nil
		})
	}
	_ = g.Wait()
	var res []model.FacetEntry
	for i, c := range columns {
		if results[i] != nil {
			res = append(res, model.FacetEntry{Column: c, Facets: results[i]})
		}
	}
	return res
}
