package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrico/tablepipe/facet"
	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/scheduler"
)

// rec is a Row with pointer identity so tests can compare row references.
type rec struct {
	vals map[string]any
}

func (r *rec) Get(path string) any {
	return r.vals[path]
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type manualExecutor struct {
	mtx   sync.Mutex
	works []scheduler.Work
}

func (m *manualExecutor) Submit(w scheduler.Work) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.works = append(m.works, w)
}

func (m *manualExecutor) take() []scheduler.Work {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	res := m.works
	m.works = nil
	return res
}

func withManual(m *manualExecutor) Option {
	return WithExecutor(func(*scheduler.Loop) scheduler.Executor { return m })
}

func sampleColumns() []*model.ColumnDef {
	cols := make([]*model.ColumnDef, 5)
	for i := range cols {
		cols[i] = model.NewColumnDef(fmt.Sprintf("col%d", i), fmt.Sprintf("Column %d", i), "")
	}
	return cols
}

func sampleRows() []model.Row {
	rows := make([]model.Row, 8)
	for j := range rows {
		r := &rec{vals: map[string]any{}}
		for i := 0; i < 5; i++ {
			r.vals[fmt.Sprintf("col%d", i)] = fmt.Sprintf("Column %d - Data %d", i, j)
		}
		rows[j] = r
	}
	rows[3].(*rec).vals["col0"] = nil
	rows[3].(*rec).vals["col1"] = "Data that would be clipped with ellipsis."
	return rows
}

func numberRows(values ...any) []model.Row {
	rows := make([]model.Row, len(values))
	for i, v := range values {
		rows[i] = &rec{vals: map[string]any{"n": v, "id": i}}
	}
	return rows
}

func column(rows []model.Row, id string) []any {
	res := make([]any, len(rows))
	for i, r := range rows {
		res[i] = r.Get(id)
	}
	return res
}

func isSubsequence(sub, seq []model.Row) bool {
	j := 0
	for _, r := range seq {
		if j < len(sub) && sub[j] == r {
			j++
		}
	}
	return j == len(sub)
}

func TestPaginationScenario(t *testing.T) {
	def := model.NewTableDefinition(sampleColumns()...)
	def.RowCount = 5
	e := New(def, quiet())
	e.SetRows(sampleRows())
	e.Flush()

	snap := e.Snapshot()
	assert.Len(t, snap.ProcessedRows, 5)
	assert.Equal(t, 2, snap.TotalPages)
	assert.Equal(t, 8, snap.TotalRows)

	e.Update(func(def *model.TableDefinition) { def.PageNum = 2 })
	snap = e.Snapshot()
	assert.Len(t, snap.ProcessedRows, 3)
	assert.Equal(t, snap.FacetFilteredRows[5:], snap.ProcessedRows)

	e.Update(func(def *model.TableDefinition) { def.PageNum = 7 })
	assert.Empty(t, e.Snapshot().ProcessedRows)
	assert.Equal(t, 2, e.Snapshot().TotalPages)
}

func TestPaginate(t *testing.T) {
	rows := numberRows(0, 1, 2, 3, 4, 5, 6)
	for _, tc := range []struct {
		rows, page, want, pages int
	}{
		{3, 1, 3, 3},
		{3, 3, 1, 3},
		{3, 4, 0, 3},
		{7, 1, 7, 1},
		{10, 1, 7, 1},
		{3, 0, 0, 3},
		{0, 1, 0, 0},
	} {
		res, pages := Paginate(rows, tc.rows, tc.page)
		assert.Len(t, res, tc.want, "rows=%d page=%d", tc.rows, tc.page)
		assert.Equal(t, tc.pages, pages, "rows=%d page=%d", tc.rows, tc.page)
		if tc.want > 0 {
			start := (tc.page - 1) * tc.rows
			assert.Equal(t, rows[start:start+tc.want], res)
		}
	}
	res, pages := Paginate(nil, 5, 1)
	assert.Empty(t, res)
	assert.Equal(t, 0, pages)
}

func TestSearchFallbackScenario(t *testing.T) {
	rows := sampleRows()
	e := New(model.NewTableDefinition(sampleColumns()...), quiet())
	e.SetRows(rows)
	e.Update(func(def *model.TableDefinition) { def.SearchText = "data 3" })
	assert.True(t, e.Snapshot().IsSearching)

	e.Flush()
	snap := e.Snapshot()
	assert.False(t, snap.IsSearching)
	assert.Equal(t, []model.Row{rows[3]}, snap.SearchedRows)
	assert.Equal(t, []model.Row{rows[3]}, snap.ProcessedRows)
	assert.Equal(t, 1, snap.TotalPages)

	e.Update(func(def *model.TableDefinition) { def.SearchText = "" })
	assert.Len(t, e.Snapshot().SearchedRows, 8)
}

func TestFallbackIgnoresNonStringsAndDisabledColumns(t *testing.T) {
	hidden := model.NewColumnDef("hidden", "", "")
	hidden.EnableSearch = false
	cols := []*model.ColumnDef{model.NewColumnDef("n", "", ""), hidden}
	rows := []model.Row{
		&rec{vals: map[string]any{"n": 12, "hidden": "12"}},
		&rec{vals: map[string]any{"n": "x12", "hidden": ""}},
	}
	res := fallbackSearch("12", rows, cols)
	assert.Equal(t, []model.Row{rows[1]}, res)

	// not a valid regular expression, matched literally
	rows = []model.Row{&rec{vals: map[string]any{"n": "a(b"}}}
	assert.Len(t, fallbackSearch("A(B", rows, cols), 1)
}

func TestSearchForColumnIDFallsBack(t *testing.T) {
	cols := []*model.ColumnDef{model.NewColumnDef("status", "Status", ""), model.NewColumnDef("note", "Note", "")}
	rows := []model.Row{
		&rec{vals: map[string]any{"status": "ok", "note": "status page down"}},
		&rec{vals: map[string]any{"status": "failed", "note": "nothing"}},
	}
	e := New(model.NewTableDefinition(cols...), quiet())
	e.SetRows(rows)
	e.Update(func(def *model.TableDefinition) { def.SearchText = "status" })
	e.Flush()
	assert.Equal(t, []model.Row{rows[0]}, e.Snapshot().SearchedRows)

	e.Update(func(def *model.TableDefinition) { def.SearchText = "note" })
	e.Flush()
	assert.Empty(t, e.Snapshot().SearchedRows)
}

func TestStructuredSearch(t *testing.T) {
	rows := sampleRows()
	e := New(model.NewTableDefinition(sampleColumns()...), quiet())
	e.SetRows(rows)
	e.Update(func(def *model.TableDefinition) { def.SearchText = `col0 == nil or col2 endsWith "Data 5"` })
	e.Flush()
	assert.Equal(t, []model.Row{rows[3], rows[5]}, e.Snapshot().SearchedRows)
}

func TestSortDescWithNil(t *testing.T) {
	def := model.NewTableDefinition(model.NewColumnDef("n", "N", ""))
	def.SortColumnID = "n"
	def.SortOrder = model.SortDesc
	e := New(def, quiet())
	e.SetRows(numberRows(3, nil, 1))
	assert.True(t, e.Snapshot().IsSorting)

	e.Flush()
	snap := e.Snapshot()
	assert.False(t, snap.IsSorting)
	assert.Equal(t, []any{3, 1, nil}, column(snap.SortedRows, "n"))

	e.Update(func(def *model.TableDefinition) { def.SortOrder = model.SortAsc })
	e.Flush()
	assert.Equal(t, []any{nil, 1, 3}, column(e.Snapshot().SortedRows, "n"))
}

func TestSortAllNilTerminates(t *testing.T) {
	def := model.NewTableDefinition(model.NewColumnDef("n", "N", ""))
	def.SortColumnID = "n"
	e := New(def, quiet())
	rows := numberRows(nil, nil, nil, nil, nil)
	e.SetRows(rows)
	e.Flush()
	assert.Equal(t, rows, e.Snapshot().SortedRows)
}

func TestSortUnknownColumnPassthrough(t *testing.T) {
	def := model.NewTableDefinition(model.NewColumnDef("n", "N", ""))
	def.SortColumnID = "missing"
	e := New(def, quiet())
	rows := numberRows(2, 1)
	e.SetRows(rows)
	snap := e.Snapshot()
	assert.False(t, snap.IsSorting)
	assert.Equal(t, rows, snap.SortedRows)
}

func TestSortValueExtractedOncePerRow(t *testing.T) {
	var calls int
	col := model.NewColumnDef("n", "N", "")
	col.SortValue = func(row model.Row) any {
		calls++
		return row.Get("n")
	}
	e := New(model.NewTableDefinition(col), quiet())
	e.SetRows(numberRows(5, 3, 9, 1, 7, 2))
	e.Update(func(def *model.TableDefinition) {
		def.SortColumnID = "n"
		def.SortOrder = model.SortDesc
		def.SortOrder = model.SortAsc
		def.SortOrder = model.SortDesc
	})
	e.Flush()
	assert.Equal(t, 6, calls)
	assert.Equal(t, []any{9, 7, 5, 3, 2, 1}, column(e.Snapshot().SortedRows, "n"))
}

func TestSortPanicLeavesRows(t *testing.T) {
	col := model.NewColumnDef("n", "N", "")
	col.SortValue = func(model.Row) any { panic("broken accessor") }
	def := model.NewTableDefinition(col)
	def.SortColumnID = "n"
	e := New(def, quiet())
	rows := numberRows(2, 1)
	e.SetRows(rows)
	e.Flush()
	snap := e.Snapshot()
	assert.False(t, snap.IsSorting)
	assert.Equal(t, rows, snap.SortedRows)
}

func TestCoalescedTriggers(t *testing.T) {
	m := &manualExecutor{}
	def := model.NewTableDefinition(model.NewColumnDef("n", "N", ""))
	e := New(def, quiet(), withManual(m))
	e.SetRows(numberRows(1, 2, 3))
	require.Empty(t, m.take())

	e.Update(func(def *model.TableDefinition) {
		def.SortColumnID = "n"
		def.SortOrder = model.SortDesc
		def.SearchText = "1"
		def.SearchText = "2"
	})
	// one sort pass and one search pass over the current sorted rows
	assert.Len(t, m.take(), 2)
}

func TestStaleSortDiscarded(t *testing.T) {
	m := &manualExecutor{}
	def := model.NewTableDefinition(model.NewColumnDef("n", "N", ""))
	def.SortColumnID = "n"
	e := New(def, quiet(), withManual(m))
	e.SetRows(numberRows(2, 3, 1))
	e.Update(func(def *model.TableDefinition) { def.SortOrder = model.SortDesc })

	works := m.take()
	require.Len(t, works, 2)
	assert.True(t, e.Snapshot().IsSorting)

	e.loop.Do(works[1]())
	assert.False(t, e.Snapshot().IsSorting)
	assert.Equal(t, []any{3, 2, 1}, column(e.Snapshot().SortedRows, "n"))

	version := e.Snapshot().Version
	e.loop.Do(works[0]())
	assert.Equal(t, version, e.Snapshot().Version)
	assert.Equal(t, []any{3, 2, 1}, column(e.Snapshot().SortedRows, "n"))
}

func TestStaleSearchKeepsBusyUntilLatest(t *testing.T) {
	m := &manualExecutor{}
	rows := sampleRows()
	e := New(model.NewTableDefinition(sampleColumns()...), quiet(), withManual(m))
	e.SetRows(rows)
	e.Update(func(def *model.TableDefinition) { def.SearchText = "data 1" })
	e.Update(func(def *model.TableDefinition) { def.SearchText = "data 2" })
	works := m.take()
	require.Len(t, works, 2)

	e.loop.Do(works[0]())
	assert.True(t, e.Snapshot().IsSearching)
	assert.Len(t, e.Snapshot().SearchedRows, 8)

	e.loop.Do(works[1]())
	assert.False(t, e.Snapshot().IsSearching)
	assert.Equal(t, []model.Row{rows[2]}, e.Snapshot().SearchedRows)
}

func TestStaleFilterKeepsBusyUntilLatest(t *testing.T) {
	m := &manualExecutor{}
	def, rows := statusTable()
	e := New(def, quiet(), withManual(m))
	e.SetRows(rows)
	m.take()

	e.Update(func(def *model.TableDefinition) {
		def.FacetConditions["status"] = facet.ExactCondition{In: []string{"active"}}
	})
	e.Update(func(def *model.TableDefinition) {
		def.FacetConditions["status"] = facet.ExactCondition{In: []string{"pending"}}
	})
	works := m.take()
	require.Len(t, works, 2)
	assert.True(t, e.Snapshot().IsSearching)

	e.loop.Do(works[0]())
	assert.True(t, e.Snapshot().IsSearching)
	assert.Equal(t, rows, e.Snapshot().FacetFilteredRows)

	e.loop.Do(works[1]())
	assert.False(t, e.Snapshot().IsSearching)
	assert.Equal(t, []model.Row{rows[3]}, e.Snapshot().FacetFilteredRows)
}

func TestStaleFacetSummaryDiscarded(t *testing.T) {
	m := &manualExecutor{}
	def, rows := statusTable()
	e := New(def, quiet(), withManual(m))
	m.take()
	e.SetRows(rows[:2])
	e.SetRows(rows)
	works := m.take()
	require.Len(t, works, 2)

	e.loop.Do(works[1]())
	fields := e.Snapshot().FacetedFields
	require.Len(t, fields, 2)
	assert.Equal(t, facet.RangeSummary{Min: 1, Max: 8, Count: 5}, fields[1].Facets)

	version := e.Snapshot().Version
	e.loop.Do(works[0]())
	assert.Equal(t, version, e.Snapshot().Version)
	assert.Equal(t, fields, e.Snapshot().FacetedFields)
}

type failingResolver struct{}

func (failingResolver) ValidateClause(string, []*model.ColumnDef) bool { return true }

func (failingResolver) Search(context.Context, string, []model.Row, []*model.ColumnDef) ([]model.Row, error) {
	return nil, errors.New("evaluation failed")
}

func TestResolverErrorMatchesNothing(t *testing.T) {
	e := New(model.NewTableDefinition(sampleColumns()...), quiet(), WithResolver(failingResolver{}))
	e.SetRows(sampleRows())
	e.Update(func(def *model.TableDefinition) { def.SearchText = "col0 != nil" })
	e.Flush()
	snap := e.Snapshot()
	assert.False(t, snap.IsSearching)
	assert.NotNil(t, snap.SearchedRows)
	assert.Empty(t, snap.SearchedRows)
	assert.Empty(t, snap.ProcessedRows)
	assert.Equal(t, 0, snap.TotalPages)
}

func statusTable() (*model.TableDefinition, []model.Row) {
	status := model.NewColumnDef("status", "Status", "")
	status.FacetType = &facet.Exact{}
	size := model.NewColumnDef("size", "Size", "")
	size.FacetType = &facet.Range{}
	note := model.NewColumnDef("note", "Note", "")
	def := model.NewTableDefinition(status, size, note)
	values := []struct {
		status string
		size   float64
	}{{"active", 1}, {"inactive", 4}, {"active", 2}, {"pending", 8}, {"active", 6}}
	rows := make([]model.Row, len(values))
	for i, v := range values {
		rows[i] = &rec{vals: map[string]any{"status": v.status, "size": v.size, "note": "n"}}
	}
	return def, rows
}

func TestFacetSummary(t *testing.T) {
	def, rows := statusTable()
	e := New(def, quiet())
	e.SetRows(rows)
	e.Flush()

	fields := e.Snapshot().FacetedFields
	require.Len(t, fields, 2)
	assert.Equal(t, "status", fields[0].Column.ID)
	assert.Equal(t, []facet.Bucket{
		{Value: "active", Count: 3}, {Value: "inactive", Count: 1}, {Value: "pending", Count: 1},
	}, fields[0].Facets)
	assert.Equal(t, facet.RangeSummary{Min: 1, Max: 8, Count: 5}, fields[1].Facets)

	e.Update(func(def *model.TableDefinition) { def.EnableFaceting = false })
	e.Refresh()
	assert.Empty(t, e.Snapshot().FacetedFields)
}

func TestApplyAndClearFilters(t *testing.T) {
	def, rows := statusTable()
	e := New(def, quiet(), WithExecutor(func(l *scheduler.Loop) scheduler.Executor {
		return scheduler.NewPoolExecutor(l, 2)
	}))
	e.SetRows(rows)
	e.Flush()

	e.ApplyFilters(map[string]any{
		"status": []any{"active", "ghost"},
		"size":   map[string]any{"min": 2},
		"note":   "n",
	})
	assert.True(t, e.Snapshot().IsSearching)
	e.Flush()

	snap := e.Snapshot()
	assert.False(t, snap.IsSearching)
	assert.Equal(t, map[string]any{
		"status": facet.ExactCondition{In: []string{"active"}},
		"size":   facet.RangeCondition{Min: func() *float64 { f := 2.0; return &f }()},
	}, snap.FacetConditions)
	assert.Equal(t, []model.Row{rows[2], rows[4]}, snap.FacetFilteredRows)
	assert.True(t, isSubsequence(snap.FacetFilteredRows, snap.SearchedRows))
	// summary still covers every searched row
	assert.Equal(t, 3, snap.FacetedFields[0].Facets.([]facet.Bucket)[0].Count)

	e.ClearFilters()
	snap = e.Snapshot()
	assert.Empty(t, snap.FacetConditions)
	assert.Equal(t, snap.SearchedRows, snap.FacetFilteredRows)
}

func TestConditionWithoutFacetTypeIgnored(t *testing.T) {
	def, rows := statusTable()
	e := New(def, quiet())
	e.SetRows(rows)
	e.Update(func(def *model.TableDefinition) {
		def.FacetConditions["note"] = facet.ExactCondition{In: []string{"x"}}
	})
	snap := e.Snapshot()
	assert.False(t, snap.IsSearching)
	assert.Equal(t, snap.SearchedRows, snap.FacetFilteredRows)
}

type panickyFacet struct{}

func (panickyFacet) NormaliseConditions(any, any) any            { panic("normalise") }
func (panickyFacet) FacetRows(*model.ColumnDef, []model.Row) any { panic("facet rows") }
func (panickyFacet) ToClause(*model.ColumnDef, any) string       { panic("clause") }

func TestFacetTypePanicsContained(t *testing.T) {
	def, rows := statusTable()
	bad := model.NewColumnDef("note", "Note", "")
	bad.FacetType = panickyFacet{}
	def.Columns[2] = bad
	def.FacetConditions["note"] = "n"
	e := New(def, quiet())
	e.SetRows(rows)
	e.Flush()

	snap := e.Snapshot()
	assert.Len(t, snap.FacetedFields, 2)
	assert.Equal(t, snap.SearchedRows, snap.FacetFilteredRows)
}

func TestIdempotentRefresh(t *testing.T) {
	def, rows := statusTable()
	def.SortColumnID = "size"
	def.SearchText = "act"
	def.FacetConditions["status"] = facet.ExactCondition{In: []string{"active"}}
	e := New(def, quiet())
	e.SetRows(rows)
	e.Flush()
	before := e.Snapshot()

	e.Refresh()
	e.Flush()
	after := e.Snapshot()
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, before.SortedRows, after.SortedRows)
	assert.Equal(t, before.SearchedRows, after.SearchedRows)
	assert.Equal(t, before.FacetFilteredRows, after.FacetFilteredRows)
	assert.Equal(t, before.ProcessedRows, after.ProcessedRows)
	assert.Equal(t, before.FacetedFields, after.FacetedFields)
}

func TestSubsetAndPermutationProperties(t *testing.T) {
	words := []any{"alpha", "beta", "gamma", "delta", nil, 7}
	statuses := []string{"on", "off", "idle"}
	for seed := uint64(0); seed < 20; seed++ {
		rnd := rand.New(rand.NewPCG(seed, 42))
		def, _ := statusTable()
		def.SortColumnID = "note"
		if seed%2 == 1 {
			def.SortOrder = model.SortDesc
		}
		def.SearchText = "a"
		def.RowCount = 4
		def.FacetConditions["status"] = facet.ExactCondition{In: []string{"on", "idle"}}

		rows := make([]model.Row, rnd.IntN(40))
		for i := range rows {
			rows[i] = &rec{vals: map[string]any{
				"status": statuses[rnd.IntN(len(statuses))],
				"size":   rnd.Float64() * 100,
				"note":   words[rnd.IntN(len(words))],
			}}
		}
		e := New(def, quiet())
		e.SetRows(rows)
		e.Flush()
		snap := e.Snapshot()

		require.Len(t, snap.SortedRows, len(rows))
		seen := make(map[model.Row]int)
		for _, r := range snap.SortedRows {
			seen[r]++
		}
		for _, r := range rows {
			assert.Equal(t, 1, seen[r])
		}
		assert.True(t, isSubsequence(snap.SearchedRows, snap.SortedRows), "seed %d", seed)
		assert.True(t, isSubsequence(snap.FacetFilteredRows, snap.SearchedRows), "seed %d", seed)
		for _, r := range snap.FacetFilteredRows {
			assert.NotEqual(t, "off", r.Get("status"))
		}
		page, pages := Paginate(snap.FacetFilteredRows, 4, 1)
		assert.Equal(t, page, snap.ProcessedRows)
		assert.Equal(t, pages, snap.TotalPages)
	}
}

func TestStartRunsInBackground(t *testing.T) {
	def := model.NewTableDefinition(model.NewColumnDef("n", "N", ""))
	def.SortColumnID = "n"
	e := New(def, quiet())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Close()

	e.SetRows(numberRows(2, 1, 3))
	assert.Eventually(t, func() bool {
		snap := e.Snapshot()
		return !snap.IsSorting && len(snap.SortedRows) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []any{1, 2, 3}, column(e.Snapshot().SortedRows, "n"))
}
