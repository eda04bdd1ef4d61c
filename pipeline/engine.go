// Package pipeline keeps the sorted, searched, facet filtered and paginated
// views of a table in sync with its rows and its definition.
//
// Inputs are only read and written inside turns of the engine's loop. Every
// stage that needs real work captures its inputs, hands the computation to
// the executor and publishes the result in a later turn, provided no newer
// pass of the same stage was requested meanwhile. Readers see immutable
// snapshots taken at the end of each turn.
package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/metrico/tablepipe/logger"
	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/query"
	"github.com/metrico/tablepipe/scheduler"
)

const (
	stageSort   = "sort"
	stageSearch = "search"
	stageFilter = "filter"
	stageFacets = "facets"
)

type ExecutorFactory func(l *scheduler.Loop) scheduler.Executor

type Option func(e *Engine)

func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithResolver sets the structured query resolver. A nil resolver disables
// structured search and facet filtering matches nothing.
func WithResolver(r query.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

func WithExecutor(f ExecutorFactory) Option {
	return func(e *Engine) { e.newExecutor = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithFacetWorkers bounds the goroutines summarising facet columns.
func WithFacetWorkers(n int) Option {
	return func(e *Engine) { e.facetWorkers = n }
}

type Engine struct {
	id           string
	name         string
	loop         *scheduler.Loop
	exec         scheduler.Executor
	newExecutor  ExecutorFactory
	resolver     query.Resolver
	log          *slog.Logger
	facetWorkers int

	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once

	// owned by the loop
	def      *model.TableDefinition
	prev     model.DefinitionState
	rows     []model.Row
	sorted   []model.Row
	searched []model.Row
	filtered []model.Row
	facets   []model.FacetEntry

	sortGen, searchGen, filterGen, facetGen uint64
	sortBusy, searchBusy, filterBusy        bool
	dirty                                   bool
	version                                 uint64

	snap atomic.Pointer[Snapshot]
}

// New creates an engine over def. A nil def gets the default definition.
func New(def *model.TableDefinition, opts ...Option) *Engine {
	if def == nil {
		def = model.NewTableDefinition()
	}
	if def.FacetConditions == nil {
		def.FacetConditions = make(map[string]any)
	}
	e := &Engine{
		id:           uuid.NewString(),
		loop:         scheduler.NewLoop(),
		resolver:     query.NewExprResolver(),
		def:          def,
		prev:         def.State(),
		facetWorkers: runtime.NumCPU(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.newExecutor == nil {
		e.newExecutor = func(l *scheduler.Loop) scheduler.Executor { return scheduler.NewLoopExecutor(l) }
	}
	e.exec = e.newExecutor(e.loop)
	if e.log == nil {
		e.log = logger.Get()
	}
	e.log = e.log.With("table", e.name, "engine", e.id)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.loop.AfterTurn(e.commit)

	e.loop.Do(func() {
		e.dirty = true
		e.triggerSort()
		e.triggerFacets()
	})
	return e
}

func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) Name() string {
	return e.name
}

// Start processes deferred passes in the background until ctx is done or
// the engine is closed. Without Start, Flush drives the engine.
func (e *Engine) Start(ctx context.Context) {
	e.start.Do(func() {
		go func() {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(e.ctx, cancel)
			defer stop()
			e.loop.Run(ctx)
		}()
	})
}

// Close stops the background loop and cancels running resolver searches.
func (e *Engine) Close() {
	e.cancel()
}

// Flush blocks until every scheduled pass has been published or discarded.
func (e *Engine) Flush() {
	e.loop.Flush()
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// SetRows replaces the raw row collection. The engine keeps its own copy
// of the slice, the rows themselves are shared.
func (e *Engine) SetRows(rows []model.Row) {
	rows = slices.Clone(rows)
	e.loop.Do(func() {
		e.rows = rows
		e.changed(model.FieldRows)
	})
}

// Update lets fn mutate the table definition and re-runs the stages that
// depend on what changed. fn must not keep def past its return. Update must
// not be called from inside a turn.
func (e *Engine) Update(fn func(def *model.TableDefinition)) {
	e.loop.Do(func() {
		fn(e.def)
		if e.def.FacetConditions == nil {
			e.def.FacetConditions = make(map[string]any)
		}
		state := e.def.State()
		diff := e.prev.Diff(state)
		e.prev = state
		e.changed(diff)
	})
}

// Refresh re-runs every stage over unchanged inputs.
func (e *Engine) Refresh() {
	e.loop.Do(func() {
		e.dirty = true
		e.triggerSort()
		e.triggerSearch()
		e.triggerFilter()
		e.triggerFacets()
	})
}

func (e *Engine) changed(f model.Field) {
	if f == 0 {
		return
	}
	e.dirty = true
	if f.Has(model.FieldRows | model.FieldSortColumn | model.FieldSortOrder) {
		e.triggerSort()
	}
	if f.Has(model.FieldSearchText | model.FieldColumns) {
		e.triggerSearch()
	}
	if f.Has(model.FieldFacetConditions | model.FieldColumns) {
		e.triggerFilter()
	}
	if f.Has(model.FieldColumns) {
		e.triggerFacets()
	}
}

func (e *Engine) triggerSort()   { e.loop.Once(stageSort, e.runSort) }
func (e *Engine) triggerSearch() { e.loop.Once(stageSearch, e.runSearch) }
func (e *Engine) triggerFilter() { e.loop.Once(stageFilter, e.runFilter) }
func (e *Engine) triggerFacets() { e.loop.Once(stageFacets, e.runFacets) }

func (e *Engine) setSorted(rows []model.Row) {
	e.sorted = rows
	e.dirty = true
	e.triggerSearch()
}

func (e *Engine) setSearched(rows []model.Row) {
	e.searched = rows
	e.dirty = true
	e.triggerFilter()
	e.triggerFacets()
}

func (e *Engine) setFiltered(rows []model.Row) {
	e.filtered = rows
	e.dirty = true
}

func (e *Engine) setFacets(entries []model.FacetEntry) {
	e.facets = entries
	e.dirty = true
}

func (e *Engine) stale(stage string, gen uint64) {
	staleTotal.WithLabelValues(stage).Inc()
	e.log.Debug("stale pass discarded", "stage", stage, "generation", gen)
}
