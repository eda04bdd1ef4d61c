package repository

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/metrico/tablepipe/pipeline"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
)

// TablesRepository holds the engine of every served table by name.
type TablesRepository struct {
	mtx    sync.RWMutex
	tables btree.Map[string, *pipeline.Engine]
}

func NewTablesRepository() *TablesRepository {
	return &TablesRepository{}
}

func (r *TablesRepository) Add(name string, e *pipeline.Engine) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.tables.Get(name); ok {
		return fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	r.tables.Set(name, e)
	return nil
}

func (r *TablesRepository) Get(name string) (*pipeline.Engine, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	e, ok := r.tables.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return e, nil
}

// Names returns the table names in ascending order.
func (r *TablesRepository) Names() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.tables.Keys()
}

// Remove closes and forgets the named table.
func (r *TablesRepository) Remove(name string) error {
	r.mtx.Lock()
	e, ok := r.tables.Delete(name)
	r.mtx.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	e.Close()
	return nil
}

// Close closes every table.
func (r *TablesRepository) Close() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.tables.Scan(func(_ string, e *pipeline.Engine) bool {
		e.Close()
		return true
	})
	r.tables.Clear()
}
