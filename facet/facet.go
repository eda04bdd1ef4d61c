// Package facet implements the facet types columns can carry.
package facet

import (
	"fmt"
	"sync"

	"github.com/metrico/tablepipe/model"
)

type Factory func() model.FacetType

var (
	registry = make(map[string]Factory)
	regMtx   sync.RWMutex
)

func Register(name string, factory Factory) {
	regMtx.Lock()
	defer regMtx.Unlock()
	registry[name] = factory
}

// Get returns a new facet type registered under name.
func Get(name string) (model.FacetType, error) {
	regMtx.RLock()
	defer regMtx.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("facet type %q not found", name)
	}
	return factory(), nil
}

var _ = func() int {
	Register("exact", func() model.FacetType { return &Exact{} })
	Register("range", func() model.FacetType { return &Range{} })
	return 0
}()
