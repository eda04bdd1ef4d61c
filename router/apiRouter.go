package router

import (
	handlers "github.com/metrico/tablepipe/handler"
)

var _ = func() int {
	RegisterRoute(&Route{Path: "/ping", Methods: []string{"GET"}, Handler: (*handlers.Handler).Ping})
	RegisterRoute(&Route{Path: "/tables", Methods: []string{"GET"}, Handler: (*handlers.Handler).List})
	RegisterRoute(&Route{Path: "/tables/{name}", Methods: []string{"GET"}, Handler: (*handlers.Handler).Table})
	RegisterRoute(&Route{Path: "/tables/{name}/facets", Methods: []string{"GET"}, Handler: (*handlers.Handler).Facets})
	RegisterRoute(&Route{Path: "/tables/{name}/filters", Methods: []string{"POST"}, Handler: (*handlers.Handler).ApplyFilters})
	RegisterRoute(&Route{Path: "/tables/{name}/filters", Methods: []string{"DELETE"}, Handler: (*handlers.Handler).ClearFilters})
	return 0
}()
