package router

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	handlers "github.com/metrico/tablepipe/handler"
	"github.com/metrico/tablepipe/logger"
	"github.com/metrico/tablepipe/repository"
)

type Route struct {
	Path    string
	Methods []string
	Handler func(h *handlers.Handler, w http.ResponseWriter, r *http.Request) error
}

func WithErrorHandle(hndl func(w http.ResponseWriter, r *http.Request) error,
) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		err := hndl(w, r)
		if err == nil {
			return
		}
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, repository.ErrTableNotFound):
			code = http.StatusNotFound
		case errors.Is(err, handlers.ErrBadRequest):
			code = http.StatusBadRequest
		default:
			logger.Error("request failed", "path", r.URL.Path, "error", err)
		}
		w.WriteHeader(code)
		w.Write([]byte(err.Error()))
	}
}

var handlerRegistry []*Route = nil

func RegisterRoute(r *Route) {
	handlerRegistry = append(handlerRegistry, r)
}

func NewRouter(repo *repository.TablesRepository) *mux.Router {
	h := &handlers.Handler{Repo: repo}
	router := mux.NewRouter()
	for _, r := range handlerRegistry {
		route := r
		router.HandleFunc(route.Path, WithErrorHandle(func(w http.ResponseWriter, req *http.Request) error {
			return route.Handler(h, w, req)
		})).Methods(route.Methods...)
	}
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}
