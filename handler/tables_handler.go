package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/city"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/pipeline"
	"github.com/metrico/tablepipe/repository"
	"github.com/metrico/tablepipe/utils"
)

var ErrBadRequest = errors.New("bad request")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Handler struct {
	Repo *repository.TablesRepository
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	_, err := w.Write([]byte("ok"))
	return err
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	names := h.Repo.Names()
	res := make([]model.TableInfo, 0, len(names))
	for _, name := range names {
		e, err := h.Repo.Get(name)
		if err != nil {
			continue
		}
		snap := e.Snapshot()
		info := model.TableInfo{Name: name, Rows: snap.TotalRows, Columns: make([]model.Metadata, len(snap.Columns))}
		for i, c := range snap.Columns {
			info.Columns[i] = model.Metadata{ID: c.ID, Title: c.HeaderTitle}
		}
		res = append(res, info)
	}
	return writeJSON(w, r, res)
}

// Table applies the view parameters of the request to the table and
// returns the resulting page.
func (h *Handler) Table(w http.ResponseWriter, r *http.Request) error {
	e, err := h.Repo.Get(mux.Vars(r)["name"])
	if err != nil {
		return err
	}
	q := r.URL.Query()
	update, err := viewUpdate(q)
	if err != nil {
		return err
	}
	if update != nil {
		e.Update(update)
	}
	return h.page(w, r, e)
}

func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) error {
	e, err := h.Repo.Get(mux.Vars(r)["name"])
	if err != nil {
		return err
	}
	if wait(r.URL.Query()) {
		e.Flush()
	}
	return writeJSON(w, r, e.Snapshot().Facets())
}

// ApplyFilters takes a JSON object of raw facet conditions keyed by column.
func (h *Handler) ApplyFilters(w http.ResponseWriter, r *http.Request) error {
	e, err := h.Repo.Get(mux.Vars(r)["name"])
	if err != nil {
		return err
	}
	var pending map[string]any
	if err := json.NewDecoder(r.Body).Decode(&pending); err != nil {
		return fmt.Errorf("%w: filters: %v", ErrBadRequest, err)
	}
	if wait(r.URL.Query()) {
		// conditions are normalised against the settled facet summary
		e.Flush()
	}
	e.ApplyFilters(pending)
	return h.page(w, r, e)
}

func (h *Handler) ClearFilters(w http.ResponseWriter, r *http.Request) error {
	e, err := h.Repo.Get(mux.Vars(r)["name"])
	if err != nil {
		return err
	}
	e.ClearFilters()
	return h.page(w, r, e)
}

// page writes the current page of e. Requested pages past the end are
// clamped to the last page.
func (h *Handler) page(w http.ResponseWriter, r *http.Request, e *pipeline.Engine) error {
	if wait(r.URL.Query()) {
		e.Flush()
	}
	snap := e.Snapshot()
	if snap.TotalPages > 0 && snap.PageNum > snap.TotalPages {
		last := snap.TotalPages
		e.Update(func(def *model.TableDefinition) { def.PageNum = last })
		snap = e.Snapshot()
	}
	out, err := snap.Output()
	if err != nil {
		return err
	}
	if format := r.URL.Query().Get("default_format"); format != "" {
		res, err := utils.ConversationOfPage(out, format)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		w.Header().Set("Content-Type", utils.ContentType(format))
		_, err = w.Write([]byte(res))
		return err
	}
	return writeJSON(w, r, out)
}

func wait(q url.Values) bool {
	v, err := strconv.ParseBool(q.Get("wait"))
	return err != nil || v
}

func positive(q url.Values, key string) (int, bool, error) {
	if !q.Has(key) {
		return 0, false, nil
	}
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 1 {
		return 0, false, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, key)
	}
	return n, true, nil
}

// viewUpdate turns the view parameters of q into a definition update, or
// nil when q sets none.
func viewUpdate(q url.Values) (func(def *model.TableDefinition), error) {
	page, hasPage, err := positive(q, "page")
	if err != nil {
		return nil, err
	}
	rows, hasRows, err := positive(q, "rows")
	if err != nil {
		return nil, err
	}
	order := model.SortOrder(q.Get("order"))
	if q.Has("order") && order != model.SortAsc && order != model.SortDesc {
		return nil, fmt.Errorf("%w: order must be asc or desc", ErrBadRequest)
	}
	if !hasPage && !hasRows && !q.Has("order") && !q.Has("search") && !q.Has("sort") {
		return nil, nil
	}
	return func(def *model.TableDefinition) {
		if q.Has("search") {
			def.SearchText = q.Get("search")
		}
		if q.Has("sort") {
			def.SortColumnID = q.Get("sort")
		}
		if q.Has("order") {
			def.SortOrder = order
		}
		if hasRows {
			def.RowCount = rows
		}
		if hasPage {
			def.PageNum = page
		}
	}, nil
}

// writeJSON writes v with an ETag of its body and answers conditional
// requests with 304.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	etag := fmt.Sprintf(`"%x"`, city.CH64(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, err = w.Write(body)
	return err
}
