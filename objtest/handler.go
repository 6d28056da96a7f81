package objtest

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sagarc03/eiostore"
)

// handler serves the object storage API from a store.
type handler struct {
	store *store
}

func newHandler(s *store) *handler {
	return &handler{store: s}
}

// Router returns the API routes behind request recording, fault injection
// and authorization.
func (h *handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.recordMiddleware)
	r.Use(AuthMiddleware(h.store.secret))

	r.Route("/objects", func(r chi.Router) {
		r.Get("/", h.handleFind)
		r.Post("/", h.handlePost)
		r.Delete("/", h.handleDeleteMany)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handlePut)
		r.Delete("/{id}", h.handleDelete)
	})

	return r
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	obj, ok := h.store.get(objectID(r))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Object not found")
		return
	}

	for k, v := range obj.Header {
		w.Header()[k] = v
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", eiostore.DefaultContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

func (h *handler) handlePost(w http.ResponseWriter, r *http.Request) {
	obj, err := readObject(r, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	h.store.put(obj)
	_ = writeJSON(w, http.StatusCreated, obj.Info())
}

func (h *handler) handlePut(w http.ResponseWriter, r *http.Request) {
	obj, err := readObject(r, objectID(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	h.store.put(obj)
	_ = writeJSON(w, http.StatusOK, obj.Info())
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.store.delete(objectID(r)) {
		writeError(w, http.StatusNotFound, "not_found", "Object not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleFind(w http.ResponseWriter, r *http.Request) {
	query := parseQuery(r)
	if len(query) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_query", "At least one query parameter is required")
		return
	}

	matched := h.store.match(query)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	items := make([]eiostore.ObjectInfo, len(matched))
	for i, o := range matched {
		items[i] = o.Info()
	}
	_ = writeJSON(w, http.StatusOK, items)
}

func (h *handler) handleDeleteMany(w http.ResponseWriter, r *http.Request) {
	query := parseQuery(r)
	if len(query) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_query", "At least one query parameter is required")
		return
	}
	h.store.deleteMatching(query)
	w.WriteHeader(http.StatusNoContent)
}

// recordMiddleware buffers the body, records the request and applies the
// next queued fault, if any.
func (h *handler) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		fault, ok := h.store.record(Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-r.Context().Done():
				return
			}
		}

		switch {
		case fault.Drop:
			dropConnection(w)
		case fault.Status != 0:
			writeError(w, fault.Status, "injected_fault", http.StatusText(fault.Status))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}

func readObject(r *http.Request, id string) (*Object, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	for k, v := range r.Header {
		switch {
		case k == "Content-Type",
			k == eiostore.HeaderTTL,
			strings.HasPrefix(k, eiostore.MetaHeaderPrefix),
			strings.HasPrefix(k, eiostore.QueryHeaderPrefix):
			header[k] = append([]string(nil), v...)
		}
	}

	return &Object{
		ID:        id,
		Data:      data,
		Header:    header,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// objectID returns the decoded {id} path segment. Routing matches on the raw
// path, so an escaped slash stays inside the segment.
func objectID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}

// parseQuery extracts query[key]=value parameters.
func parseQuery(r *http.Request) map[string]string {
	out := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) == 0 || !strings.HasPrefix(k, "query[") || !strings.HasSuffix(k, "]") {
			continue
		}
		out[k[len("query["):len(k)-1]] = v[0]
	}
	return out
}
