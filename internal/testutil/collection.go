package testutil

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// collection is an in-memory table of one entity type.
type collection[T any] struct {
	mu     sync.Mutex
	items  []T
	id     func(*T) *string
	parent func(T) string
}

func newCollection[T any](id func(*T) *string, parent func(T) string) *collection[T] {
	return &collection[T]{id: id, parent: parent}
}

func (c *collection[T]) add(v T) T {
	if id := c.id(&v); *id == "" {
		*id = uuid.NewString()
	}
	c.mu.Lock()
	c.items = append(c.items, v)
	c.mu.Unlock()
	return v
}

func (c *collection[T]) list(parentID string) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []T{}
	for _, v := range c.items {
		if parentID == "" || c.parent == nil || c.parent(v) == parentID {
			out = append(out, v)
		}
	}
	return out
}

func (c *collection[T]) find(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.items {
		if *c.id(&v) == id {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) replace(id string, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if *c.id(&c.items[i]) == id {
			*c.id(&v) = id
			c.items[i] = v
			return true
		}
	}
	return false
}

func (c *collection[T]) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if *c.id(&c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// mountCollection serves list/get/create/update/delete for c under path.
// parentParam names the query parameter that filters the listing.
func mountCollection[T any](r chi.Router, path string, c *collection[T], parentParam string) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			parentID := ""
			if parentParam != "" {
				parentID = r.URL.Query().Get(parentParam)
			}
			respondOK(w, envelope{Success: true, Message: "ok", Data: c.list(parentID)})
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var v T
			if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
				respondFail(w, http.StatusBadRequest, "bad json")
				return
			}
			respondJSON(w, http.StatusCreated, envelope{Success: true, Message: "Created", Data: c.add(v)})
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			v, ok := c.find(chi.URLParam(r, "id"))
			if !ok {
				respondFail(w, http.StatusNotFound, "Not found")
				return
			}
			respondOK(w, envelope{Success: true, Message: "ok", Data: v})
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var v T
			if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
				respondFail(w, http.StatusBadRequest, "bad json")
				return
			}
			id := chi.URLParam(r, "id")
			if !c.replace(id, v) {
				respondFail(w, http.StatusNotFound, "Not found")
				return
			}
			v, _ = c.find(id)
			respondOK(w, envelope{Success: true, Message: "Updated", Data: v})
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if !c.remove(chi.URLParam(r, "id")) {
				respondFail(w, http.StatusNotFound, "Not found")
				return
			}
			respondOK(w, envelope{Success: true, Message: "Deleted"})
		})
	})
}
