package keeper

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/shield"
)

// RegisterHTTP mounts the draft routes:
//
//	GET    /drafts         list entries
//	GET    /drafts/{key}   raw snapshot (404 when absent)
//	PUT    /drafts/{key}   store the request body (413 when too large)
//	DELETE /drafts/{key}   discard
//	GET    /healthz
func (k *Keeper) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/drafts", func(r chi.Router) {
		r.Get("/", k.handleList)
		r.Get("/{key}", k.handleGet)
		r.Put("/{key}", k.handlePut)
		r.Delete("/{key}", k.handleDelete)
	})
}

// Handler returns a router with the shield stack and the draft routes.
// Each mount adds more routes behind the same stack.
func (k *Keeper) Handler(mounts ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(k.logger, int64(k.config.MaxDraftBytes)+1) {
		r.Use(mw)
	}
	k.RegisterHTTP(r)
	for _, mount := range mounts {
		mount(r)
	}
	return r
}

func (k *Keeper) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := k.List(r.Context())
	if err != nil {
		k.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (k *Keeper) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := draftKey(w, r)
	if !ok {
		return
	}
	v, err := k.Raw(r.Context(), key)
	if errors.Is(err, ErrNotFound) {
		jsonErr(w, "draft not found", http.StatusNotFound)
		return
	}
	if err != nil {
		k.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, v)
}

func (k *Keeper) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := draftKey(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if shield.IsTooLarge(err) {
			jsonErr(w, "draft too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err = k.Put(r.Context(), key, string(body))
	if errors.Is(err, autosave.ErrQuotaExceeded) {
		jsonErr(w, "draft too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		k.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (k *Keeper) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := draftKey(w, r)
	if !ok {
		return
	}
	if err := k.Discard(r.Context(), key); err != nil {
		k.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// draftKey reads the {key} segment. chi matches on RawPath when the URL
// has one, and the segment is then still escaped.
func draftKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	var err error
	if r.URL.RawPath != "" {
		key, err = url.PathUnescape(key)
	}
	if err != nil || key == "" {
		jsonErr(w, "invalid draft key", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

func (k *Keeper) internalError(w http.ResponseWriter, r *http.Request, err error) {
	shield.GetLogger(r.Context()).Error("keeper: request failed", "error", err)
	jsonErr(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
