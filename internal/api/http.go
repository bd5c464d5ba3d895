package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/docstate/internal/documents"
)

const maxRequestBodySize = 1 << 20 // 1MB

// DocumentInfo is one entry of GET /documents.
type DocumentInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Flushes  uint64 `json:"flushes"`
	Failures uint64 `json:"failures"`
}

// AccountInfo is one entry of GET /accounts. Tokens are never exposed.
type AccountInfo struct {
	UserID     string `json:"user_id"`
	Homeserver string `json:"homeserver"`
	DeviceID   string `json:"device_id"`
}

type patchRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// NewHandler returns the document inspection API. When token is non-empty
// every route except /health requires it as a bearer token.
func NewHandler(set *documents.Set, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if token != "" {
			r.Use(BearerAuth(token))
		}
		r.Get("/documents", handleListDocuments(set))
		r.Get("/documents/{name}", handleGetDocument(set))
		r.Put("/documents/{name}", handlePutDocument(set))
		r.Patch("/documents/{name}", handlePatchDocument(set))
		r.Post("/flush", handleFlush(set))
		r.Get("/accounts", handleListAccounts(set))
		r.Get("/themes/{name}", handleGetTheme(set))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListDocuments(set *documents.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := set.Names()
		out := make([]DocumentInfo, 0, len(names))
		for _, name := range names {
			doc, err := set.JSON(name)
			if err != nil {
				continue
			}
			st := doc.Stats()
			out = append(out, DocumentInfo{
				Name:     name,
				Path:     doc.Path(),
				Exists:   doc.Exists(),
				Flushes:  st.Flushes,
				Failures: st.Failures,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": out})
	}
}

// handleGetDocument returns the reconciled document, or the value at the
// gjson path given in ?path=.
func handleGetDocument(set *documents.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := lookupDocument(w, set, chi.URLParam(r, "name"))
		if !ok {
			return
		}

		path := r.URL.Query().Get("path")
		if path == "" {
			writeJSON(w, http.StatusOK, doc.Read())
			return
		}
		v, found := doc.Get(path)
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "no value at %q", path)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handlePutDocument(set *documents.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := lookupDocument(w, set, chi.URLParam(r, "name"))
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil || body == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "body must be a JSON object")
			return
		}
		if err := doc.Write(body); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func handlePatchDocument(set *documents.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := lookupDocument(w, set, chi.URLParam(r, "name"))
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req patchRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Path == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "path is required")
			return
		}
		if err := doc.Set(req.Path, req.Value); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleFlush(set *documents.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := set.FlushAll(r.Context()); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "flush failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
	}
}

func handleListAccounts(set *documents.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saved := set.Accounts.List()
		out := make([]AccountInfo, 0, len(saved))
		for _, a := range saved {
			out = append(out, AccountInfo{
				UserID:     string(a.UserID),
				Homeserver: a.Homeserver,
				DeviceID:   string(a.DeviceID),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
	}
}

func handleGetTheme(set *documents.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		theme, err := set.Theme(chi.URLParam(r, "name"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		text, err := theme.Read()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading theme: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(text))
	}
}

func lookupDocument(w http.ResponseWriter, set *documents.Set, name string) (documentHandle, bool) {
	doc, err := set.JSON(name)
	if err != nil {
		if errors.Is(err, documents.ErrUnknownDocument) {
			httpError(w, http.StatusNotFound, "not_found", "unknown document %q", name)
		} else {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		}
		return nil, false
	}
	return doc, true
}

// documentHandle is the subset of configfile.JSONDocument the handlers use.
type documentHandle interface {
	Read() map[string]any
	Write(map[string]any) error
	Get(path string) (any, bool)
	Set(path string, value any) error
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
