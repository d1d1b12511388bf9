package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/horosafe"
	"github.com/hazyhaar/entrypage/inject"
	"github.com/hazyhaar/entrypage/kit"
	"github.com/hazyhaar/entrypage/locate"
	"github.com/hazyhaar/entrypage/manifest"
	"github.com/hazyhaar/entrypage/publish"
	"github.com/hazyhaar/entrypage/shield"
)

// Handler returns the HTTP API:
//
//	GET  /healthz
//	POST /v1/templates/validate
//	POST /v1/canonicalize
//	POST /v1/sanitize
//	POST /v1/verify
//	POST /v1/build            (bearer token)
//	GET  /v1/entries/{slug}/history
func (p *Pipeline) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(shield.StackConfig{
		MaxBody:   p.cfg.HTTP.MaxBody,
		RateLimit: p.cfg.HTTP.RateLimit,
		Logger:    p.logger,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/templates/validate", p.serve("validate_template", p.validateTemplateEndpoint(), decodeBody[HTMLRequest]))
		r.Post("/canonicalize", p.serve("canonicalize", p.canonicalizeEndpoint(), decodeBody[HTMLRequest]))
		r.Post("/sanitize", p.serve("sanitize", p.sanitizeEndpoint(), decodeBody[HTMLRequest]))
		r.Post("/verify", p.serve("verify", p.verifyEndpoint(), decodeBody[HTMLRequest]))

		r.With(shield.BearerToken(p.cfg.HTTP.TokenHash)).
			Post("/build", p.serve("build", p.buildEndpoint(), decodeBody[BuildRequest]))

		r.Get("/entries/{slug}/history", p.serve("history", p.historyEndpoint(), func(r *http.Request) (any, error) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			return &HistoryRequest{Slug: chi.URLParam(r, "slug"), Limit: limit}, nil
		}))
	})
	return r
}

func (p *Pipeline) serve(name string, ep kit.Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	ep = p.wrap(name, ep)
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			writeError(w, decodeStatus(err), err)
			return
		}
		resp, err := ep(r.Context(), req)
		if err != nil {
			var refused *publish.RefusedError
			if errors.As(err, &refused) {
				writeJSON(w, http.StatusConflict, map[string]any{
					"error":  err.Error(),
					"issues": refused.Issues,
				})
				return
			}
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeBody[T any](r *http.Request) (any, error) {
	v := new(T)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// errorStatus maps pipeline failures to HTTP status codes.
func errorStatus(err error) int {
	var (
		tmplErr  *inject.TemplateError
		shapeErr *inject.ShapeError
	)
	switch {
	case errors.Is(err, ErrNoWriter):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadRequest), errors.Is(err, horosafe.ErrPathTraversal):
		return http.StatusBadRequest
	case errors.As(err, &tmplErr), errors.As(err, &shapeErr),
		errors.Is(err, inject.ErrDescriptionAnchors), errors.Is(err, inject.ErrEmbedMissing),
		errors.Is(err, locate.ErrNotFound), errors.Is(err, entry.ErrInvalid),
		errors.Is(err, ErrManifestCells), errors.Is(err, manifest.ErrUnknownBucket),
		errors.Is(err, manifest.ErrUnknownKind):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
