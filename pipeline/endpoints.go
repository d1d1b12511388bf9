package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/entrypage/canon"
	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/horosafe"
	"github.com/hazyhaar/entrypage/htmldoc"
	"github.com/hazyhaar/entrypage/kit"
	"github.com/hazyhaar/entrypage/manifest"
	"github.com/hazyhaar/entrypage/pagetmpl"
	"github.com/hazyhaar/entrypage/sanitize"
	"github.com/hazyhaar/entrypage/verify"
)

// Requests and responses shared by the HTTP API and the MCP tools.

type HTMLRequest struct {
	HTML string `json:"html"`
}

type HTMLResponse struct {
	HTML string `json:"html"`
}

type TemplateReport struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing"`
}

type BuildRequest struct {
	Template string          `json:"template"`
	Entry    json.RawMessage `json:"entry"`
	// Manifest optionally replaces entry.manifest, in manifest.json form.
	Manifest json.RawMessage `json:"manifest,omitempty"`
	Publish  bool            `json:"publish"`
}

type HistoryRequest struct {
	Slug  string `json:"slug"`
	Limit int    `json:"limit"`
}

func (p *Pipeline) validateTemplateEndpoint() kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*HTMLRequest)
		doc, err := htmldoc.Parse(r.HTML)
		if err != nil {
			return nil, err
		}
		missing := pagetmpl.ValidateDoc(doc, p.contract)
		if missing == nil {
			missing = []string{}
		}
		return &TemplateReport{OK: len(missing) == 0, Missing: missing}, nil
	}
}

func (p *Pipeline) canonicalizeEndpoint() kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*HTMLRequest)
		out, err := canon.Canonicalize(r.HTML, p.contract.Origin)
		if err != nil {
			return nil, err
		}
		return &HTMLResponse{HTML: out}, nil
	}
}

func (p *Pipeline) sanitizeEndpoint() kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*HTMLRequest)
		return &HTMLResponse{HTML: sanitize.Sanitize(r.HTML, sanitize.WithContract(p.contract))}, nil
	}
}

func (p *Pipeline) verifyEndpoint() kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*HTMLRequest)
		res := verify.Verify(r.HTML, verify.WithContract(p.contract))
		if res.Issues == nil {
			res.Issues = []verify.Issue{}
		}
		return res, nil
	}
}

func (p *Pipeline) buildEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r := req.(*BuildRequest)
		tmpl, data, err := decodeBuild(r)
		if err != nil {
			return nil, err
		}
		if r.Publish {
			return p.Run(ctx, tmpl, data)
		}
		return p.Build(tmpl, data)
	}
}

func (p *Pipeline) historyEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r := req.(*HistoryRequest)
		if p.writer == nil {
			return nil, ErrNoWriter
		}
		if err := horosafe.ValidateIdentifier(r.Slug); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		attempts, err := p.writer.History(ctx, r.Slug, r.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"slug": r.Slug, "attempts": attempts}, nil
	}
}

// ErrBadRequest wraps malformed build input.
var ErrBadRequest = errors.New("pipeline: bad request")

func decodeBuild(r *BuildRequest) (*pagetmpl.Template, *entry.Data, error) {
	if r.Template == "" {
		return nil, nil, fmt.Errorf("%w: template is required", ErrBadRequest)
	}
	if len(r.Entry) == 0 {
		return nil, nil, fmt.Errorf("%w: entry is required", ErrBadRequest)
	}
	tmpl, err := pagetmpl.New(r.Template)
	if err != nil {
		return nil, nil, err
	}
	data, err := entry.Decode(r.Entry)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if len(r.Manifest) > 0 {
		m, err := manifest.ValidateFile(r.Manifest)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		data.Manifest = m
	}
	if data.Manifest == nil {
		data.Manifest = manifest.Manifest{}
	}
	return tmpl, data, nil
}
