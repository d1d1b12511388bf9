// CLAUDE:SUMMARY Pipeline engine: inject, canonicalize, sanitize and verify one entry, publish it, and run batches of entries.
// Package pipeline turns a template and entry records into published entry
// pages.
//
// Stages, in order:
//   - template validation (pagetmpl)
//   - content injection (inject)
//   - origin canonicalization (canon)
//   - sanitization (sanitize)
//   - verification (verify)
//   - persistence (publish), which verifies again and refuses on any issue
//
// Usage:
//
//	p, err := pipeline.New(cfg, pipeline.WithWriter(w))
//	rep, err := p.Run(ctx, tmpl, data)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/entrypage/canon"
	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/htmldoc"
	"github.com/hazyhaar/entrypage/idgen"
	"github.com/hazyhaar/entrypage/inject"
	"github.com/hazyhaar/entrypage/manifest"
	"github.com/hazyhaar/entrypage/pagetmpl"
	"github.com/hazyhaar/entrypage/publish"
	"github.com/hazyhaar/entrypage/sanitize"
	"github.com/hazyhaar/entrypage/verify"
)

// ErrManifestCells is returned in strict mode when a manifest cell looks
// like a URL or path rather than a file identifier.
var ErrManifestCells = errors.New("pipeline: manifest cells are not identifiers")

// ErrNoWriter is returned by Run when the pipeline has no publish writer.
var ErrNoWriter = errors.New("pipeline: no publish writer configured")

// Pipeline is the entry page build engine. It holds no per-run state and is
// safe for concurrent use.
type Pipeline struct {
	cfg      Config
	contract contract.Contract
	logger   *slog.Logger
	writer   *publish.Writer
	runIDs   idgen.Generator
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWriter enables Run and RunBatch to persist pages.
func WithWriter(w *publish.Writer) Option { return func(p *Pipeline) { p.writer = w } }

// WithRunIDs sets the run ID generator. Default: idgen.Run.
func WithRunIDs(gen idgen.Generator) Option { return func(p *Pipeline) { p.runIDs = gen } }

// New creates a Pipeline with the given configuration.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	cfg.defaults()
	ct, err := cfg.Contract()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      cfg,
		contract: ct,
		logger:   cfg.Logger,
		runIDs:   idgen.Run,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Contract returns the contract this pipeline enforces.
func (p *Pipeline) Contract() contract.Contract { return p.contract }

// Writer returns the publish writer, or nil.
func (p *Pipeline) Writer() *publish.Writer { return p.writer }

// Report describes one build.
type Report struct {
	RunID      string              `json:"run_id"`
	Slug       string              `json:"slug"`
	Strategy   inject.Strategy     `json:"strategy"`
	Rewritten  int                 `json:"rewritten_urls"`
	Advisories []manifest.Advisory `json:"advisories,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
	Verify     verify.Result       `json:"verify"`
	HTML       string              `json:"html"`
	Files      []string            `json:"files,omitempty"`

	// Manifest is the normalized manifest embedded in HTML.
	Manifest manifest.Manifest `json:"-"`
}

// Build runs every stage except persistence. A page failing verification
// is not an error: the issues are in Report.Verify.
func (p *Pipeline) Build(tmpl *pagetmpl.Template, data *entry.Data) (*Report, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	rep := &Report{RunID: p.runIDs(), Slug: data.Slug}
	log := p.logger.With("run", rep.RunID, "slug", data.Slug)

	rep.Advisories = manifest.Check(data.Manifest)
	for _, a := range rep.Advisories {
		log.Warn("pipeline: manifest advisory", "cell", a.String())
	}
	if p.cfg.Manifest.StrictIDs && len(rep.Advisories) > 0 {
		cells := make([]string, len(rep.Advisories))
		for i, a := range rep.Advisories {
			cells[i] = a.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrManifestCells, strings.Join(cells, "; "))
	}

	injected, err := inject.Inject(tmpl, data, inject.WithContract(p.contract))
	if err != nil {
		return nil, err
	}
	rep.Strategy = injected.Strategy
	rep.Warnings = injected.Warnings
	for _, w := range injected.Warnings {
		log.Warn("pipeline: injection degraded", "detail", w)
	}
	rep.Manifest = data.Manifest.Normalize(tmpl.FormatKeys, data.SelectedBuckets())
	log.Debug("pipeline: injected",
		"video", injected.Strategy.Video,
		"description", injected.Strategy.Description,
		"sidebar", injected.Strategy.Sidebar,
		"manifest", injected.Strategy.Manifest,
	)

	doc, err := htmldoc.Parse(injected.HTML)
	if err != nil {
		return nil, err
	}
	rep.Rewritten = canon.CanonicalizeDoc(doc, p.contract.Origin, p.contract)
	sanitize.Doc(doc, p.contract)
	rep.Verify = verify.Doc(doc, p.contract)
	if rep.HTML, err = htmldoc.Render(doc); err != nil {
		return nil, err
	}

	if rep.Verify.OK {
		log.Info("pipeline: built", "rewritten", rep.Rewritten)
	} else {
		log.Warn("pipeline: verification failed", "issues", rep.Verify.Error())
	}
	return rep, nil
}

// Run builds data and persists it. A page failing verification is refused
// by the writer and returned as *publish.RefusedError alongside the report.
func (p *Pipeline) Run(ctx context.Context, tmpl *pagetmpl.Template, data *entry.Data) (*Report, error) {
	if p.writer == nil {
		return nil, ErrNoWriter
	}
	rep, err := p.Build(tmpl, data)
	if err != nil {
		return nil, err
	}
	files, err := p.writer.Write(ctx, publish.Artifacts{
		HTML:     rep.HTML,
		Entry:    data,
		Manifest: rep.Manifest,
	})
	if err != nil {
		return rep, err
	}
	rep.Files = files
	return rep, nil
}

// Job is one entry of a batch.
type Job struct {
	// Dir is an entry record directory, used when Data is nil.
	Dir  string
	Data *entry.Data
}

// Outcome is the result of one batch job.
type Outcome struct {
	Job    Job
	Report *Report
	Err    error
}

// RunBatch runs jobs in order. Jobs are independent: a failed entry does not
// stop the batch. Cancellation is checked between entries only; on
// cancellation the outcomes so far are returned with ctx.Err().
func (p *Pipeline) RunBatch(ctx context.Context, tmpl *pagetmpl.Template, jobs []Job) ([]Outcome, error) {
	out := make([]Outcome, 0, len(jobs))
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		o := Outcome{Job: job}
		data := job.Data
		if data == nil {
			data, o.Err = entry.Load(job.Dir)
		}
		if o.Err == nil {
			o.Report, o.Err = p.Run(ctx, tmpl, data)
		}
		if o.Err != nil {
			p.logger.Error("pipeline: entry failed", "dir", job.Dir, "error", o.Err)
		}
		out = append(out, o)
	}
	return out, nil
}
