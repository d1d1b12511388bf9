// CLAUDE:SUMMARY Publish writer: re-verifies the final HTML, refuses on any issue, writes entry files atomically via staging dir swap, records every attempt in the ledger.
// Package publish persists finished entry pages. The writer is the last
// gate: it verifies the HTML again and writes nothing when any check fails.
//
// Layout under the output root:
//
//	<root>/<slug>/index.html
//	<root>/<slug>/entry.json
//	<root>/<slug>/description.txt
//	<root>/<slug>/manifest.json
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/horosafe"
	"github.com/hazyhaar/entrypage/idgen"
	"github.com/hazyhaar/entrypage/internal/store"
	"github.com/hazyhaar/entrypage/manifest"
	"github.com/hazyhaar/entrypage/verify"
)

// FileIndex is the page file name inside an entry directory.
const FileIndex = "index.html"

// ErrRefused is wrapped by every *RefusedError.
var ErrRefused = errors.New("publish: refused")

// RefusedError reports a page that failed verification. No file was written.
type RefusedError struct {
	Slug   string
	Issues []verify.Issue
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("publish: refused %s: %s", e.Slug, verify.Result{Issues: e.Issues}.Error())
}

func (e *RefusedError) Unwrap() error { return ErrRefused }

// Artifacts is everything persisted for one entry.
type Artifacts struct {
	HTML     string
	Entry    *entry.Data
	Manifest manifest.Manifest
	// DescriptionText defaults to Entry.PlainDescription().
	DescriptionText string
}

// Writer writes verified entries under a root directory.
type Writer struct {
	root     string
	contract contract.Contract
	ledger   *store.Store
	ids      idgen.Generator
	logger   *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithContract sets the contract the final HTML is verified against.
func WithContract(c contract.Contract) Option { return func(w *Writer) { w.contract = c } }

// WithLedger records every attempt in s.
func WithLedger(s *store.Store) Option { return func(w *Writer) { w.ledger = s } }

// WithIDs sets the attempt ID generator. Default: idgen.Publish.
func WithIDs(gen idgen.Generator) Option { return func(w *Writer) { w.ids = gen } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(w *Writer) { w.logger = l } }

// New returns a Writer rooted at root.
func New(root string, opts ...Option) *Writer {
	w := &Writer{
		root:     root,
		contract: contract.Table,
		ids:      idgen.Publish,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Root returns the output root directory.
func (w *Writer) Root() string { return w.root }

// Write verifies a.HTML and, if it passes, replaces <root>/<slug>/ with the
// four entry files. It returns the written paths in a fixed order. A page
// failing verification yields a *RefusedError and leaves the previous
// output untouched.
func (w *Writer) Write(ctx context.Context, a Artifacts) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.Entry == nil {
		return nil, errors.New("publish: artifacts carry no entry")
	}
	slug := a.Entry.Slug
	if err := horosafe.ValidateIdentifier(slug); err != nil {
		return nil, fmt.Errorf("publish: slug: %w", err)
	}

	attempt := &store.Attempt{ID: w.ids(), Slug: slug, HTMLSHA256: digest(a.HTML)}
	log := w.logger.With("slug", slug, "attempt", attempt.ID)

	if res := verify.Verify(a.HTML, verify.WithContract(w.contract)); !res.OK {
		attempt.Status = store.StatusRefused
		for _, is := range res.Issues {
			attempt.Issues = append(attempt.Issues, is.String())
		}
		w.record(ctx, log, attempt)
		log.Warn("publish: refused", "issues", len(res.Issues))
		return nil, &RefusedError{Slug: slug, Issues: res.Issues}
	}

	files, err := w.render(a)
	if err != nil {
		attempt.Status, attempt.Error = store.StatusFailed, err.Error()
		w.record(ctx, log, attempt)
		return nil, err
	}
	paths, err := w.swap(slug, files)
	if err != nil {
		attempt.Status, attempt.Error = store.StatusFailed, err.Error()
		w.record(ctx, log, attempt)
		return nil, err
	}

	attempt.Status = store.StatusAccepted
	for _, p := range paths {
		rel, _ := filepath.Rel(w.root, p)
		attempt.Files = append(attempt.Files, filepath.ToSlash(rel))
	}
	w.record(ctx, log, attempt)
	log.Info("publish: written", "files", len(paths))
	return paths, nil
}

// History returns the ledger attempts for slug, newest first.
func (w *Writer) History(ctx context.Context, slug string, limit int) ([]store.Attempt, error) {
	if w.ledger == nil {
		return nil, errors.New("publish: no ledger configured")
	}
	return w.ledger.History(ctx, slug, limit)
}

type file struct {
	name string
	data []byte
}

func (w *Writer) render(a Artifacts) ([]file, error) {
	rec, err := entry.EncodeRecord(a.Entry)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	m := a.Manifest
	if m == nil {
		m = manifest.Manifest{}
	}
	man, err := m.Encode()
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	desc := a.DescriptionText
	if desc == "" {
		if desc, err = a.Entry.PlainDescription(); err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
	}
	return []file{
		{FileIndex, []byte(a.HTML)},
		{entry.FileEntry, rec},
		{entry.FileDescription, []byte(desc)},
		{entry.FileManifest, append(man, '\n')},
	}, nil
}

// swap writes files into a staging directory next to the target, then
// renames it into place. The previous directory is moved aside first and
// restored if the final rename fails.
func (w *Writer) swap(slug string, files []file) ([]string, error) {
	final, err := horosafe.SafePath(w.root, slug)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return nil, fmt.Errorf("publish: mkdir root: %w", err)
	}

	staging, err := os.MkdirTemp(w.root, "."+slug+".staging-*")
	if err != nil {
		return nil, fmt.Errorf("publish: staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, fmt.Errorf("publish: chmod staging: %w", err)
	}
	for _, f := range files {
		if err := writeSynced(filepath.Join(staging, f.name), f.data); err != nil {
			return nil, fmt.Errorf("publish: write %s: %w", f.name, err)
		}
	}

	var backup string
	if _, err := os.Stat(final); err == nil {
		backup = filepath.Join(w.root, "."+slug+".old-"+filepath.Base(staging))
		if err := os.Rename(final, backup); err != nil {
			return nil, fmt.Errorf("publish: move previous output aside: %w", err)
		}
	}
	if err := os.Rename(staging, final); err != nil {
		if backup != "" {
			os.Rename(backup, final)
		}
		return nil, fmt.Errorf("publish: rename staging: %w", err)
	}
	committed = true
	if backup != "" {
		os.RemoveAll(backup)
	}
	syncDir(w.root)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(final, f.name)
	}
	return paths, nil
}

func (w *Writer) record(ctx context.Context, log *slog.Logger, a *store.Attempt) {
	if w.ledger == nil {
		return
	}
	// The ledger is an audit trail; a failed insert never undoes a write.
	if err := w.ledger.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		log.Error("publish: ledger record failed", "status", a.Status, "error", err)
	}
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
