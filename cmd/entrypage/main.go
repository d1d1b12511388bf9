// CLAUDE:SUMMARY CLI entry point for entrypage: build and publish entry pages, one-shot validate/sanitize/verify, ledger history, HTTP API and MCP stdio server.
// Command entrypage builds catalog entry pages from a template and entry
// records, and serves the same operations over HTTP and MCP.
//
// Usage:
//
//	entrypage -template entry.html -entry entries/night-train      # build + publish one entry
//	entrypage -template entry.html -entries entries/               # build + publish every entry dir
//	entrypage -validate-template entry.html                        # list missing targets
//	entrypage -sanitize page.html > clean.html                     # sanitize to stdout
//	entrypage -verify page.html                                    # verify, exit 1 on issues
//	entrypage -history night-train                                 # ledger attempts
//	entrypage -config entrypage.yaml -serve                        # HTTP API
//	entrypage -mcp                                                 # MCP over stdio
//	echo -n secret | entrypage -hash-token                         # bcrypt hash for http.token_hash
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/horosafe"
	"github.com/hazyhaar/entrypage/htmldoc"
	"github.com/hazyhaar/entrypage/internal/store"
	"github.com/hazyhaar/entrypage/pagetmpl"
	"github.com/hazyhaar/entrypage/pipeline"
	"github.com/hazyhaar/entrypage/publish"
	"github.com/hazyhaar/entrypage/sanitize"
	"github.com/hazyhaar/entrypage/shield"
	"github.com/hazyhaar/entrypage/verify"
)

type options struct {
	configPath       string
	templatePath     string
	entryDir         string
	entriesDir       string
	outDir           string
	dbPath           string
	verifyPath       string
	sanitizePath     string
	validateTemplate string
	history          string
	limit            int
	serve            bool
	mcpStdio         bool
	hashToken        bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to entrypage.yaml config file")
	flag.StringVar(&o.templatePath, "template", "", "entry page template HTML")
	flag.StringVar(&o.entryDir, "entry", "", "entry record directory to build and publish")
	flag.StringVar(&o.entriesDir, "entries", "", "directory of entry record directories to build and publish")
	flag.StringVar(&o.outDir, "out", "", "output directory (overrides output_dir)")
	flag.StringVar(&o.dbPath, "db", "", "publish ledger SQLite path (overrides ledger_db)")
	flag.StringVar(&o.verifyPath, "verify", "", "verify an HTML file and exit")
	flag.StringVar(&o.sanitizePath, "sanitize", "", "sanitize an HTML file to stdout and exit")
	flag.StringVar(&o.validateTemplate, "validate-template", "", "check a template for injection targets and exit")
	flag.StringVar(&o.history, "history", "", "print ledger attempts for a slug and exit")
	flag.IntVar(&o.limit, "limit", 20, "max history rows")
	flag.BoolVar(&o.serve, "serve", false, "run the HTTP API")
	flag.BoolVar(&o.mcpStdio, "mcp", false, "run the MCP server on stdio")
	flag.BoolVar(&o.hashToken, "hash-token", false, "read a bearer token on stdin and print its bcrypt hash")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("entrypage: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := resolveConfig(o)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	// One-shot commands that need no ledger.
	switch {
	case o.hashToken:
		token, err := horosafe.LimitedReadAll(os.Stdin, 4096)
		if err != nil {
			return err
		}
		hash, err := shield.HashToken(strings.TrimSpace(string(token)))
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	case o.validateTemplate != "":
		return validateTemplate(cfg, o.validateTemplate)
	case o.sanitizePath != "":
		return sanitizeFile(cfg, o.sanitizePath)
	case o.verifyPath != "":
		return verifyFile(cfg, o.verifyPath)
	}

	ledger, err := store.Open(cfg.LedgerDB)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	defer ledger.Close()

	ct, err := cfg.Contract()
	if err != nil {
		return err
	}
	writer := publish.New(cfg.OutputDir,
		publish.WithContract(ct),
		publish.WithLedger(ledger),
		publish.WithLogger(logger),
	)
	p, err := pipeline.New(*cfg, pipeline.WithWriter(writer))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	switch {
	case o.history != "":
		attempts, err := ledger.History(ctx, o.history, o.limit)
		if err != nil {
			return err
		}
		return printJSON(attempts)
	case o.entryDir != "" || o.entriesDir != "":
		return build(ctx, p, o)
	case o.mcpStdio:
		srv := mcp.NewServer(&mcp.Implementation{Name: "entrypage", Version: "1.0.0"}, nil)
		p.RegisterMCP(srv)
		logger.Info("entrypage: mcp on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	case o.serve:
		return serve(ctx, logger, p, cfg.HTTP.Addr)
	}

	fmt.Fprintln(os.Stderr, "usage: entrypage [-config <file>] -template <file> -entry <dir> | -entries <dir> | -validate-template <file> | -sanitize <file> | -verify <file> | -history <slug> | -serve | -mcp")
	return errors.New("no command given")
}

func resolveConfig(o options) (*pipeline.Config, error) {
	cfg := &pipeline.Config{}
	if o.configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfigFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.outDir != "" {
		cfg.OutputDir = o.outDir
	}
	if o.dbPath != "" {
		cfg.LedgerDB = o.dbPath
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "public"
	}
	if cfg.LedgerDB == "" {
		cfg.LedgerDB = "entrypage.db"
	}
	return cfg, nil
}

func build(ctx context.Context, p *pipeline.Pipeline, o options) error {
	if o.templatePath == "" {
		return errors.New("-template is required to build entries")
	}
	tmpl, err := pagetmpl.Load(pagetmpl.FileSource(o.templatePath))
	if err != nil {
		return err
	}

	var jobs []pipeline.Job
	if o.entryDir != "" {
		jobs = append(jobs, pipeline.Job{Dir: o.entryDir})
	}
	if o.entriesDir != "" {
		dirs, err := entryDirs(o.entriesDir)
		if err != nil {
			return err
		}
		for _, d := range dirs {
			jobs = append(jobs, pipeline.Job{Dir: d})
		}
	}

	outcomes, err := p.RunBatch(ctx, tmpl, jobs)
	failed := 0
	for _, oc := range outcomes {
		if oc.Err != nil {
			failed++
			var refused *publish.RefusedError
			if errors.As(oc.Err, &refused) {
				for _, is := range refused.Issues {
					fmt.Fprintf(os.Stderr, "%s: %s\n", oc.Job.Dir, is)
				}
			}
			continue
		}
		fmt.Printf("%s -> %s\n", oc.Report.Slug, filepath.Dir(oc.Report.Files[0]))
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d entries failed", failed, len(jobs))
	}
	return nil
}

// entryDirs lists the subdirectories of root that hold an entry.json.
func entryDirs(root string) ([]string, error) {
	des, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, de := range des {
		if !de.IsDir() {
			continue
		}
		dir := filepath.Join(root, de.Name())
		if _, err := os.Stat(filepath.Join(dir, entry.FileEntry)); err == nil {
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

func validateTemplate(cfg *pipeline.Config, path string) error {
	ct, err := cfg.Contract()
	if err != nil {
		return err
	}
	tmpl, err := pagetmpl.Load(pagetmpl.FileSource(path))
	if err != nil {
		return err
	}
	doc, err := htmldoc.Parse(tmpl.HTML)
	if err != nil {
		return err
	}
	missing := pagetmpl.ValidateDoc(doc, ct)
	if err := printJSON(map[string]any{"ok": len(missing) == 0, "missing": missing, "format_keys": tmpl.FormatKeys}); err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("template %s is missing %d target(s)", path, len(missing))
	}
	return nil
}

func sanitizeFile(cfg *pipeline.Config, path string) error {
	ct, err := cfg.Contract()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = fmt.Print(sanitize.Sanitize(string(src), sanitize.WithContract(ct)))
	return err
}

func verifyFile(cfg *pipeline.Config, path string) error {
	ct, err := cfg.Contract()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res := verify.Verify(string(src), verify.WithContract(ct))
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.OK {
		return errors.New(res.Error())
	}
	return nil
}

func serve(ctx context.Context, logger *slog.Logger, p *pipeline.Pipeline, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("entrypage: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("entrypage: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
