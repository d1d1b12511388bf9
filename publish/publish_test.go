package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/dbopen"
	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/idgen"
	"github.com/hazyhaar/entrypage/internal/store"
	"github.com/hazyhaar/entrypage/manifest"
	"github.com/hazyhaar/entrypage/verify"
)

const origin = "https://catalog.hazyhaar.net"

const validPage = `<!DOCTYPE html><html><head><title>Song</title>` +
	`<link rel="stylesheet" href="` + origin + `/assets/css/theme.css">` +
	`<link rel="stylesheet" href="` + origin + `/assets/css/entry-overrides.css">` +
	`<script src="` + origin + `/assets/js/auth/client.js" defer></script>` +
	`<script src="` + origin + `/assets/js/auth/session.js" defer></script>` +
	`<script src="` + origin + `/assets/js/auth/gate.js" defer></script>` +
	`<script src="` + origin + `/assets/js/sidebar.js" defer></script>` +
	`</head><body><div class="video-embed"></div>` +
	`<script id="sidebar-config" type="application/json">{"buckets":["A"]}</script>` +
	`<script id="sidebar-page-config" type="application/json">{"slug":"song","title":"Song","buckets":["A"]}</script>` +
	`<script id="sidebar-page-bridge">` + contract.BridgeStatement + `</script>` +
	`<script id="download-manifest" type="application/json">{"audio":{"A":{"flac":""}}}</script>` +
	`</body></html>`

func testEntry() *entry.Data {
	return &entry.Data{
		Title:           "Song",
		Slug:            "song",
		Video:           entry.Video{Mode: entry.VideoURL, DataURL: "https://host/watch?id=ABC123"},
		DescriptionText: "First line.\n\nSecond paragraph.",
		SidebarConfig:   entry.SidebarConfig{Buckets: []manifest.Bucket{"A"}},
	}
}

func testManifest() manifest.Manifest {
	m := manifest.Manifest{}
	m.Set(manifest.KindAudio, "A", "flac", "")
	return m
}

func testWriter(t *testing.T) (*Writer, *store.Store) {
	t.Helper()
	s := &store.Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))}
	w := New(filepath.Join(t.TempDir(), "out"), WithLedger(s), WithIDs(idgen.Sequence("pub_")))
	return w, s
}

func TestWrite_Accepted(t *testing.T) {
	w, _ := testWriter(t)
	ctx := context.Background()

	paths, err := w.Write(ctx, Artifacts{HTML: validPage, Entry: testEntry(), Manifest: testManifest()})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	dir := filepath.Join(w.Root(), "song")
	want := []string{
		filepath.Join(dir, FileIndex),
		filepath.Join(dir, entry.FileEntry),
		filepath.Join(dir, entry.FileDescription),
		filepath.Join(dir, entry.FileManifest),
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}

	index, _ := os.ReadFile(want[0])
	if string(index) != validPage {
		t.Error("index.html must hold the verified HTML byte for byte")
	}
	desc, _ := os.ReadFile(want[2])
	if string(desc) != testEntry().DescriptionText {
		t.Errorf("description.txt: got %q", desc)
	}
	man, err := os.ReadFile(want[3])
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manifest.ValidateFile(man); err != nil {
		t.Errorf("manifest.json must validate: %v", err)
	}
	rec, err := entry.Load(dir)
	if err != nil {
		t.Fatalf("written record must load back: %v", err)
	}
	if rec.Title != "Song" || rec.DescriptionText != testEntry().DescriptionText {
		t.Errorf("reloaded record: got %+v", rec)
	}

	hist, err := w.History(ctx, "song", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Status != store.StatusAccepted || len(hist[0].Files) != 4 {
		t.Fatalf("ledger: got %+v", hist)
	}
	if hist[0].Files[0] != "song/index.html" {
		t.Errorf("ledger file path: got %q", hist[0].Files[0])
	}
}

func TestWrite_RefusedLeavesNoFiles(t *testing.T) {
	w, _ := testWriter(t)
	ctx := context.Background()

	broken := strings.Replace(validPage, `<script src="`+origin+`/assets/js/auth/gate.js" defer></script>`, "", 1)
	paths, err := w.Write(ctx, Artifacts{HTML: broken, Entry: testEntry(), Manifest: testManifest()})
	if err == nil {
		t.Fatal("expected refusal")
	}
	var refused *RefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("got %T %v, want *RefusedError", err, err)
	}
	if !errors.Is(err, ErrRefused) {
		t.Error("RefusedError must unwrap to ErrRefused")
	}
	if paths != nil {
		t.Errorf("paths: got %v, want nil", paths)
	}
	want := []verify.Issue{{Type: verify.Missing, Token: "/assets/js/auth/gate.js"}}
	if diff := cmp.Diff(want, refused.Issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(w.Root(), "song")); !os.IsNotExist(err) {
		t.Errorf("refused write must not create the entry directory, stat err = %v", err)
	}
	entries, _ := os.ReadDir(w.Root())
	if len(entries) != 0 {
		t.Errorf("output root must stay empty, got %d entries", len(entries))
	}

	hist, err := w.History(ctx, "song", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Status != store.StatusRefused || len(hist[0].Issues) != 1 {
		t.Errorf("ledger: got %+v", hist)
	}
}

func TestWrite_RefusalKeepsPreviousOutput(t *testing.T) {
	w, _ := testWriter(t)
	ctx := context.Background()

	if _, err := w.Write(ctx, Artifacts{HTML: validPage, Entry: testEntry(), Manifest: testManifest()}); err != nil {
		t.Fatal(err)
	}
	broken := strings.Replace(validPage, `id="download-manifest"`, `id="other"`, 1)
	if _, err := w.Write(ctx, Artifacts{HTML: broken, Entry: testEntry(), Manifest: testManifest()}); err == nil {
		t.Fatal("expected refusal")
	}
	index, err := os.ReadFile(filepath.Join(w.Root(), "song", FileIndex))
	if err != nil || string(index) != validPage {
		t.Errorf("previous output must survive a refused write, err = %v", err)
	}
}

func TestWrite_ReplacesPreviousOutput(t *testing.T) {
	w, _ := testWriter(t)
	ctx := context.Background()

	if _, err := w.Write(ctx, Artifacts{HTML: validPage, Entry: testEntry(), Manifest: testManifest()}); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(w.Root(), "song", "stale.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	updated := strings.Replace(validPage, "<title>Song</title>", "<title>Song (live)</title>", 1)
	if _, err := w.Write(ctx, Artifacts{HTML: updated, Entry: testEntry(), Manifest: testManifest()}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("the entry directory must be replaced as a whole")
	}
	entries, _ := os.ReadDir(w.Root())
	if len(entries) != 1 {
		t.Errorf("staging or backup directories left behind: %d entries in root", len(entries))
	}
}

func TestWrite_BadSlug(t *testing.T) {
	w, _ := testWriter(t)
	e := testEntry()
	e.Slug = "../escape"
	if _, err := w.Write(context.Background(), Artifacts{HTML: validPage, Entry: e}); err == nil {
		t.Fatal("expected slug rejection")
	}
}

func TestWrite_CanceledContext(t *testing.T) {
	w, _ := testWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Write(ctx, Artifacts{HTML: validPage, Entry: testEntry()}); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestWrite_RefusesMissingManifest(t *testing.T) {
	w, _ := testWriter(t)
	noManifest := strings.Replace(validPage,
		`<script id="download-manifest" type="application/json">{"audio":{"A":{"flac":""}}}</script>`, "", 1)

	_, err := w.Write(context.Background(), Artifacts{HTML: noManifest, Entry: testEntry(), Manifest: testManifest()})
	var refused *RefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("got %v, want *RefusedError", err)
	}
	want := []verify.Issue{{Type: verify.Missing, Token: contract.IDManifest}}
	if diff := cmp.Diff(want, refused.Issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), "missing download-manifest") {
		t.Errorf("error must surface the issue list, got %q", err.Error())
	}
	if entries, _ := os.ReadDir(w.Root()); len(entries) != 0 {
		t.Errorf("no output may be produced, got %d entries", len(entries))
	}
}
