package pipeline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/entrypage/entry"
	"github.com/hazyhaar/entrypage/shield"
	"github.com/hazyhaar/entrypage/verify"
)

func postJSON(t *testing.T, h http.Handler, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func buildBody(t *testing.T, publish bool) map[string]any {
	t.Helper()
	rec, err := entry.EncodeRecord(testData())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]any{
		"template": entryTemplate,
		"entry":    json.RawMessage(rec),
		"publish":  publish,
	}
}

func TestHTTP_Healthz(t *testing.T) {
	h := testPipeline(t, Config{}).Handler()
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s /healthz: got %d", method, rec.Code)
		}
		if rec.Header().Get("X-Trace-ID") == "" {
			t.Errorf("%s /healthz: missing X-Trace-ID", method)
		}
	}
}

func TestHTTP_Verify(t *testing.T) {
	h := testPipeline(t, Config{}).Handler()

	rec := postJSON(t, h, "/v1/verify", HTMLRequest{HTML: "<html><head></head><body></body></html>"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var res verify.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.OK || !res.Has(verify.Missing) {
		t.Errorf("empty page: got %+v", res)
	}
}

func TestHTTP_CanonicalizeAndSanitize(t *testing.T) {
	h := testPipeline(t, Config{}).Handler()

	rec := postJSON(t, h, "/v1/canonicalize", HTMLRequest{HTML: `<html><head><link rel="stylesheet" href="/assets/css/theme.css"></head><body></body></html>`})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), origin+"/assets/css/theme.css") {
		t.Errorf("canonicalize: %d %s", rec.Code, rec.Body)
	}

	rec = postJSON(t, h, "/v1/sanitize", HTMLRequest{HTML: `<html><head><script src="https://cdn.sitekit-static.com/r.js"></script></head><body></body></html>`})
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "sitekit") {
		t.Errorf("sanitize: %d %s", rec.Code, rec.Body)
	}
}

func TestHTTP_TemplateValidate(t *testing.T) {
	h := testPipeline(t, Config{}).Handler()
	rec := postJSON(t, h, "/v1/templates/validate", HTMLRequest{HTML: entryTemplate})
	var rep TemplateReport
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if !rep.OK {
		t.Errorf("got %+v", rep)
	}
}

func TestHTTP_BuildRequiresToken(t *testing.T) {
	hash, err := shield.HashToken("letmein")
	if err != nil {
		t.Fatal(err)
	}
	p := testPipeline(t, Config{HTTP: HTTPConfig{TokenHash: hash}})
	h := p.Handler()

	if rec := postJSON(t, h, "/v1/build", buildBody(t, false)); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d", rec.Code)
	}
	rec := postJSON(t, h, "/v1/build", buildBody(t, true), "Authorization", "Bearer letmein")
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: got %d, body %s", rec.Code, rec.Body)
	}
	var rep Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if !rep.Verify.OK || len(rep.Files) != 4 {
		t.Errorf("report: ok=%v files=%v", rep.Verify.OK, rep.Files)
	}

	hist := httptest.NewRecorder()
	h.ServeHTTP(hist, httptest.NewRequest(http.MethodGet, "/v1/entries/night-train/history?limit=5", nil))
	if hist.Code != http.StatusOK || !strings.Contains(hist.Body.String(), `"accepted"`) {
		t.Errorf("history: %d %s", hist.Code, hist.Body)
	}
}

func TestHTTP_ErrorStatuses(t *testing.T) {
	h := testPipeline(t, Config{HTTP: HTTPConfig{MaxBody: 512}}).Handler()

	rec := postJSON(t, h, "/v1/build", map[string]any{"template": "<html></html>"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing entry: got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", strings.NewReader(`{"html":"`+strings.Repeat("x", 1024)+`"}`))
	big := httptest.NewRecorder()
	h.ServeHTTP(big, req)
	if big.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: got %d", big.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/verify", strings.NewReader(`{not json`))
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("malformed json: got %d", bad.Code)
	}
}

func TestHTTP_BuildTemplateDefect(t *testing.T) {
	h := testPipeline(t, Config{}).Handler()
	body := buildBody(t, false)
	body["template"] = "<html><body></body></html>"
	rec := postJSON(t, h, "/v1/build", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("template defect: got %d, body %s", rec.Code, rec.Body)
	}
}
