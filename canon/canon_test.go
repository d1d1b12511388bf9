package canon

import (
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/entrypage/contract"
)

const origin = "https://catalog.hazyhaar.net"

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"/assets/css/theme.css", origin + "/assets/css/theme.css", true},
		{"./assets/js/sidebar.js?v=3", origin + "/assets/js/sidebar.js?v=3", true},
		{"../../img/logo.png#top", origin + "/img/logo.png#top", true},
		{"/assets//css/../css/theme.css", origin + "/assets/css/theme.css", true},
		{"/favicon.ico", origin + "/favicon.ico", true},
		{"/entries/night-train/", "", false},
		{"/u/someone/cover.png", "", false},
		{"/about", "", false},
		{"//cdn.example.com/x.js", "", false},
		{"https://elsewhere.example/assets/x.js", "", false},
		{"#top", "", false},
		{"mailto:someone@example.com", "", false},
		{"tel:+33100000000", "", false},
		{"data:image/png;base64,AAAA", "", false},
		{"javascript:void(0)", "", false},
		{"assets/relative.css", "", false},
	}
	for _, tc := range tests {
		got, ok := CanonicalizeURL(tc.in, origin, contract.Table)
		if ok != tc.ok || got != tc.want {
			t.Errorf("CanonicalizeURL(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanonicalize_Document(t *testing.T) {
	src := `<html><head><link rel="stylesheet" href="/assets/css/theme.css"><script src="js/app.js"></script></head>` +
		`<body><a href="/entries/x">x</a><img src="./images/a.png"><a href="#f">f</a></body></html>`
	out, err := Canonicalize(src, origin+"/")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`href="` + origin + `/assets/css/theme.css"`,
		`src="js/app.js"`,
		`href="/entries/x"`,
		`src="` + origin + `/images/a.png"`,
		`href="#f"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestCanonicalize_Stable(t *testing.T) {
	inputs := []string{
		`<link href="/assets/css/theme.css"><script src="../static/x.js?a=1"></script>`,
		`<a href="/users/me">me</a><img src="//cdn.example/x.png">`,
		`<p>no links</p>`,
	}
	for _, in := range inputs {
		once, err := Canonicalize(in, origin)
		if err != nil {
			t.Fatal(err)
		}
		twice, err := Canonicalize(once, origin)
		if err != nil {
			t.Fatal(err)
		}
		if once != twice {
			t.Errorf("not stable:\nonce  %s\ntwice %s", once, twice)
		}
	}
}

func TestCanonicalize_BadOrigin(t *testing.T) {
	for _, o := range []string{"", "catalog.hazyhaar.net", "ftp://x", "https://"} {
		if _, err := Canonicalize("<p></p>", o); !errors.Is(err, ErrOrigin) {
			t.Errorf("origin %q: got %v, want ErrOrigin", o, err)
		}
	}
}
