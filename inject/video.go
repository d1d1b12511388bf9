package inject

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// VideoID extracts the host-specific video identifier from a watch URL.
// Recognised shapes: ?v=ID, ?id=ID, /embed/ID, /shorts/ID, /live/ID,
// youtu.be/ID and vimeo.com/DIGITS. vimeo reports whether the id is a
// vimeo id.
func VideoID(raw string) (id string, vimeo bool, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	valid := func(s string) (string, bool, bool) {
		if videoIDPattern.MatchString(s) {
			return s, vimeo, true
		}
		return "", false, false
	}

	if host == "vimeo.com" || host == "player.vimeo.com" {
		vimeo = true
		for i := len(segs) - 1; i >= 0; i-- {
			if isDigits(segs[i]) {
				return valid(segs[i])
			}
		}
		return "", false, false
	}
	if host == "youtu.be" && len(segs) > 0 {
		return valid(segs[0])
	}
	q := u.Query()
	for _, key := range []string{"v", "id"} {
		if v := q.Get(key); v != "" {
			return valid(v)
		}
	}
	for i := 0; i+1 < len(segs); i++ {
		switch segs[i] {
		case "embed", "shorts", "live", "video":
			return valid(segs[i+1])
		}
	}
	return "", false, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EmbedHTML derives the player iframe for a watch URL. It is a pure function
// of the URL and embed base, so re-injecting a URL reproduces the attribute
// byte for byte.
func EmbedHTML(rawURL, embedBase string) (string, bool) {
	id, vimeo, ok := VideoID(rawURL)
	if !ok {
		return "", false
	}
	src := strings.TrimRight(embedBase, "/") + "/" + url.PathEscape(id)
	if vimeo {
		src = "https://player.vimeo.com/video/" + id
	}
	return `<iframe src="` + src + `" title="Video player" width="560" height="315" frameborder="0"` +
		` allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture; web-share"` +
		` referrerpolicy="strict-origin-when-cross-origin" allowfullscreen loading="lazy"></iframe>`, true
}

// normalizeEmbed trims supplied embed markup. Applying it twice is a no-op.
func normalizeEmbed(markup string) string {
	return strings.TrimSpace(markup)
}
