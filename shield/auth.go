package shield

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/entrypage/kit"
)

// BearerToken rejects requests whose Authorization bearer token does not
// match the bcrypt hash. An empty hash disables the check, which is how
// local and test deployments run.
func BearerToken(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				GetLogger(r.Context()).Warn("shield: bearer token rejected")
				w.Header().Set("WWW-Authenticate", `Bearer realm="entrypage"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(kit.WithCaller(r.Context(), "token")))
		})
	}
}

// HashToken returns the bcrypt hash to put in the http.token_hash setting.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
