// Package authmw guards sift's admin routes with a static bearer token.
package authmw

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/linnemanlabs/go-core/xerrors"
)

const challenge = `Bearer realm="sift"`

// BearerToken returns middleware that admits requests whose Authorization
// header carries token under the Bearer scheme. The scheme name is matched
// case-insensitively. Both sides are hashed before the constant-time
// comparison so token length does not leak.
func BearerToken(token string) func(http.Handler) http.Handler {
	if token == "" {
		panic(xerrors.New("bearer token must not be empty"))
	}
	expected := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := parseBearer(r.Header.Get("Authorization"))
			if !ok {
				deny(w, challenge, "missing or malformed authorization header")
				return
			}

			sum := sha256.Sum256([]byte(got))
			if subtle.ConstantTimeCompare(sum[:], expected[:]) != 1 {
				deny(w, challenge+`, error="invalid_token"`, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseBearer(h string) (string, bool) {
	scheme, cred, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	cred = strings.TrimSpace(cred)
	return cred, cred != ""
}

func deny(w http.ResponseWriter, wwwAuth, msg string) {
	w.Header().Set("WWW-Authenticate", wwwAuth)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}` + "\n"))
}
