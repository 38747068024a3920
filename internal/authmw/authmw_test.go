package authmw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/model/train", http.NoBody)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	h := BearerToken("secret-token-123")(okHandler)

	tests := []struct {
		name      string
		authz     string
		want      int
		errSubstr string
	}{
		{"valid", "Bearer secret-token-123", http.StatusOK, ""},
		{"lowercase scheme", "bearer secret-token-123", http.StatusOK, ""},
		{"trailing space", "Bearer secret-token-123 ", http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "missing"},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "missing"},
		{"no scheme", "secret-token-123", http.StatusUnauthorized, "missing"},
		{"empty credential", "Bearer ", http.StatusUnauthorized, "missing"},
		{"wrong token", "Bearer wrong", http.StatusUnauthorized, "invalid token"},
		{"prefix of token", "Bearer secret", http.StatusUnauthorized, "invalid token"},
		{"token plus suffix", "Bearer secret-token-1234", http.StatusUnauthorized, "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(h, tt.authz)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				if rec.Body.String() != "ok" {
					t.Errorf("body = %q, want ok", rec.Body.String())
				}
				return
			}
			if !strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer") {
				t.Errorf("WWW-Authenticate = %q", rec.Header().Get("WWW-Authenticate"))
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type = %q", ct)
			}
			if !strings.Contains(rec.Body.String(), tt.errSubstr) {
				t.Errorf("body = %q, want substring %q", rec.Body.String(), tt.errSubstr)
			}
		})
	}
}

func TestBearerToken_EmptyTokenPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("BearerToken(\"\") did not panic")
		}
	}()
	BearerToken("")
}

func TestBearerToken_PassesRequestThrough(t *testing.T) {
	t.Parallel()

	var gotPath string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	rec := serve(BearerToken("tok")(inner), "Bearer tok")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if gotPath != "/api/v1/model/train" {
		t.Errorf("path = %q", gotPath)
	}
}

func FuzzParseBearer(f *testing.F) {
	f.Add("Bearer abc")
	f.Add("bearer  abc ")
	f.Add("Basic abc")
	f.Add("")
	f.Add("Bearer")

	f.Fuzz(func(t *testing.T, h string) {
		cred, ok := parseBearer(h)
		if ok && cred == "" {
			t.Fatal("ok with empty credential")
		}
		if ok && cred != strings.TrimSpace(cred) {
			t.Fatalf("credential %q not trimmed", cred)
		}
	})
}
