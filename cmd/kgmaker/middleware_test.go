//go:build cgo

package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), tag("a"), tag("b"), tag("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if strings.Join(order, "") != "abc" {
		t.Errorf("order = %v", order)
	}
}

func TestAllowOrigins(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := allowOrigins("https://a.example, https://b.example")(ok)

	tests := []struct {
		origin string
		method string
		want   string
		status int
	}{
		{"https://b.example", "GET", "https://b.example", http.StatusOK},
		{"https://evil.example", "GET", "", http.StatusOK},
		{"https://a.example", "OPTIONS", "https://a.example", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/nodes", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("%s %s: allow origin = %q, want %q", tt.method, tt.origin, got, tt.want)
		}
		if rec.Code != tt.status {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.origin, rec.Code, tt.status)
		}
	}
}

func TestRequireKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := requireKey("secret")(ok)

	tests := []struct {
		path   string
		auth   string
		status int
	}{
		{"/nodes", "", http.StatusUnauthorized},
		{"/nodes", "Bearer wrong", http.StatusUnauthorized},
		{"/nodes", "secret", http.StatusUnauthorized},
		{"/nodes", "Bearer secret", http.StatusOK},
		{"/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Errorf("%s with %q: status = %d, want %d", tt.path, tt.auth, rec.Code, tt.status)
		}
	}
}

func TestRecoverPanics(t *testing.T) {
	h := recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/nodes", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	// A panic after streaming began leaves the sent status alone.
	h = recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"kind\":\"started\"}\n"))
		panic("boom")
	}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/extract", nil))
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}
