package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "github.com/wolfman30/loop-safety/internal/config"
)

func TestNewServerUsesConfiguredPort(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := newServer(&appconfig.Config{Port: "9090"}, handler)

	if srv.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %q", srv.Addr)
	}
	if srv.WriteTimeout < 30*time.Second {
		t.Fatalf("expected write timeout of at least 30s, got %s", srv.WriteTimeout)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected handler to be mounted, got %d", rr.Code)
	}
}
