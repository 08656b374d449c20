package homeassistant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStateNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Entity not found."}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, testToken, time.Second)
	_, err := c.State(context.Background(), "light.gone")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("want ErrEntityNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "light.gone") {
		t.Fatalf("entity id missing from error: %v", err)
	}
}

func TestErrorIncludesStatusAndBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, testToken, time.Second)
	_, err := c.States(context.Background())
	if err == nil || !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestBaseURLTrimmed(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		mu.Unlock()
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", testToken, time.Second)
	if _, err := c.States(context.Background()); err != nil {
		t.Fatalf("states: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/api/states" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestEntityStateHelpers(t *testing.T) {
	t.Parallel()
	s := EntityState{
		EntityID: "sensor.kitchen_temp",
		State:    "21.5",
		Attributes: map[string]any{
			"friendly_name":       "Kitchen Temperature",
			"unit_of_measurement": "°C",
		},
	}
	if s.FriendlyName() != "Kitchen Temperature" {
		t.Errorf("friendly name: %q", s.FriendlyName())
	}
	if s.Unit() != "°C" {
		t.Errorf("unit: %q", s.Unit())
	}
	if s.Domain() != "sensor" {
		t.Errorf("domain: %q", s.Domain())
	}

	bare := EntityState{EntityID: "light.hall"}
	if bare.FriendlyName() != "light.hall" {
		t.Errorf("friendly name fallback: %q", bare.FriendlyName())
	}
	if bare.Unit() != "" {
		t.Errorf("unit on bare state: %q", bare.Unit())
	}
}
