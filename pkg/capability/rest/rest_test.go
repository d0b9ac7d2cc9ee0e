package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Berlin Mitte" {
			t.Errorf("q = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Berlin"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	var out struct {
		Name string `json:"name"`
	}
	if err := c.GetJSON(context.Background(), "/search", url.Values{"q": {"Berlin Mitte"}}, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Name != "Berlin" {
		t.Errorf("Name = %q", out.Name)
	}
}

func TestGetJSON_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(srv.URL, nil).GetJSON(context.Background(), "/x", nil, &struct{}{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests || se.Body != "quota exceeded" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestGetJSON_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if err := New(srv.URL, nil).GetJSON(context.Background(), "/x", nil, &struct{}{}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRedact(t *testing.T) {
	got := redact("https://geocode.maps.co/search?api_key=secret&q=x")
	want := "https://geocode.maps.co/search?api_key=REDACTED&q=x"
	if got != want {
		t.Errorf("redact() = %q, want %q", got, want)
	}
}
