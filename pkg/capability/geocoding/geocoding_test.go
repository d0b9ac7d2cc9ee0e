package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/palaver/pkg/capability"
)

func newGeocoder(t *testing.T, handler http.HandlerFunc) *Module {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m, err := New(Config{BaseURL: srv.URL, APIKey: "k", MaxResults: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestSearch(t *testing.T) {
	m := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "Seattle" || r.URL.Query().Get("api_key") != "k" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"display_name":"Seattle, King County, Washington","lat":"47.6038","lon":"-122.3300"},
			{"display_name":"Seattle Center","lat":"47.6218","lon":"-122.3508"},
			{"display_name":"Seattle Hill","lat":"47.8812","lon":"-122.1810"}
		]`))
	})

	res, err := m.Invoke(context.Background(), capability.Call{ID: "c1", Function: "search", Arguments: `{"location":"Seattle"}`})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Output)
	}
	if !strings.Contains(res.Output, "latitude 47.6038, longitude -122.3300") {
		t.Errorf("Output = %q", res.Output)
	}
	if strings.Contains(res.Output, "Seattle Hill") {
		t.Errorf("MaxResults not honored: %q", res.Output)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	m := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	res, err := m.Invoke(context.Background(), capability.Call{ID: "c1", Function: "search", Arguments: `{"location":"Atlantis"}`})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(res.Output, "No location found") {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestSearch_Validation(t *testing.T) {
	m := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	for _, args := range []string{`{"location":"  "}`, `{}`, `not json`} {
		res, err := m.Invoke(context.Background(), capability.Call{ID: "c1", Function: "search", Arguments: args})
		if err != nil {
			t.Fatalf("Invoke(%s): %v", args, err)
		}
		if !res.IsError {
			t.Errorf("Invoke(%s) should be an error result", args)
		}
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	m := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := m.Invoke(context.Background(), capability.Call{ID: "c1", Function: "search", Arguments: `{"location":"Paris"}`})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestReverse(t *testing.T) {
	m := newGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("lat") != "52.52" || r.URL.Query().Get("lon") != "13.405" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"display_name":"Mitte, Berlin, Germany","lat":"52.52","lon":"13.405"}`))
	})

	res, err := m.Invoke(context.Background(), capability.Call{ID: "c2", Function: "reverse", Arguments: `{"latitude":52.52,"longitude":13.405}`})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Output != "Mitte, Berlin, Germany" {
		t.Errorf("Output = %q", res.Output)
	}

	res, _ = m.Invoke(context.Background(), capability.Call{ID: "c3", Function: "reverse", Arguments: `{"latitude":1}`})
	if !res.IsError {
		t.Error("missing longitude should be an error result")
	}
}

func TestNew_InvalidURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "::not a url"}); err == nil {
		t.Error("expected error for invalid base url")
	}
}
