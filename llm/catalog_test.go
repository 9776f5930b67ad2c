// ABOUTME: Tests for the live model catalog: fetch from /api/tags, lookup, and listing.
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func catalogFixture(t *testing.T) *Catalog {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(TagsResponse{Models: []TagsModel{
			{Name: "llama3", Size: 100, Digest: "abc"},
			{Name: "mistral", Size: 200},
		}})
	}))
	t.Cleanup(srv.Close)

	cat, err := FetchCatalog(context.Background(), NewClient(srv.URL))
	if err != nil {
		t.Fatalf("FetchCatalog() error = %v", err)
	}
	return cat
}

func TestCatalogGet(t *testing.T) {
	cat := catalogFixture(t)

	m := cat.Get("llama3")
	if m == nil {
		t.Fatal("Get(llama3) = nil, want model info")
	}
	if m.Size != 100 || m.Digest != "abc" {
		t.Errorf("Get(llama3) = %+v", m)
	}
	if cat.Get("missing") != nil {
		t.Error("Get(missing) != nil, want nil")
	}
}

func TestCatalogListAndNames(t *testing.T) {
	cat := catalogFixture(t)

	if got := cat.Names(); len(got) != 2 || got[0] != "llama3" || got[1] != "mistral" {
		t.Errorf("Names() = %v, want [llama3 mistral] in catalog order", got)
	}
	if got := cat.List(); len(got) != 2 {
		t.Errorf("len(List()) = %d, want 2", len(got))
	}
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var cat *Catalog
	if cat.Get("x") != nil || cat.List() != nil || cat.Names() != nil {
		t.Error("nil catalog should behave as empty")
	}
}
