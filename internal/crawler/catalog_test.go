package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"lumenwatch/internal/logging"
)

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "<h1>ok</h1>")
	}))
	defer srv.Close()

	c := NewClient()
	body, err := c.Fetch(context.Background(), srv.URL+"/page")
	if err != nil || body != "<h1>ok</h1>" {
		t.Fatalf("Fetch = %q, %v", body, err)
	}

	if _, err := c.Fetch(context.Background(), srv.URL+"/missing"); err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("err = %v, want status 404", err)
	}
}

func TestCatalog_FetchCategoryFollowsNextLinks(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("offset") {
		case "":
			if r.URL.Query().Get("categoryId") != "troffers" {
				t.Errorf("categoryId = %q", r.URL.Query().Get("categoryId"))
			}
			fmt.Fprint(w, `{"items":[{"id":"1","model":"A","listPrice":150}],
				"links":[{"rel":"self","href":"/x"},{"rel":"next","href":"/products?offset=1"}]}`)
		case "1":
			fmt.Fprint(w, `{"items":[{"id":"2","model":"B","listPrice":"$1,200.00"}],
				"links":[{"rel":"next","href":"`+"http://"+r.Host+`/products?offset=2"}]}`)
		default:
			fmt.Fprint(w, `{"items":[{"id":"3","model":"C","listPrice":null}],"links":[]}`)
		}
	}))
	defer srv.Close()

	cat := NewCatalog(NewClient(), srv.URL+"/")
	var got []string
	err := cat.FetchCategory(context.Background(), "troffers", func(item CatalogItem) error {
		got = append(got, item.Model+"="+string(item.ListPrice))
		return nil
	})
	if err != nil {
		t.Fatalf("FetchCategory: %v", err)
	}

	want := []string{"A=150", "B=$1,200.00", "C="}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("items = %v, want %v", got, want)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestCatalog_WalkStopsOnLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[],"links":[{"rel":"next","href":"/products"}]}`)
	}))
	defer srv.Close()

	err := NewCatalog(NewClient(), srv.URL).Walk(context.Background(), srv.URL+"/products", func(CatalogItem) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "pagination loop") {
		t.Errorf("err = %v, want pagination loop", err)
	}
}

func TestCatalog_WalkHandlerErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"1"},{"id":"2"}]}`)
	}))
	defer srv.Close()

	stop := errors.New("stop")
	n := 0
	err := NewCatalog(NewClient(), srv.URL).Walk(context.Background(), srv.URL, func(CatalogItem) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("err = %v after %d items", err, n)
	}
}

func TestCatalog_CrawlBatchSkipsFailedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("productIds")
		if strings.Contains(ids, "bad") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var items []string
		for _, id := range strings.Split(ids, ",") {
			items = append(items, fmt.Sprintf(`{"id":%q,"model":%q}`, id, "M-"+id))
		}
		fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	}))
	defer srv.Close()

	cat := NewCatalog(NewClient(), srv.URL)
	cat.Logger = logging.Discard()

	var got []string
	err := cat.CrawlBatch(context.Background(), []string{"a", "b", "bad", "c", "d"}, 2, func(item CatalogItem) error {
		got = append(got, item.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("CrawlBatch: %v", err)
	}
	if strings.Join(got, ",") != "a,b,d" {
		t.Errorf("ids = %v, want a,b,d (batch bad,c skipped)", got)
	}
}
