package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipmill/internal/config"
	"clipmill/internal/services"
	"clipmill/internal/services/source"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>top scoring links : tifu</title>
  <entry>
    <author><name>/u/toaster</name></author>
    <title>TIFU by burning toast</title>
    <content type="html">&lt;div&gt;&lt;p&gt;It was early.&lt;/p&gt;&lt;p&gt;The alarm went off.&lt;/p&gt;&lt;/div&gt;</content>
  </entry>
  <entry>
    <title>No author here</title>
    <content type="html">&lt;p&gt;orphan&lt;/p&gt;</content>
  </entry>
</feed>`

const listingPage = `<html><body>
<shreddit-post author="ignored">
  <a id="post-title-t3_abc">AITA for eating the cake</a>
  <span slot="authorName">cakefan</span>
  <div id="t3_abc-post-rtjson-content"><p>I ate it.</p></div>
</shreddit-post>
<shreddit-post>
  <a id="post-title-t3_def">Missing body</a>
  <span slot="authorName">someone</span>
</shreddit-post>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/r/tifu/top.rss", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "clipmill-test" {
			http.Error(w, "missing agent", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFeed))
	})
	mux.HandleFunc("/r/amitheasshole/top", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/r/broken/top.rss", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(server *httptest.Server) *source.Client {
	cfg := config.Sources{
		BaseURL:   server.URL,
		UserAgent: "clipmill-test",
		Timeout:   5,
		Collections: map[string]string{
			"tifu":          config.SourceKindRSS,
			"amitheasshole": config.SourceKindWeb,
			"broken":        config.SourceKindRSS,
		},
	}
	return source.NewClient(cfg, nil, source.WithHTTPClient(server.Client()))
}

func TestFetchRSSExtractsParagraphs(t *testing.T) {
	client := newClient(newServer(t))

	batch, err := client.Fetch(context.Background(), "tifu")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if batch.Collection != "tifu" {
		t.Fatalf("collection = %q", batch.Collection)
	}
	if len(batch.Items) != 1 || batch.Skipped != 1 {
		t.Fatalf("expected 1 item and 1 skip, got %d items %d skipped", len(batch.Items), batch.Skipped)
	}
	got := batch.Items[0]
	want := source.RawItem{Title: "TIFU by burning toast", Author: "/u/toaster", Body: "It was early. The alarm went off."}
	if got != want {
		t.Fatalf("item = %#v, want %#v", got, want)
	}
}

func TestFetchWebScrapesPosts(t *testing.T) {
	client := newClient(newServer(t))

	batch, err := client.Fetch(context.Background(), "amitheasshole")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(batch.Items) != 1 || batch.Skipped != 1 {
		t.Fatalf("expected 1 item and 1 skip, got %#v", batch)
	}
	got := batch.Items[0]
	if got.Title != "AITA for eating the cake" || got.Author != "cakefan" || got.Body != "I ate it." {
		t.Fatalf("unexpected item %#v", got)
	}
}

func TestFetchErrors(t *testing.T) {
	client := newClient(newServer(t))

	_, err := client.Fetch(context.Background(), "unknown")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown collection, got %v", err)
	}

	_, err = client.Fetch(context.Background(), "broken")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for 503, got %v", err)
	}
}
