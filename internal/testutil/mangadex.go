package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// FakePage is one image served by FakeMangaDex.
type FakePage struct {
	Name        string
	Body        []byte
	Status      int
	ContentType string
	Delay       time.Duration
}

// FakeMangaDex serves at-home manifests and page images. The chapter ID
// doubles as the manifest hash.
type FakeMangaDex struct {
	*httptest.Server

	mu       sync.Mutex
	chapters map[string][]FakePage

	inFlight atomic.Int64
	peak     atomic.Int64
	images   atomic.Int64
}

func NewFakeMangaDex(t testing.TB) *FakeMangaDex {
	t.Helper()

	f := &FakeMangaDex{chapters: map[string][]FakePage{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /at-home/server/{id}", f.serveAtHome)
	mux.HandleFunc("GET /data/{hash}/{file}", f.serveImage)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	return f
}

func (f *FakeMangaDex) AddChapter(id string, pages ...FakePage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chapters[id] = pages
}

// Peak is the highest number of image requests that were served at once.
func (f *FakeMangaDex) Peak() int {
	return int(f.peak.Load())
}

func (f *FakeMangaDex) ImageRequests() int {
	return int(f.images.Load())
}

func (f *FakeMangaDex) chapter(id string) ([]FakePage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages, ok := f.chapters[id]
	return pages, ok
}

func (f *FakeMangaDex) serveAtHome(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pages, ok := f.chapter(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	names := make([]string, len(pages))
	for i, p := range pages {
		names[i] = p.Name
	}

	resp := map[string]any{
		"result":  "ok",
		"baseUrl": f.URL,
		"chapter": map[string]any{
			"hash":      id,
			"data":      names,
			"dataSaver": names,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *FakeMangaDex) serveImage(w http.ResponseWriter, r *http.Request) {
	f.images.Add(1)

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if n <= old || f.peak.CompareAndSwap(old, n) {
			break
		}
	}

	pages, ok := f.chapter(r.PathValue("hash"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	var page *FakePage
	for i := range pages {
		if pages[i].Name == r.PathValue("file") {
			page = &pages[i]
			break
		}
	}
	if page == nil {
		http.NotFound(w, r)
		return
	}

	if page.Delay > 0 {
		select {
		case <-time.After(page.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if page.Status != 0 && page.Status != http.StatusOK {
		http.Error(w, http.StatusText(page.Status), page.Status)
		return
	}

	ct := page.ContentType
	if ct == "" {
		ct = http.DetectContentType(page.Body)
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(page.Body)
}
