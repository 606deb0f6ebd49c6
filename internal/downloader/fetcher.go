package downloader

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/mangapdf/internal/mangadex"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"golang.org/x/sync/semaphore"
)

const DefaultWorkers = 10

var errEmptyBody = errors.New("empty body")

// ManifestSource resolves the page manifest of a chapter.
type ManifestSource interface {
	AtHome(ctx context.Context, chapterID string) (*mangadex.Manifest, error)
}

// Fetcher downloads the pages of one chapter at a time into its staging
// namespace, with at most workers image requests in flight.
type Fetcher struct {
	client  *http.Client
	source  ManifestSource
	workers int
	timeout time.Duration
	log     *ui.Logger
}

func New(c *http.Client, source ManifestSource, workers int, timeout time.Duration, log *ui.Logger) *Fetcher {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = ui.NopLogger()
	}

	return &Fetcher{
		client:  c,
		source:  source,
		workers: workers,
		timeout: timeout,
		log:     log,
	}
}

func (f *Fetcher) Workers() int {
	return f.workers
}

type pageResult struct {
	page    *StagedPage
	failure *PageFailure
}

// Fetch resolves the chapter manifest and downloads every page. Single page
// failures are dropped and recorded; only a manifest failure or cancellation
// fails the whole call.
func (f *Fetcher) Fetch(ctx context.Context, chapterID string, staging *Staging, progress ProgressFunc) (*FetchResult, error) {
	manifest, err := f.source.AtHome(ctx, chapterID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError(ErrorCancelled, ctx.Err(), "chapter %s", chapterID)
		}
		return nil, NewError(ErrorMetadata, err, "resolve manifest of chapter %s", chapterID).
			WithContext("chapter_id", chapterID)
	}

	entries := manifestEntries(manifest.Files)
	total := len(entries)
	width := ordinalWidth(total)

	f.log.Debugf("chapter %s: %d pages in manifest (hash %s)", chapterID, total, manifest.Hash)

	if progress == nil {
		progress = func(int, int, int64) {}
	}
	progress(0, total, 0)

	var (
		mu      sync.Mutex
		settled int
		bytes   int64
	)
	onBytes := func(n int64) {
		mu.Lock()
		bytes += n
		progress(settled, total, bytes)
		mu.Unlock()
	}

	// every goroutine owns exactly results[ordinal]
	results := make([]pageResult, total)
	sem := semaphore.NewWeighted(int64(f.workers))

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				settled++
				progress(settled, total, bytes)
				mu.Unlock()
			}()

			if err := sem.Acquire(ctx, 1); err != nil {
				results[e.Ordinal].failure = &PageFailure{
					Ordinal:  e.Ordinal,
					Filename: e.Filename,
					Err:      NewError(ErrorCancelled, err, "page %d", e.Ordinal),
				}
				return
			}
			defer sem.Release(1)

			page, err := f.fetchPage(ctx, manifest, e, staging.PathFor(e, width), onBytes)
			if err != nil {
				results[e.Ordinal].failure = &PageFailure{
					Ordinal:  e.Ordinal,
					Filename: e.Filename,
					Err:      NewError(ErrorPageFetch, err, "page %d (%s)", e.Ordinal, e.Filename),
				}
				return
			}

			results[e.Ordinal].page = page
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, NewError(ErrorCancelled, ctx.Err(), "chapter %s", chapterID)
	}

	res := &FetchResult{
		ChapterID: chapterID,
		Total:     total,
		Bytes:     bytes,
	}
	for _, r := range results {
		switch {
		case r.page != nil:
			res.Pages = append(res.Pages, *r.page)
		case r.failure != nil:
			f.log.Warnf("chapter %s: dropped page %d (%s): %v", chapterID, r.failure.Ordinal, r.failure.Filename, r.failure.Err)
			res.Failures = append(res.Failures, *r.failure)
		}
	}

	return res, nil
}

func (f *Fetcher) fetchPage(
	ctx context.Context,
	m *mangadex.Manifest,
	e ManifestEntry,
	output string,
	progress func(n int64),
) (_ *StagedPage, err error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.ImageURL(e.Filename), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if !strings.HasPrefix(mt, "image/") && mt != "application/octet-stream" {
			return nil, fmt.Errorf("unexpected MIME: %s", ct)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return nil, NewError(ErrorFilesystem, err, "create %s", output)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(output)
		}
	}()

	written, err := copyWithProgress(file, resp.Body, progress)
	if err != nil {
		return nil, err
	}
	if written == 0 {
		return nil, errEmptyBody
	}

	return &StagedPage{
		Ordinal:  e.Ordinal,
		Filename: e.Filename,
		Path:     output,
		Size:     written,
	}, nil
}
