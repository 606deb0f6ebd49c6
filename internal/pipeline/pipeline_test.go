package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/mangadex"
	"github.com/brogergvhs/mangapdf/internal/pdf"
	"github.com/brogergvhs/mangapdf/internal/testutil"
)

type env struct {
	srv     *testutil.FakeMangaDex
	staging string
	out     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{
		srv:     testutil.NewFakeMangaDex(t),
		staging: t.TempDir(),
		out:     t.TempDir(),
	}
}

func (e *env) pipeline(workers int, overwrite bool) *Pipeline {
	api := mangadex.NewClient(e.srv.Client(), e.srv.URL)
	f := downloader.New(e.srv.Client(), api, workers, 5*time.Second, nil)
	return New(f, pdf.NewAssembler(true, nil), Options{
		StagingDir:  e.staging,
		Overwrite:   overwrite,
		SeriesTitle: "Test Series",
	}, nil)
}

func (e *env) assertStagingEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.staging)
	if err != nil {
		t.Fatalf("read staging root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging root not reclaimed: %v", entries)
	}
}

func pngPage(t *testing.T, name string, w, h int, delay time.Duration) testutil.FakePage {
	return testutil.FakePage{Name: name, Body: testutil.PNG(t, w, h), ContentType: "image/png", Delay: delay}
}

type recorder struct {
	mu       sync.Mutex
	total    int
	status   string
	failed   bool
	finished int
}

func (r *recorder) SetTotal(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

func (r *recorder) Update(int, int, int64) {}

func (r *recorder) Finish(status string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status, r.failed = status, failed
	r.finished++
}

func TestRunKeepsManifestOrder(t *testing.T) {
	e := newEnv(t)
	// completes in the order p2, p1, p3
	e.srv.AddChapter("c1",
		pngPage(t, "p1.png", 100, 100, 80*time.Millisecond),
		testutil.FakePage{Name: "p2.jpg", Body: testutil.JPEG(t, 200, 100), ContentType: "image/jpeg"},
		pngPage(t, "p3.png", 300, 100, 160*time.Millisecond),
	)

	ch := chapters.Chapter{ID: "c1", Number: "1"}
	out := filepath.Join(e.out, ch.OutputPDF())
	rec := &recorder{}

	o := e.pipeline(10, false).Run(context.Background(), ch, out, rec)
	if o.Status != StatusSucceeded {
		t.Fatalf("status = %s (%v)", o.Status, o.Err)
	}
	if o.Pages != 3 || o.Dropped() != 0 || o.Total != 3 {
		t.Fatalf("pages=%d dropped=%d total=%d", o.Pages, o.Dropped(), o.Total)
	}

	info := testutil.InspectPDF(t, out)
	if got := fmt.Sprint(info.MediaBoxes); got != "[[100 100] [200 100] [300 100]]" {
		t.Fatalf("page order = %s", got)
	}
	if info.Title != "Test Series - Chapter 1" {
		t.Fatalf("title = %q", info.Title)
	}

	if rec.total != 3 || rec.failed || rec.finished != 1 || rec.status != "done 3 pages" {
		t.Fatalf("tracker = %+v", rec)
	}

	e.assertStagingEmpty(t)
}

func TestRunDropsFailedPage(t *testing.T) {
	e := newEnv(t)
	e.srv.AddChapter("c2",
		pngPage(t, "0.png", 10, 11, 0),
		pngPage(t, "1.png", 10, 12, 0),
		testutil.FakePage{Name: "2.png", Status: http.StatusBadGateway},
		pngPage(t, "3.png", 10, 14, 0),
		pngPage(t, "4.png", 10, 15, 0),
	)

	ch := chapters.Chapter{ID: "c2", Number: "2"}
	out := filepath.Join(e.out, ch.OutputPDF())
	rec := &recorder{}

	o := e.pipeline(2, false).Run(context.Background(), ch, out, rec)
	if o.Status != StatusSucceeded {
		t.Fatalf("status = %s (%v)", o.Status, o.Err)
	}
	if o.Pages != 4 || o.Dropped() != 1 || o.Failures[0].Ordinal != 2 {
		t.Fatalf("pages=%d failures=%+v", o.Pages, o.Failures)
	}

	info := testutil.InspectPDF(t, out)
	if got := fmt.Sprint(info.MediaBoxes); got != "[[10 11] [10 12] [10 14] [10 15]]" {
		t.Fatalf("pages = %s", got)
	}
	if rec.status != "done 4 pages (1 dropped)" {
		t.Fatalf("status = %q", rec.status)
	}

	e.assertStagingEmpty(t)
}

func TestRunEmptyChapterWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.srv.AddChapter("c3",
		testutil.FakePage{Name: "0.png", Status: http.StatusNotFound},
		testutil.FakePage{Name: "1.jpg", Body: []byte("garbage"), ContentType: "image/jpeg"},
	)

	ch := chapters.Chapter{ID: "c3", Number: "3"}
	out := filepath.Join(e.out, ch.OutputPDF())
	rec := &recorder{}

	o := e.pipeline(10, false).Run(context.Background(), ch, out, rec)
	if o.Status != StatusFailed || !downloader.IsType(o.Err, downloader.ErrorEmptyChapter) {
		t.Fatalf("status=%s err=%v", o.Status, o.Err)
	}
	if o.Dropped() != 1 {
		t.Fatalf("dropped = %d, want the fetch failure recorded", o.Dropped())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output exists for empty chapter")
	}
	if !rec.failed || rec.status != "failed: empty_chapter" {
		t.Fatalf("tracker = %+v", rec)
	}

	e.assertStagingEmpty(t)
}

func TestRunMetadataFailure(t *testing.T) {
	e := newEnv(t)

	ch := chapters.Chapter{ID: "gone", Number: "4"}
	o := e.pipeline(10, false).Run(context.Background(), ch, filepath.Join(e.out, ch.OutputPDF()), nil)

	if o.Status != StatusFailed || !downloader.IsType(o.Err, downloader.ErrorMetadata) {
		t.Fatalf("status=%s err=%v", o.Status, o.Err)
	}
	e.assertStagingEmpty(t)
}

func TestRunSkipsExistingOutput(t *testing.T) {
	e := newEnv(t)
	e.srv.AddChapter("c5", pngPage(t, "0.png", 7, 7, 0))

	ch := chapters.Chapter{ID: "c5", Number: "5"}
	out := filepath.Join(e.out, ch.OutputPDF())
	if err := os.WriteFile(out, []byte("existing"), 0644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	o := e.pipeline(10, false).Run(context.Background(), ch, out, nil)
	if o.Status != StatusSkipped {
		t.Fatalf("status = %s", o.Status)
	}
	if e.srv.ImageRequests() != 0 {
		t.Fatalf("skipped chapter downloaded pages")
	}

	o = e.pipeline(10, true).Run(context.Background(), ch, out, nil)
	if o.Status != StatusSucceeded {
		t.Fatalf("overwrite status = %s (%v)", o.Status, o.Err)
	}
	if info := testutil.InspectPDF(t, out); info.Count != 1 {
		t.Fatalf("count = %d", info.Count)
	}
}

type countingSink struct {
	active atomic.Int64
	peak   atomic.Int64
}

type countingTracker struct {
	recorder
	sink *countingSink
}

func (c *countingTracker) Finish(status string, failed bool) {
	c.recorder.Finish(status, failed)
	c.sink.active.Add(-1)
}

func (s *countingSink) Sink(string) Tracker {
	n := s.active.Add(1)
	for {
		old := s.peak.Load()
		if n <= old || s.peak.CompareAndSwap(old, n) {
			break
		}
	}
	return &countingTracker{sink: s}
}

func TestCoordinatorCapsChaptersAndIsolatesFailures(t *testing.T) {
	e := newEnv(t)

	var list []chapters.Chapter
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("chap-%d", i)
		list = append(list, chapters.Chapter{ID: id, Number: fmt.Sprint(i)})
		if i == 3 {
			// chapter 3 has no manifest
			continue
		}
		e.srv.AddChapter(id,
			pngPage(t, "a.png", 10*i, 10, 30*time.Millisecond),
			pngPage(t, "b.png", 10*i, 20, 30*time.Millisecond),
		)
	}

	const chapterWorkers, pageWorkers = 2, 2
	sink := &countingSink{}
	coord := NewCoordinator(e.pipeline(pageWorkers, false), chapterWorkers, sink.Sink, nil)

	outcomes := coord.Run(context.Background(), list, e.out)

	if len(outcomes) != len(list) {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Chapter.ID != list[i].ID {
			t.Fatalf("outcome %d is for %s", i, o.Chapter.ID)
		}
		want := StatusSucceeded
		if i == 2 {
			want = StatusFailed
		}
		if o.Status != want {
			t.Fatalf("chapter %s status = %s (%v)", o.Chapter.ID, o.Status, o.Err)
		}
	}

	if p := sink.peak.Load(); p > chapterWorkers {
		t.Fatalf("peak concurrent chapters = %d, want <= %d", p, chapterWorkers)
	}
	if p := e.srv.Peak(); p > chapterWorkers*pageWorkers {
		t.Fatalf("peak image requests = %d, want <= %d", p, chapterWorkers*pageWorkers)
	}

	for i := 1; i <= 5; i++ {
		path := filepath.Join(e.out, fmt.Sprintf("Chapter_%d.pdf", i))
		_, err := os.Stat(path)
		if i == 3 && !os.IsNotExist(err) {
			t.Fatalf("failed chapter left %s", path)
		}
		if i != 3 && err != nil {
			t.Fatalf("missing %s: %v", path, err)
		}
	}

	e.assertStagingEmpty(t)
}

func TestCoordinatorSeparatesDuplicateNumbers(t *testing.T) {
	e := newEnv(t)

	list := []chapters.Chapter{
		{ID: "aaaaaaaa-1111", Number: "7"},
		{ID: "bbbbbbbb-2222", Number: "7"},
	}
	for _, ch := range list {
		e.srv.AddChapter(ch.ID, pngPage(t, "0.png", 5, 5, 0))
	}

	outcomes := NewCoordinator(e.pipeline(4, false), 2, nil, nil).Run(context.Background(), list, e.out)

	if outcomes[0].OutputPath == outcomes[1].OutputPath {
		t.Fatalf("both chapters wrote %s", outcomes[0].OutputPath)
	}
	for _, o := range outcomes {
		if o.Status != StatusSucceeded {
			t.Fatalf("%s: %s (%v)", o.Chapter.ID, o.Status, o.Err)
		}
	}
	if filepath.Base(outcomes[1].OutputPath) != "Chapter_7_bbbbbbbb.pdf" {
		t.Fatalf("second name = %s", filepath.Base(outcomes[1].OutputPath))
	}
}

func TestCoordinatorRunsRepeatedChapterOnce(t *testing.T) {
	e := newEnv(t)

	e.srv.AddChapter("dup-1", pngPage(t, "0.png", 5, 5, 0), pngPage(t, "1.png", 6, 6, 0))
	e.srv.AddChapter("dup-2", pngPage(t, "0.png", 7, 7, 0))

	list := []chapters.Chapter{
		{ID: "dup-1", Number: "1"},
		{ID: "dup-2", Number: "2"},
		{ID: "dup-1", Number: "1"},
	}

	outcomes := NewCoordinator(e.pipeline(4, false), 2, nil, nil).Run(context.Background(), list, e.out)

	if len(outcomes) != 2 || outcomes[0].Chapter.ID != "dup-1" || outcomes[1].Chapter.ID != "dup-2" {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	for _, o := range outcomes {
		if o.Status != StatusSucceeded {
			t.Fatalf("%s: %s (%v)", o.Chapter.ID, o.Status, o.Err)
		}
	}
	if n := e.srv.ImageRequests(); n != 3 {
		t.Fatalf("image requests = %d, want 3", n)
	}

	entries, err := os.ReadDir(e.out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if fmt.Sprint(names) != "[Chapter_1.pdf Chapter_2.pdf]" {
		t.Fatalf("outputs = %v", names)
	}

	e.assertStagingEmpty(t)
}

func TestCoordinatorCancelledBeforeStart(t *testing.T) {
	e := newEnv(t)
	list := []chapters.Chapter{{ID: "x", Number: "1"}, {ID: "y", Number: "2"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := NewCoordinator(e.pipeline(4, false), 1, nil, nil).Run(ctx, list, e.out)
	for _, o := range outcomes {
		if o.Status != StatusFailed || !downloader.IsType(o.Err, downloader.ErrorCancelled) {
			t.Fatalf("%s: status=%s err=%v", o.Chapter.ID, o.Status, o.Err)
		}
	}
	e.assertStagingEmpty(t)
}
