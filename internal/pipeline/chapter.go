package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/pdf"
	"github.com/brogergvhs/mangapdf/internal/ui"
)

type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the final report of one chapter run.
type Outcome struct {
	Chapter    chapters.Chapter
	Status     Status
	OutputPath string
	Total      int
	Pages      int
	Failures   []downloader.PageFailure
	Bytes      int64
	Err        error
	Duration   time.Duration
}

func (o Outcome) Dropped() int {
	return len(o.Failures)
}

// Options are the per-run knobs of a chapter pipeline.
type Options struct {
	StagingDir  string
	Overwrite   bool
	SeriesTitle string
}

// Pipeline fetches one chapter and assembles it into a PDF. It can run many
// chapters concurrently; every run gets its own staging namespace.
type Pipeline struct {
	fetcher   *downloader.Fetcher
	assembler *pdf.Assembler
	opts      Options
	log       *ui.Logger
}

func New(f *downloader.Fetcher, a *pdf.Assembler, opts Options, log *ui.Logger) *Pipeline {
	if log == nil {
		log = ui.NopLogger()
	}
	return &Pipeline{fetcher: f, assembler: a, opts: opts, log: log}
}

// Run takes ch from manifest to finished PDF at outputPath. The staging
// directory is removed on every exit path.
func (p *Pipeline) Run(ctx context.Context, ch chapters.Chapter, outputPath string, t Tracker) Outcome {
	if t == nil {
		t = nopTracker{}
	}

	start := time.Now()
	out := Outcome{Chapter: ch, OutputPath: outputPath}

	finish := func() Outcome {
		out.Duration = time.Since(start)
		switch out.Status {
		case StatusSucceeded:
			status := fmt.Sprintf("done %d pages", out.Pages)
			if n := out.Dropped(); n > 0 {
				status += fmt.Sprintf(" (%d dropped)", n)
			}
			t.Finish(status, false)
		case StatusSkipped:
			t.Finish("skipped: exists", false)
		default:
			t.Finish(failureLabel(out.Err), true)
		}
		return out
	}

	if !p.opts.Overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			p.log.Infof("%s: %s already exists, skipping", ch.Label(), outputPath)
			out.Status = StatusSkipped
			return finish()
		}
	}

	staging, err := downloader.NewStaging(p.opts.StagingDir, ch.ID)
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		p.log.Errorf("%s: %v", ch.Label(), err)
		return finish()
	}
	defer func() {
		if err := staging.Remove(); err != nil {
			p.log.Warnf("%s: cannot remove staging %s: %v", ch.Label(), staging.Dir, err)
		}
	}()

	p.log.Debugf("%s: staging in %s", ch.Label(), staging.Dir)

	totalSet := false
	fetched, err := p.fetcher.Fetch(ctx, ch.ID, staging, func(done, total int, bytes int64) {
		if !totalSet {
			t.SetTotal(total)
			totalSet = true
		}
		t.Update(done, total, bytes)
	})
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		p.log.Errorf("%s: %v", ch.Label(), err)
		return finish()
	}

	out.Total = fetched.Total
	out.Bytes = fetched.Bytes
	out.Failures = append(out.Failures, fetched.Failures...)

	res, err := p.assembler.Assemble(ctx, fetched.Pages, outputPath, p.documentTitle(ch), nil)
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		var derr *downloader.Error
		if errors.As(err, &derr) && derr.Type == downloader.ErrorEmptyChapter {
			p.log.Errorf("%s: no usable pages out of %d, no PDF written", ch.Label(), fetched.Total)
		} else {
			p.log.Errorf("%s: %v", ch.Label(), err)
		}
		return finish()
	}

	out.Failures = append(out.Failures, res.Skipped...)
	sort.Slice(out.Failures, func(i, j int) bool {
		return out.Failures[i].Ordinal < out.Failures[j].Ordinal
	})

	out.Status = StatusSucceeded
	out.Pages = res.Pages

	if n := len(out.Failures); n > 0 {
		p.log.Warnf("%s: wrote %d/%d pages to %s (%d dropped)", ch.Label(), out.Pages, out.Total, outputPath, n)
	} else {
		p.log.Debugf("%s: wrote %d pages to %s", ch.Label(), out.Pages, outputPath)
	}

	return finish()
}

func (p *Pipeline) documentTitle(ch chapters.Chapter) string {
	if p.opts.SeriesTitle == "" {
		return ch.String()
	}
	return p.opts.SeriesTitle + " - " + ch.String()
}

func failureLabel(err error) string {
	if t, ok := downloader.TypeOf(err); ok {
		return "failed: " + t.String()
	}
	return "failed"
}
