package pipeline

import (
	"context"
	"path/filepath"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"golang.org/x/sync/errgroup"
)

const DefaultChapterWorkers = 2

// Coordinator runs a selection of chapters with a cap on how many are in
// flight. A failing chapter never stops its siblings.
type Coordinator struct {
	pipeline *Pipeline
	workers  int
	sink     Sink
	log      *ui.Logger
}

func NewCoordinator(p *Pipeline, workers int, sink Sink, log *ui.Logger) *Coordinator {
	if workers < 1 {
		workers = DefaultChapterWorkers
	}
	if sink == nil {
		sink = NopSink
	}
	if log == nil {
		log = ui.NopLogger()
	}

	return &Coordinator{pipeline: p, workers: workers, sink: sink, log: log}
}

// Run processes list into outputDir and returns one outcome per distinct
// chapter, in the order of list. A chapter listed twice runs once.
func (c *Coordinator) Run(ctx context.Context, list []chapters.Chapter, outputDir string) []Outcome {
	list = chapters.Dedupe(list)
	names := chapters.OutputNames(list)
	outcomes := make([]Outcome, len(list))

	var g errgroup.Group
	g.SetLimit(c.workers)

	for i, ch := range list {
		if ctx.Err() != nil {
			outcomes[i] = Outcome{
				Chapter: ch,
				Status:  StatusFailed,
				Err:     downloader.NewError(downloader.ErrorCancelled, ctx.Err(), "chapter %s not started", ch.ID),
			}
			continue
		}

		g.Go(func() error {
			out := filepath.Join(outputDir, names[ch.ID])
			outcomes[i] = c.pipeline.Run(ctx, ch, out, c.sink(ch.Label()))
			return nil
		})
	}

	_ = g.Wait()

	c.log.Debugf("processed %d chapters with %d chapter workers", len(list), c.workers)

	return outcomes
}
