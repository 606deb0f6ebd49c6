package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/brogergvhs/mangapdf/internal/util"
)

type Stats struct {
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Skipped   atomic.Int64
	Pages     atomic.Int64
	Dropped   atomic.Int64
	Bytes     atomic.Int64
}

// SummaryRow is one chapter line of the final report.
type SummaryRow struct {
	Chapter string
	Status  string
	Pages   int
	Dropped int
	Detail  string
}

func (s *Stats) Print(w io.Writer, rows []SummaryRow, elapsed time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download Summary:")

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CHAPTER\tSTATUS\tPAGES\tDROPPED\tDETAIL")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Chapter, r.Status, r.Pages, r.Dropped, r.Detail)
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Chapters: %d ok, %d failed, %d skipped\n", s.Succeeded.Load(), s.Failed.Load(), s.Skipped.Load())
	fmt.Fprintf(w, "Pages:    %d (%d dropped)\n", s.Pages.Load(), s.Dropped.Load())
	fmt.Fprintf(w, "Data:     %s\n", util.Human(s.Bytes.Load()))
	fmt.Fprintf(w, "Time:     %s\n", elapsed.Round(time.Second))
}
