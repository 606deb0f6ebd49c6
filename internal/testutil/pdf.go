package testutil

import (
	"math"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFInfo is what InspectPDF could read back from a written document.
type PDFInfo struct {
	Count      int
	MediaBoxes [][2]int
	Title      string
}

// InspectPDF reads and validates path with pdfcpu and fails the test if the
// document does not parse or its page tree disagrees with its page count.
func InspectPDF(t testing.TB, path string) PDFInfo {
	t.Helper()

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		t.Fatalf("read pdf %s: %v", path, err)
	}

	dims, err := api.PageDimsFile(path)
	if err != nil {
		t.Fatalf("page dims of %s: %v", path, err)
	}
	if len(dims) != ctx.PageCount {
		t.Fatalf("%s: %d page dims for %d pages", path, len(dims), ctx.PageCount)
	}

	info := PDFInfo{Count: ctx.PageCount, Title: ctx.Title}
	for _, d := range dims {
		info.MediaBoxes = append(info.MediaBoxes, [2]int{int(math.Round(d.Width)), int(math.Round(d.Height))})
	}

	return info
}
