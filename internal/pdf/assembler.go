package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	_ "image/gif"
	"os"
	"path/filepath"

	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"github.com/moby/sys/atomicwriter"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	_ "golang.org/x/image/bmp"
)

// PageFunc is told about every staged page once it has been handled.
// committed is false for pages that were dropped.
type PageFunc func(done, total int, committed bool)

// Result summarizes one assembled document.
type Result struct {
	Path    string
	Pages   int
	Bytes   int64
	Skipped []downloader.PageFailure
}

// Assembler turns staged pages into one PDF, strictly one page at a time.
type Assembler struct {
	conf *model.Configuration
	log  *ui.Logger
}

// NewAssembler prepares the pdfcpu configuration shared by every document.
// With compress set, objects and the cross-reference table are written as
// compressed streams.
func NewAssembler(compress bool, log *ui.Logger) *Assembler {
	if log == nil {
		log = ui.NopLogger()
	}

	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = compress
	conf.WriteXRefStream = compress

	return &Assembler{conf: conf, log: log}
}

// document is one pdfcpu context plus its page tree root.
type document struct {
	ctx   *model.Context
	pages *types.IndirectRef
	root  types.Dict
}

func (a *Assembler) newDocument() (*document, error) {
	conf := *a.conf

	ctx, err := pdfcpu.CreateContextWithXRefTable(&conf, types.PaperSize["A4"])
	if err != nil {
		return nil, err
	}

	pages, err := ctx.Pages()
	if err != nil {
		return nil, err
	}

	root, err := ctx.DereferenceDict(*pages)
	if err != nil {
		return nil, err
	}

	return &document{ctx: ctx, pages: pages, root: root}, nil
}

// Assemble embeds pages in the given order and writes the document to
// outputPath. Each staged file is deleted right after its page is
// committed, or when it is dropped as undecodable. A run that commits no
// page fails with an empty chapter error and leaves no file behind.
func (a *Assembler) Assemble(ctx context.Context, pages []downloader.StagedPage, outputPath, title string, onPage PageFunc) (*Result, error) {
	if onPage == nil {
		onPage = func(int, int, bool) {}
	}

	doc, err := a.newDocument()
	if err != nil {
		return nil, downloader.NewError(downloader.ErrorPDFWrite, err, "create document for %s", filepath.Base(outputPath))
	}
	res := &Result{Path: outputPath}

	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, downloader.NewError(downloader.ErrorCancelled, err, "assemble %s", filepath.Base(outputPath))
		}

		committed, err := a.addPage(doc, p)
		if err != nil {
			return nil, err
		}
		if !committed.ok {
			res.Skipped = append(res.Skipped, committed.failure)
		}

		onPage(i+1, len(pages), committed.ok)
	}

	if doc.ctx.PageCount == 0 {
		return nil, downloader.NewError(downloader.ErrorEmptyChapter, nil, "no page of %s could be embedded", filepath.Base(outputPath)).
			WithContext("staged", len(pages))
	}

	if err := doc.setTitle(title); err != nil {
		return nil, downloader.NewError(downloader.ErrorPDFWrite, err, "set title of %s", outputPath)
	}

	n, err := a.write(doc, outputPath)
	if err != nil {
		return nil, err
	}

	res.Pages = doc.ctx.PageCount
	res.Bytes = n

	a.log.Debugf("wrote %s: %d pages, %d skipped", outputPath, res.Pages, len(res.Skipped))

	return res, nil
}

type pageOutcome struct {
	ok      bool
	failure downloader.PageFailure
}

// addPage returns a non-nil error only for failures that must abort the
// document. Undecodable pages come back as a failure outcome.
func (a *Assembler) addPage(doc *document, p downloader.StagedPage) (pageOutcome, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return pageOutcome{}, downloader.NewError(downloader.ErrorFilesystem, err, "read staged page %s", p.Path)
	}

	refs, err := pdfcpu.NewPagesForImage(doc.ctx.XRefTable, f, doc.pages, pdfcpu.DefaultImportConfig())
	f.Close()
	if err == nil && len(refs) == 0 {
		err = fmt.Errorf("no image in %s", p.Filename)
	}
	if err != nil {
		a.log.Warnf("dropping page %d (%s): %v", p.Ordinal, p.Filename, err)
		a.discard(p.Path)

		return pageOutcome{failure: downloader.PageFailure{
			Ordinal:  p.Ordinal,
			Filename: p.Filename,
			Err:      downloader.NewError(downloader.ErrorImageDecode, err, "page %d (%s)", p.Ordinal, p.Filename),
		}}, nil
	}

	for _, ref := range refs {
		if err := doc.ctx.SetValid(*ref); err != nil {
			return pageOutcome{}, downloader.NewError(downloader.ErrorPDFWrite, err, "embed page %d", p.Ordinal)
		}
		if err := model.AppendPageTree(ref, 1, doc.root); err != nil {
			return pageOutcome{}, downloader.NewError(downloader.ErrorPDFWrite, err, "embed page %d", p.Ordinal)
		}
		doc.ctx.PageCount++
	}

	a.discard(p.Path)

	return pageOutcome{ok: true}, nil
}

// setTitle stores title in the document info dictionary. pdfcpu fills in
// producer and dates when the document is written.
func (d *document) setTitle(title string) error {
	if title == "" {
		return nil
	}

	s, err := types.EscapedUTF16String(title)
	if err != nil {
		return err
	}

	info := types.NewDict()
	info.Insert("Title", types.StringLiteral(*s))

	ref, err := d.ctx.IndRefForNewObject(info)
	if err != nil {
		return err
	}
	d.ctx.Info = ref

	return nil
}

func (a *Assembler) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Debugf("remove staged page %s: %v", path, err)
	}
}

// write renders the document in memory and then replaces outputPath
// atomically, so a failed render never touches an existing file.
func (a *Assembler) write(doc *document, outputPath string) (int64, error) {
	var buf bytes.Buffer
	if err := api.WriteContext(doc.ctx, &buf); err != nil {
		return 0, downloader.NewError(downloader.ErrorPDFWrite, err, "render %s", outputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return 0, downloader.NewError(downloader.ErrorFilesystem, err, "create output directory")
	}

	w, err := atomicwriter.New(outputPath, 0644)
	if err != nil {
		return 0, downloader.NewError(downloader.ErrorPDFWrite, err, "open %s", outputPath)
	}

	n, err := buf.WriteTo(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, downloader.NewError(downloader.ErrorPDFWrite, err, "write %s", outputPath)
	}

	return n, nil
}
