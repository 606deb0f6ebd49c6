package downloader

// ManifestEntry is one remote page file. Ordinal is its 0-based position in
// the manifest and the only authority on page order.
type ManifestEntry struct {
	Ordinal  int
	Filename string
}

// StagedPage is a fetched page waiting on local disk to be embedded. The
// assembler deletes Path once the page is in the document.
type StagedPage struct {
	Ordinal  int
	Filename string
	Path     string
	Size     int64
}

// PageFailure records a page that did not make it into the document.
type PageFailure struct {
	Ordinal  int
	Filename string
	Err      error
}

func (f PageFailure) Type() ErrorType {
	if t, ok := TypeOf(f.Err); ok {
		return t
	}
	return ErrorPageFetch
}

// FetchResult is what one chapter fetch produced. Pages is sorted by
// ordinal; failed ordinals are simply absent.
type FetchResult struct {
	ChapterID string
	Total     int
	Pages     []StagedPage
	Failures  []PageFailure
	Bytes     int64
}

func (r *FetchResult) Dropped() int {
	return len(r.Failures)
}

// ProgressFunc receives (settled pages, manifest size, bytes so far) every
// time a page download finishes, successfully or not.
type ProgressFunc func(done, total int, bytes int64)

func manifestEntries(files []string) []ManifestEntry {
	out := make([]ManifestEntry, len(files))
	for i, f := range files {
		out[i] = ManifestEntry{Ordinal: i, Filename: f}
	}
	return out
}
