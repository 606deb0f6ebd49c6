// Package mangadex is a small client for the parts of the MangaDex REST API
// the downloader needs: title search, the per-language chapter feed and the
// at-home image manifest of a chapter.
package mangadex
