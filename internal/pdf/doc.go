// Package pdf builds image-only PDF documents with pdfcpu: one page per
// staged image, each page exactly as large as its image in pixels.
package pdf
