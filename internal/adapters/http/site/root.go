// Package site handles the embedded documentation site.
package site

import (
	"context"
	"errors"
	"net/http"
)

// Error constants
var (
	ErrGenerate = errors.New("docs site generation failed")
	ErrServe    = errors.New("docs site serve failed")
)

// Register attaches the embedded documentation site routes to mux.
// The site is rooted at /docs/ so the business API keeps the rest of
// the path space.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.StripPrefix("/docs/", http.FileServer(FS()))
	mux.Handle("/docs/", files)
}
