package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// NewStaticHandler serves files from dir. Directories are only served when
// they contain an index.html; listings are never exposed.
func NewStaticHandler(dir string) http.Handler {
	return http.FileServer(noListingFS{http.Dir(dir)})
}

// RegisterStaticRoutes serves the static directory for every path not matched
// by another route (the placeholder image among them).
func RegisterStaticRoutes(r chi.Router, static http.Handler) {
	r.Get("/*", static.ServeHTTP)
	r.Head("/*", static.ServeHTTP)
}

// StaticDirExists reports whether dir is an existing directory
func StaticDirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.IsDir() {
		return f, nil
	}

	index := filepath.ToSlash(filepath.Join(strings.TrimSuffix(name, "/"), "index.html"))
	idx, err := n.fs.Open(index)
	if err != nil {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	_ = idx.Close()
	return f, nil
}
